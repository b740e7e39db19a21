// Package rom loads ROM images for the 16-bit legacy bus. Images are raw
// dumps in 68000 byte order: each word is stored big-endian, high byte
// first.
package rom

import (
	"fmt"
	"io"
	"os"

	"github.com/go-faster/errors"
)

// Image is a ROM image, or a window of it, assembled into 16-bit words.
type Image struct {
	Path   string
	Offset int64 // byte offset of the window in the file
	Words  []uint16

	// Missing is the number of words past the end of the file, which are
	// zero-filled.
	Missing int
}

// Open loads depth words from the image file at path, starting at byte
// offset off.
func Open(path string, off int64, depth int) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img := &Image{Path: path, Offset: off}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "seek to offset %#x", off)
	}
	if err := img.read(f, depth); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return img, nil
}

// Blank returns a zero-filled image of depth words.
func Blank(depth int) *Image {
	return &Image{Words: make([]uint16, depth)}
}

func (img *Image) read(r io.Reader, depth int) error {
	if depth <= 0 {
		return fmt.Errorf("invalid depth %d", depth)
	}
	buf := make([]byte, 2*depth)
	n, err := io.ReadFull(r, buf)
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		// short image, pad with zeroes
	case err != nil:
		return err
	}

	img.Words = make([]uint16, depth)
	for i := range img.Words {
		img.Words[i] = uint16(buf[2*i])<<8 | uint16(buf[2*i+1])
	}
	img.Missing = depth - (n+1)/2
	return nil
}

// Vectors returns the reset vectors found at the start of the image: the
// initial supervisor stack pointer and the initial program counter.
func (img *Image) Vectors() (ssp, pc uint32, ok bool) {
	if len(img.Words) < 4 {
		return 0, 0, false
	}
	w := img.Words
	ssp = uint32(w[0])<<16 | uint32(w[1])
	pc = uint32(w[2])<<16 | uint32(w[3])
	return ssp, pc, true
}

// PrintInfos prints a summary of the image.
func (img *Image) PrintInfos(w io.Writer) {
	fmt.Fprintf(w, "path:     %s\n", img.Path)
	fmt.Fprintf(w, "offset:   %#x\n", img.Offset)
	fmt.Fprintf(w, "words:    %d (%d bytes)\n", len(img.Words), 2*len(img.Words))
	if img.Missing > 0 {
		fmt.Fprintf(w, "missing:  %d words past end of file (zero-filled)\n", img.Missing)
	}
	if ssp, pc, ok := img.Vectors(); ok {
		fmt.Fprintf(w, "reset SSP: %#08x\n", ssp)
		fmt.Fprintf(w, "reset PC:  %#08x\n", pc)
	}
}
