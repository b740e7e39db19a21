package rom

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeImage(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rom.bin")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpen(t *testing.T) {
	path := writeImage(t, []byte{0xFF, 0xFF, 0x00, 0x00, 0x20, 0x00, 0x00, 0xFC, 0x12, 0x34})

	img, err := Open(path, 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{0x0000, 0x2000, 0x00FC, 0x1234}
	if diff := cmp.Diff(want, img.Words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
	if img.Missing != 0 {
		t.Errorf("Missing = %d, want 0", img.Missing)
	}
}

func TestOpenShort(t *testing.T) {
	path := writeImage(t, []byte{0xAB, 0xCD, 0xEF})

	img, err := Open(path, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{0xABCD, 0xEF00, 0, 0}
	if diff := cmp.Diff(want, img.Words); diff != "" {
		t.Errorf("words mismatch (-want +got):\n%s", diff)
	}
	if img.Missing != 2 {
		t.Errorf("Missing = %d, want 2", img.Missing)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.bin"), 0, 4); err == nil {
		t.Errorf("Open on missing file should fail")
	}
	path := writeImage(t, []byte{0, 1})
	if _, err := Open(path, 0, 0); err == nil {
		t.Errorf("Open with zero depth should fail")
	}
}

func TestPrintInfos(t *testing.T) {
	path := writeImage(t, []byte{0x00, 0x00, 0x20, 0x00, 0x00, 0xFC, 0x00, 0x30})
	img, err := Open(path, 0, 6)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	img.PrintInfos(&buf)
	if !strings.Contains(buf.String(), "reset PC:  0x00fc0030") {
		t.Errorf("unexpected infos:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "missing:  2 words") {
		t.Errorf("padding not reported:\n%s", buf.String())
	}
}
