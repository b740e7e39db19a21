package trace

import (
	"io"

	"github.com/go-faster/jx"
)

// JSON writes one JSON object per sample, one sample per line.
type JSON struct {
	w io.Writer
	e jx.Encoder
}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) Sample(s *Sample) error {
	j.e.Reset()
	encodeSample(&j.e, s)
	_, err := j.w.Write(append(j.e.Bytes(), '\n'))
	return err
}

// Close closes the underlying writer if it's an io.Closer.
func (j *JSON) Close() error {
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func encodeSample(e *jx.Encoder, s *Sample) {
	e.ObjStart()
	e.FieldStart("cycle")
	e.Int64(s.Cycle)
	e.FieldStart("state")
	e.Str(s.State.String())
	e.FieldStart("bus_asserted")
	e.Bool(s.BusAsserted)
	for i := range signals {
		sig := &signals[i]
		if sig.name == "state" || sig.name == "bus_asserted" {
			continue
		}
		e.FieldStart(sig.name)
		if sig.width == 1 {
			e.Bool(sig.get(s) != 0)
		} else {
			e.UInt64(sig.get(s))
		}
	}
	e.ObjEnd()
}
