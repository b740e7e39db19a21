package trace

import (
	"fmt"
	"io"
	"os"

	"github.com/fogleman/gg"
)

// Diagram renders the recorded samples as a PNG timing diagram.
type Diagram struct {
	path    string
	max     int
	samples []Sample
}

const (
	diagMaxCycles = 512
	diagLabelW    = 100.0
	diagCycleW    = 24.0
	diagRowH      = 22.0
	diagMargin    = 8.0
)

// NewDiagram creates a diagram written to path on Close. At most
// maxCycles cycles are kept, the first ones.
func NewDiagram(path string, maxCycles int) *Diagram {
	if maxCycles <= 0 {
		maxCycles = diagMaxCycles
	}
	return &Diagram{path: path, max: maxCycles}
}

func (d *Diagram) Sample(s *Sample) error {
	if len(d.samples) < d.max {
		d.samples = append(d.samples, *s)
	}
	return nil
}

// Close renders the diagram to its file.
func (d *Diagram) Close() error {
	if len(d.samples) == 0 {
		modTrace.WarnZ("empty timing diagram, nothing to render").String("path", d.path).End()
		return nil
	}
	f, err := os.Create(d.path)
	if err != nil {
		return err
	}
	if err := d.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Render encodes the diagram as PNG into w.
func (d *Diagram) Render(w io.Writer) error {
	n := len(d.samples)
	width := int(diagLabelW + float64(n)*diagCycleW + 2*diagMargin)
	height := int(float64(len(signals)+1)*diagRowH + 2*diagMargin)

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetLineWidth(1)

	// cycle grid
	for i := range n {
		x := diagLabelW + diagMargin + float64(i)*diagCycleW
		dc.SetRGB(0.9, 0.9, 0.9)
		dc.DrawLine(x, diagMargin, x, float64(height)-diagMargin)
		dc.Stroke()
		if i%4 == 0 {
			dc.SetRGB(0.4, 0.4, 0.4)
			dc.DrawString(fmt.Sprint(d.samples[i].Cycle), x+2, diagMargin+diagRowH*0.7)
		}
	}

	for row, sig := range signals {
		y := diagMargin + float64(row+1)*diagRowH
		dc.SetRGB(0, 0, 0)
		dc.DrawString(sig.name, diagMargin, y+diagRowH*0.65)
		if sig.width == 1 {
			d.drawBit(dc, &sig, y)
		} else {
			d.drawBus(dc, &sig, y)
		}
	}
	return dc.EncodePNG(w)
}

func (d *Diagram) drawBit(dc *gg.Context, sig *signal, y float64) {
	hi, lo := y+4, y+diagRowH-4
	level := func(i int) float64 {
		if sig.get(&d.samples[i]) != 0 {
			return hi
		}
		return lo
	}

	dc.SetRGB(0, 0.5, 0)
	x := diagLabelW + diagMargin
	prev := level(0)
	dc.MoveTo(x, prev)
	for i := range d.samples {
		cur := level(i)
		if cur != prev {
			dc.LineTo(x, cur)
		}
		x += diagCycleW
		dc.LineTo(x, cur)
		prev = cur
	}
	dc.Stroke()
}

func (d *Diagram) drawBus(dc *gg.Context, sig *signal, y float64) {
	hi, lo, mid := y+4, y+diagRowH-4, y+diagRowH/2
	x0 := diagLabelW + diagMargin

	start := 0
	for i := 1; i <= len(d.samples); i++ {
		if i < len(d.samples) && sig.get(&d.samples[i]) == sig.get(&d.samples[start]) {
			continue
		}

		// one segment of stable value
		xa := x0 + float64(start)*diagCycleW
		xb := x0 + float64(i)*diagCycleW
		dc.SetRGB(0, 0, 0.6)
		dc.MoveTo(xa, mid)
		dc.LineTo(xa+2, hi)
		dc.LineTo(xb-2, hi)
		dc.LineTo(xb, mid)
		dc.LineTo(xb-2, lo)
		dc.LineTo(xa+2, lo)
		dc.ClosePath()
		dc.Stroke()

		label := d.busLabel(sig, &d.samples[start])
		if w, _ := dc.MeasureString(label); w < xb-xa-4 {
			dc.DrawStringAnchored(label, (xa+xb)/2, mid, 0.5, 0.35)
		}
		start = i
	}
}

func (d *Diagram) busLabel(sig *signal, s *Sample) string {
	if sig.name == "state" {
		return s.State.String()
	}
	return fmt.Sprintf("%x", sig.get(s))
}
