package trace_test

import (
	"bufio"
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	"github.com/google/go-cmp/cmp"

	"anubis/hw/board"
	"anubis/hw/bridge"
	"anubis/hw/trace"
	"anubis/hw/wishbone"
)

// record runs a word read on a default board and returns the samples of
// every cycle.
func record(t *testing.T) []trace.Sample {
	t.Helper()

	s, err := board.New(bridge.Plain, board.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.Master.Enqueue(wishbone.Transaction{Adr: 0x40, Sel: 0xF})

	var samples []trace.Sample
	for range 10 {
		s.Settle()
		samples = append(samples, trace.Capture(s))
		s.Tick()
	}
	return samples
}

func TestCapture(t *testing.T) {
	samples := record(t)

	var states []bridge.State
	for _, smp := range samples[:8] {
		states = append(states, smp.State)
	}
	want := []bridge.State{
		bridge.Idle, bridge.Idle,
		bridge.AddrHigh, bridge.StrobeHigh,
		bridge.AddrLow, bridge.StrobeLow,
		bridge.DtackFinal, bridge.Idle,
	}
	if diff := cmp.Diff(want, states); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
	if !samples[6].Ack || samples[5].Ack {
		t.Errorf("ack not asserted in DtackFinal only")
	}
	if samples[3].Addr != 0x80 || samples[5].Addr != 0x81 {
		t.Errorf("legacy addresses = %x, %x, want 80, 81", samples[3].Addr, samples[5].Addr)
	}
}

func TestVCD(t *testing.T) {
	var buf bytes.Buffer
	v := trace.NewVCD(&buf, 25_000_000)
	for _, smp := range record(t) {
		if err := v.Sample(&smp); err != nil {
			t.Fatal(err)
		}
	}
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"$timescale 1ns $end\n",
		"$var wire 1 ! clk $end\n",
		"$var wire 30 % wb_adr $end\n",
		"$enddefinitions $end\n",
		"#0\n$dumpvars\n",
		"#20\n0!\n",
		"#40\n1!\n",
		"b1000000 %\n", // wb_adr = 0x40
	} {
		if !strings.Contains(out, want) {
			t.Errorf("vcd output lacks %q", want)
		}
	}

	// unchanged signals are not dumped again
	if n := strings.Count(out, "b1000000 %\n"); n != 1 {
		t.Errorf("wb_adr dumped %d times, want 1", n)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	j := trace.NewJSON(&buf)
	samples := record(t)
	for _, smp := range samples {
		if err := j.Sample(&smp); err != nil {
			t.Fatal(err)
		}
	}

	type line struct {
		cycle int64
		state string
		addr  uint64
		ack   bool
	}
	var got []line
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var l line
		d := jx.DecodeBytes(sc.Bytes())
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "cycle":
				l.cycle, err = d.Int64()
			case "state":
				l.state, err = d.Str()
			case "addr":
				l.addr, err = d.UInt64()
			case "wb_ack":
				l.ack, err = d.Bool()
			default:
				err = d.Skip()
			}
			return err
		})
		if err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		got = append(got, l)
	}

	if len(got) != len(samples) {
		t.Fatalf("got %d lines, want %d", len(got), len(samples))
	}
	if diff := cmp.Diff(line{6, "DtackFinal", 0x81, true}, got[6], cmp.AllowUnexported(line{})); diff != "" {
		t.Errorf("line 6 mismatch (-want +got):\n%s", diff)
	}
}

func TestDiagram(t *testing.T) {
	d := trace.NewDiagram("", 4)
	samples := record(t)
	for _, smp := range samples {
		d.Sample(&smp)
	}

	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	// 4 cycles kept
	if got, want := img.Bounds().Dx(), 100+4*24+2*8; got != want {
		t.Errorf("width = %d, want %d", got, want)
	}
	if got, want := img.Bounds().Dy(), (len(trace.Signals())+1)*22+2*8; got != want {
		t.Errorf("height = %d, want %d", got, want)
	}
}
