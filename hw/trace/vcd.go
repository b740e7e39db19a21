package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// VCD writes samples as a Value Change Dump, readable by waveform viewers
// such as GTKWave. Time is expressed in nanoseconds, the clock is traced as
// a square wave whose rising edge opens every cycle.
type VCD struct {
	w      *bufio.Writer
	c      io.Closer // may be nil
	period int64     // clock period in ns

	ids     []string
	prev    []uint64
	started bool
	err     error
}

// NewVCD creates a VCD writer for a clock running at hz. If w is an
// io.Closer it is closed by Close.
func NewVCD(w io.Writer, hz int64) *VCD {
	if hz <= 0 {
		hz = 25_000_000
	}
	v := &VCD{
		w:      bufio.NewWriter(w),
		period: max(2, 1_000_000_000/hz),
		ids:    make([]string, len(signals)+1),
		prev:   make([]uint64, len(signals)),
	}
	if c, ok := w.(io.Closer); ok {
		v.c = c
	}
	for i := range v.ids {
		v.ids[i] = vcdID(i)
	}
	return v
}

// vcdID returns the short identifier of the ith variable, made of printable
// ASCII characters.
func vcdID(i int) string {
	const first, n = '!', '~' - '!' + 1
	var id []byte
	for {
		id = append(id, byte(first+i%n))
		i /= n
		if i == 0 {
			return string(id)
		}
		i--
	}
}

func (v *VCD) printf(format string, args ...any) {
	if v.err != nil {
		return
	}
	_, v.err = fmt.Fprintf(v.w, format, args...)
}

func (v *VCD) header() {
	v.printf("$version anubis $end\n")
	v.printf("$timescale 1ns $end\n")
	v.printf("$scope module anubis $end\n")
	v.printf("$var wire 1 %s clk $end\n", v.ids[0])
	for i, sig := range signals {
		v.printf("$var wire %d %s %s $end\n", sig.width, v.ids[i+1], sig.name)
	}
	v.printf("$upscope $end\n")
	v.printf("$enddefinitions $end\n")
}

func (v *VCD) value(i int, width int, val uint64) {
	id := v.ids[i+1]
	if width == 1 {
		v.printf("%d%s\n", val&1, id)
		return
	}
	v.printf("b%s %s\n", strconv.FormatUint(val, 2), id)
}

// Sample dumps the signals of s that changed since the previous sample.
func (v *VCD) Sample(s *Sample) error {
	t := s.Cycle * v.period
	if !v.started {
		v.header()
		v.printf("#%d\n$dumpvars\n1%s\n", t, v.ids[0])
		for i, sig := range signals {
			v.prev[i] = sig.get(s)
			v.value(i, sig.width, v.prev[i])
		}
		v.printf("$end\n")
		v.started = true
	} else {
		v.printf("#%d\n1%s\n", t, v.ids[0])
		for i, sig := range signals {
			if val := sig.get(s); val != v.prev[i] {
				v.prev[i] = val
				v.value(i, sig.width, val)
			}
		}
	}
	v.printf("#%d\n0%s\n", t+v.period/2, v.ids[0])
	return v.err
}

// Close flushes the dump and closes the underlying writer, if any.
func (v *VCD) Close() error {
	if v.err == nil {
		v.err = v.w.Flush()
	}
	if v.c != nil {
		if err := v.c.Close(); err != nil && v.err == nil {
			v.err = err
		}
	}
	return v.err
}
