// Package trace records the signals of a board cycle after cycle and writes
// them out as VCD waveforms, JSON lines or a PNG timing diagram.
package trace

import (
	"anubis/emu/log"
	"anubis/hw/board"
	"anubis/hw/bridge"
	"anubis/hw/m68k"
)

var modTrace = log.NewModule("trace")

// Sample holds the settled signals of one clock cycle.
type Sample struct {
	Cycle int64

	// upstream
	Cyc, Stb, We bool
	Adr          uint32
	Sel          uint8
	DatW, DatR   uint32
	Ack          bool

	// bridge
	State       bridge.State
	BusAsserted bool

	// legacy bus
	Addr                    uint32
	Data                    uint16
	FC, IPL                 uint8
	AS, UDS, LDS, RW, DTACK m68k.Line
	BR, BG, BGACK           m68k.Line
}

// Capture samples the settled signals of s.
func Capture(s *board.System) Sample {
	up, bus := &s.Up, &s.Bus
	return Sample{
		Cycle:       s.Cycle(),
		Cyc:         up.Cyc,
		Stb:         up.Stb,
		We:          up.We,
		Adr:         up.Adr,
		Sel:         up.Sel,
		DatW:        up.DatW,
		DatR:        up.DatR,
		Ack:         up.Ack,
		State:       s.Bridge.State(),
		BusAsserted: s.Outputs().BusAsserted,
		Addr:        bus.Addr,
		Data:        bus.Data,
		FC:          bus.FC,
		IPL:         bus.IPL,
		AS:          bus.AS,
		UDS:         bus.UDS,
		LDS:         bus.LDS,
		RW:          bus.RW,
		DTACK:       bus.DTACK,
		BR:          bus.BR,
		BG:          bus.BG,
		BGACK:       bus.BGACK,
	}
}

// A Sink consumes samples.
type Sink interface {
	Sample(s *Sample) error
	Close() error
}

// signal describes how a traced signal is extracted from a Sample.
type signal struct {
	name  string
	width int
	get   func(s *Sample) uint64
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func line(l m68k.Line) uint64 { return b2u(bool(l)) }

// signals lists the traced signals, in display order.
var signals = []signal{
	{"wb_cyc", 1, func(s *Sample) uint64 { return b2u(s.Cyc) }},
	{"wb_stb", 1, func(s *Sample) uint64 { return b2u(s.Stb) }},
	{"wb_we", 1, func(s *Sample) uint64 { return b2u(s.We) }},
	{"wb_adr", 30, func(s *Sample) uint64 { return uint64(s.Adr) }},
	{"wb_sel", 4, func(s *Sample) uint64 { return uint64(s.Sel) }},
	{"wb_dat_w", 32, func(s *Sample) uint64 { return uint64(s.DatW) }},
	{"wb_dat_r", 32, func(s *Sample) uint64 { return uint64(s.DatR) }},
	{"wb_ack", 1, func(s *Sample) uint64 { return b2u(s.Ack) }},
	{"state", 4, func(s *Sample) uint64 { return uint64(s.State) }},
	{"bus_asserted", 1, func(s *Sample) uint64 { return b2u(s.BusAsserted) }},
	{"addr", m68k.AddrWidth, func(s *Sample) uint64 { return uint64(s.Addr) }},
	{"data", 16, func(s *Sample) uint64 { return uint64(s.Data) }},
	{"fc", 3, func(s *Sample) uint64 { return uint64(s.FC) }},
	{"ipl", 3, func(s *Sample) uint64 { return uint64(s.IPL) }},
	{"as_", 1, func(s *Sample) uint64 { return line(s.AS) }},
	{"uds_", 1, func(s *Sample) uint64 { return line(s.UDS) }},
	{"lds_", 1, func(s *Sample) uint64 { return line(s.LDS) }},
	{"rw_", 1, func(s *Sample) uint64 { return line(s.RW) }},
	{"dtack_", 1, func(s *Sample) uint64 { return line(s.DTACK) }},
	{"br_", 1, func(s *Sample) uint64 { return line(s.BR) }},
	{"bg_", 1, func(s *Sample) uint64 { return line(s.BG) }},
	{"bgack_", 1, func(s *Sample) uint64 { return line(s.BGACK) }},
}

// Signals returns the names of the traced signals.
func Signals() []string {
	names := make([]string, len(signals))
	for i := range signals {
		names[i] = signals[i].name
	}
	return names
}
