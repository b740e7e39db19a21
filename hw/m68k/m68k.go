// Package m68k models the 16-bit asynchronous 68000 bus on the legacy side
// of the bridge.
package m68k

import "fmt"

const (
	AddrWidth = 23 // A23-A1, word address
	AddrMask  = 1<<AddrWidth - 1
)

// Function codes.
const (
	FCUserData          uint8 = 1
	FCUserProgram       uint8 = 2
	FCSupervisorData    uint8 = 5
	FCSupervisorProgram uint8 = 6
	FCInterruptAck      uint8 = 7
)

// Line is the electrical level of an active-low control line.
type Line bool

const (
	High Line = true
	Low  Line = false
)

// Asserted reports whether an active-low line is asserted.
func (l Line) Asserted() bool { return l == Low }

// Assert returns the level asserting (or not) an active-low line.
func Assert(v bool) Line { return Line(!v) }

func (l Line) String() string {
	if l {
		return "1"
	}
	return "0"
}

// Bus holds the resolved state of the legacy bus wires for the current cycle,
// after combining every driver and the pull-ups.
type Bus struct {
	Addr uint32 // word address, AddrWidth bits
	Data uint16

	AS    Line
	UDS   Line
	LDS   Line
	RW    Line // High = read, Low = write
	DTACK Line

	FC  uint8
	IPL uint8 // interrupt priority level, 0 = none

	BR    Line
	BG    Line
	BGACK Line
}

// Idle returns the bus state with no driver, all lines pulled up.
func Idle() Bus {
	return Bus{
		AS: High, UDS: High, LDS: High, RW: High, DTACK: High,
		BR: High, BG: High, BGACK: High,
	}
}

// Write reports whether the current cycle is a write.
func (b *Bus) Write() bool { return b.RW == Low }

// Strobed reports whether any data strobe is asserted.
func (b *Bus) Strobed() bool {
	return b.UDS.Asserted() || b.LDS.Asserted()
}

// Drive is the set of bus lines a bus master may drive. Lines are only
// effective when Enabled (output enable of the tri-state buffers).
type Drive struct {
	Enabled bool

	Addr uint32
	FC   uint8
	AS   Line
	UDS  Line
	LDS  Line
	RW   Line

	// Data is driven only when DataEnabled.
	DataEnabled bool
	Data        uint16
}

// Released returns a Drive with all outputs disabled at their idle level.
func Released() Drive {
	return Drive{AS: High, UDS: High, LDS: High, RW: High}
}

// Phase is one 16-bit transfer on the legacy bus.
type Phase struct {
	Addr  uint32
	Upper bool // UDS asserted
	Lower bool // LDS asserted
	Write bool
	Data  uint16
	FC    uint8
	Cycle int64 // cycle DTACK was sampled
}

func (p Phase) String() string {
	dir := "R"
	if p.Write {
		dir = "W"
	}
	lanes := []byte("--")
	if p.Upper {
		lanes[0] = 'U'
	}
	if p.Lower {
		lanes[1] = 'L'
	}
	return fmt.Sprintf("%s %06x %s %04x fc=%d", dir, p.Addr, lanes, p.Data, p.FC)
}
