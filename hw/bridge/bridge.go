// Package bridge implements the controller bridging a 32-bit Wishbone master
// to the 16-bit asynchronous 68000 bus.
//
// A 32-bit transfer is split into at most two 16-bit phases on the legacy
// bus, upper half first. The controller is not pipelined: a new transfer is
// admitted only from the Idle state, after the previous one has been
// acknowledged upstream. There is no timeout, a legacy target that never
// asserts DTACK stalls the controller forever.
package bridge

import (
	"fmt"
	"strings"

	"anubis/emu/log"
	"anubis/hw/hwio"
	"anubis/hw/m68k"
	"anubis/hw/wishbone"
)

// Outputs holds the combinational outputs of the controller for the current
// cycle. They're a pure function of the controller registers and its inputs
// and are never stored.
type Outputs struct {
	Drive       m68k.Drive // legacy bus lines, only effective if BusAsserted
	BG          m68k.Line
	BusAsserted bool

	Ack  bool
	DatR uint32
}

// Controller is the bridge FSM. It reads its upstream inputs from a
// wishbone.Bus and its legacy inputs (data, DTACK, IPL, BR, BGACK) from the
// resolved m68k.Bus.
type Controller struct {
	variant Variant
	up      *wishbone.Bus
	bus     *m68k.Bus

	// registers
	state    State
	dataHigh uint16 // read word halves, latched on DTACK
	dataLow  uint16
}

func New(variant Variant, up *wishbone.Bus, bus *m68k.Bus) *Controller {
	return &Controller{
		variant: variant,
		up:      up,
		bus:     bus,
	}
}

func (c *Controller) Reset() {
	c.state = Idle
	c.dataHigh = 0
	c.dataLow = 0
}

func (c *Controller) Variant() Variant { return c.variant }
func (c *Controller) State() State     { return c.state }

// DataHigh returns the content of the upper half read data register.
func (c *Controller) DataHigh() uint16 { return c.dataHigh }

// DataLow returns the content of the lower half read data register.
func (c *Controller) DataLow() uint16 { return c.dataLow }

// Restore loads the controller registers, used by snapshots.
func (c *Controller) Restore(state State, dataHigh, dataLow uint16) {
	c.state = state
	c.dataHigh = dataHigh
	c.dataLow = dataLow
}

// iack reports whether the upstream request is an interrupt acknowledge
// cycle the controller must run as a single 16-bit phase.
func (c *Controller) iack() bool {
	return c.variant == Arbiter && c.up.FC == m68k.FCInterruptAck
}

// needsHigh reports whether the upper 16 bits are selected.
func needsHigh(sel uint8) bool {
	return hwio.GetBit8(sel, 3) || hwio.GetBit8(sel, 2)
}

// needsLow reports whether the lower 16 bits are selected.
func needsLow(sel uint8) bool {
	return hwio.GetBit8(sel, 1) || hwio.GetBit8(sel, 0)
}

func (c *Controller) addrHigh() uint32 {
	return (c.up.Adr << 1) & m68k.AddrMask
}

func (c *Controller) addrLow() uint32 {
	return ((c.up.Adr << 1) + 1) & m68k.AddrMask
}

// Outputs computes the combinational outputs for the current cycle.
func (c *Controller) Outputs() Outputs {
	out := Outputs{
		Drive:       m68k.Released(),
		BG:          m68k.High,
		BusAsserted: c.state.Owned(),
		DatR:        hwio.Cat16(c.dataLow, c.dataHigh),
	}
	d := &out.Drive
	d.Enabled = out.BusAsserted
	d.FC = c.up.FC & 0x7

	sel := c.up.Sel
	switch c.state {
	case Idle:
	case AddrHigh:
		d.Addr = c.addrHigh()
	case StrobeHighSetup:
		d.Addr = c.addrHigh()
		d.RW = m68k.Assert(c.up.We)
		d.AS = m68k.Low
	case StrobeHigh:
		d.Addr = c.addrHigh()
		d.RW = m68k.Assert(c.up.We)
		d.UDS = m68k.Assert(hwio.GetBit8(sel, 3))
		d.LDS = m68k.Assert(hwio.GetBit8(sel, 2))
		d.AS = m68k.Low
		d.Data = hwio.Hi16(c.up.DatW)
	case AddrLow:
		d.Addr = c.addrLow()
	case StrobeLowSetup:
		d.Addr = c.addrLow()
		d.RW = m68k.Assert(c.up.We)
		d.AS = m68k.Low
	case StrobeLow:
		iack := c.iack()
		d.Addr = c.addrLow()
		d.RW = m68k.Assert(c.up.We)
		d.UDS = m68k.Assert(hwio.GetBit8(sel, 1) || iack)
		d.LDS = m68k.Assert(hwio.GetBit8(sel, 0) || iack)
		d.AS = m68k.Low
		d.Data = hwio.Lo16(c.up.DatW)
	case DtackFinal:
		d.Addr = c.addrLow()
		out.Ack = true
	case GrantWait:
		out.BG = m68k.Low
	case GrantAckHeld:
	}

	// data buffers face the bus only on writes
	d.DataEnabled = d.RW == m68k.Low && out.BusAsserted
	return out
}

// Settle drives the upstream bus from the current outputs and returns them
// for the top level wiring to resolve the legacy bus.
func (c *Controller) Settle() Outputs {
	out := c.Outputs()
	c.up.Ack = out.Ack
	c.up.DatR = out.DatR
	c.up.Err = false
	c.up.Rty = false
	c.up.IPL = c.bus.IPL
	return out
}

// next is the FSM transition function.
func (c *Controller) next() State {
	up, bus := c.up, c.bus
	dtack := bus.DTACK.Asserted()

	switch c.state {
	case Idle:
		if c.variant == Arbiter && bus.BR.Asserted() {
			return GrantWait
		}
		if !up.Request() {
			return Idle
		}
		if c.iack() || !needsHigh(up.Sel) {
			return AddrLow
		}
		return AddrHigh

	case AddrHigh:
		if up.We {
			return StrobeHighSetup
		}
		return StrobeHigh
	case StrobeHighSetup:
		return StrobeHigh
	case StrobeHigh:
		if !dtack {
			return StrobeHigh
		}
		if needsLow(up.Sel) {
			return AddrLow
		}
		return DtackFinal

	case AddrLow:
		if up.We {
			return StrobeLowSetup
		}
		return StrobeLow
	case StrobeLowSetup:
		return StrobeLow
	case StrobeLow:
		if !dtack {
			return StrobeLow
		}
		return DtackFinal

	case DtackFinal:
		return Idle

	case GrantWait:
		if bus.BGACK.Asserted() {
			return GrantAckHeld
		}
		if !bus.BR.Asserted() {
			return Idle
		}
		return GrantWait
	case GrantAckHeld:
		if !bus.BGACK.Asserted() {
			return Idle
		}
		return GrantAckHeld
	}
	panic(fmt.Sprintf("bridge: invalid state %d", c.state))
}

// Tick advances the controller by one clock edge.
func (c *Controller) Tick() {
	next := c.next()

	if c.bus.DTACK.Asserted() {
		switch c.state {
		case StrobeHigh:
			c.dataHigh = c.bus.Data
		case StrobeLow:
			c.dataLow = c.bus.Data
		}
	}

	if next != c.state {
		log.ModBridge.DebugZ("transition").
			Stringer("from", c.state).
			Stringer("to", next).
			Hex32("adr", c.up.Adr).
			Hex8("sel", c.up.Sel).
			End()
		switch next {
		case GrantWait:
			log.ModArb.InfoZ("bus requested, granting").End()
		case Idle:
			if c.state == GrantAckHeld || c.state == GrantWait {
				log.ModArb.InfoZ("bus released").End()
			}
		}
	}
	c.state = next
}

// ParseVariant parses a variant name, case insensitive.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "", "plain":
		return Plain, nil
	case "arbiter":
		return Arbiter, nil
	}
	return 0, fmt.Errorf("unknown bridge variant %q", s)
}
