package m68k

import "anubis/emu/log"

// Access is a single word access performed by an ExternalMaster.
type Access struct {
	Addr  uint32
	Write bool
	Data  uint16
	Upper bool
	Lower bool
}

type extState uint8

const (
	extIdle extState = iota
	extRequest
	extOwn
)

// ExternalMaster is a third-party bus master competing with the bridge for
// the legacy bus. It requests the bus with BR, takes it with BGACK once BG
// is seen, runs its accesses, holds the bus for a number of extra cycles and
// finally releases BGACK.
type ExternalMaster struct {
	bus *Bus

	state   extState
	ops     []Access
	hold    int
	strobed bool // current access strobed during this cycle

	BR    Line
	BGACK Line
	Drive Drive

	// Reads collects the phases of the read accesses, in order.
	Reads []Phase

	cycle int64
}

func NewExternalMaster(bus *Bus) *ExternalMaster {
	em := &ExternalMaster{bus: bus}
	em.Reset()
	return em
}

func (em *ExternalMaster) Reset() {
	em.state = extIdle
	em.ops = nil
	em.hold = 0
	em.strobed = false
	em.BR = High
	em.BGACK = High
	em.Drive = Released()
	em.Reads = nil
	em.cycle = 0
}

// Request queues a bus request: ops are performed once the bus is granted,
// then the bus is held for hold more cycles.
func (em *ExternalMaster) Request(hold int, ops ...Access) {
	em.ops = append(em.ops, ops...)
	em.hold = hold
	if em.state == extIdle {
		em.state = extRequest
	}
}

// Busy reports whether the master is requesting or owning the bus.
func (em *ExternalMaster) Busy() bool {
	return em.state != extIdle
}

// Owner reports whether the master currently owns the bus.
func (em *ExternalMaster) Owner() bool {
	return em.state == extOwn
}

func (em *ExternalMaster) SetCycle(n int64) { em.cycle = n }

func (em *ExternalMaster) Settle() {
	em.Drive = Released()
	switch em.state {
	case extIdle:
		em.BR, em.BGACK = High, High
	case extRequest:
		em.BR, em.BGACK = Low, High
	case extOwn:
		em.BR, em.BGACK = High, Low
		em.Drive.Enabled = true
		if len(em.ops) == 0 || !em.strobed {
			// address strobe gap between accesses
			return
		}
		op := em.ops[0]
		em.Drive.Addr = op.Addr & AddrMask
		em.Drive.AS = Low
		em.Drive.UDS = Assert(op.Upper)
		em.Drive.LDS = Assert(op.Lower)
		em.Drive.RW = Assert(op.Write)
		em.Drive.DataEnabled = op.Write
		em.Drive.Data = op.Data
	}
}

func (em *ExternalMaster) Tick() {
	defer func() { em.cycle++ }()

	switch em.state {
	case extRequest:
		if em.bus.BG.Asserted() {
			log.ModArb.DebugZ("external master granted").Int64("cycle", em.cycle).End()
			em.state = extOwn
			em.strobed = false
		}
	case extOwn:
		if len(em.ops) == 0 {
			if em.hold > 0 {
				em.hold--
				return
			}
			log.ModArb.DebugZ("external master releases bus").Int64("cycle", em.cycle).End()
			em.state = extIdle
			return
		}
		if !em.strobed {
			em.strobed = true
			return
		}
		if !em.bus.DTACK.Asserted() {
			return
		}
		op := em.ops[0]
		if !op.Write {
			em.Reads = append(em.Reads, Phase{
				Addr:  op.Addr & AddrMask,
				Upper: op.Upper,
				Lower: op.Lower,
				Data:  em.bus.Data,
				Cycle: em.cycle,
			})
		}
		em.ops = em.ops[1:]
		em.strobed = false
	}
}
