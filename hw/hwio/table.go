package hwio

import (
	"fmt"

	"anubis/emu/log"
)

// log unmapped accesses (useful for debugging but verbose when software
// probes the address space)
const logUnmapped = false

// BankIO16 is implemented by anything that can be mapped on a 16-bit word
// addressed bus.
type BankIO16 interface {
	Read16(addr uint32) uint16
	// Peek16 reads without side effects (debugging/tracing).
	Peek16(addr uint32) uint16
	// Write16 writes the byte lanes of val selected by mask.
	Write16(addr uint32, val, mask uint16)
}

// A Range maps a BankIO16 over the inclusive word address interval
// [Begin, End].
type Range struct {
	Name       string
	Begin, End uint32
	IO         BankIO16

	// Rebase makes the device see addresses relative to Begin instead of
	// absolute bus addresses.
	Rebase bool

	// Flags restricts accesses through this range only, so that the same
	// memory can be mapped read-write in one range and read-only in another.
	Flags MemFlags
}

func (r *Range) Contains(addr uint32) bool {
	return addr >= r.Begin && addr <= r.End
}

func (r *Range) String() string {
	return fmt.Sprintf("%s[%06x-%06x]", r.Name, r.Begin, r.End)
}

func (r *Range) DevAddr(addr uint32) uint32 {
	if r.Rebase {
		return addr - r.Begin
	}
	return addr
}

// Table decodes addresses into mapped ranges. Ranges may overlap: they are
// searched in mapping order and the first match wins, like a priority
// encoder in front of the chip selects.
type Table struct {
	Name string

	// Unmapped, if not nil, receives accesses matching no range.
	Unmapped BankIO16

	ranges []Range
}

func NewTable(name string) *Table {
	t := new(Table)
	t.Name = name
	t.Reset()
	return t
}

func (t *Table) Reset() {
	t.ranges = nil
}

func (t *Table) MapRange(r Range) {
	if r.End < r.Begin {
		panic(fmt.Sprintf("invalid range %s", r.String()))
	}
	if r.IO == nil {
		panic(fmt.Sprintf("nil io for range %s", r.String()))
	}
	log.ModHwIo.DebugZ("mapping range").
		String("name", r.Name).
		Hex32("begin", r.Begin).
		Hex32("end", r.End).
		Bool("rebase", r.Rebase).
		String("bus", t.Name).
		End()
	t.ranges = append(t.ranges, r)
}

// MapMem maps mem over [begin, end], mirrored if the range is bigger than
// the memory.
func (t *Table) MapMem(begin, end uint32, mem *Mem, rebase bool) {
	t.MapRange(Range{Name: mem.Name, Begin: begin, End: end, IO: mem, Rebase: rebase})
}

func (t *Table) MapDevice(begin, end uint32, dev *Device) {
	t.MapRange(Range{Name: dev.Name, Begin: begin, End: end, IO: dev})
}

// Unmap removes all ranges named name.
func (t *Table) Unmap(name string) {
	ranges := t.ranges[:0]
	for _, r := range t.ranges {
		if r.Name != name {
			ranges = append(ranges, r)
		}
	}
	t.ranges = ranges
}

// Search returns the range decoding addr, or nil.
func (t *Table) Search(addr uint32) *Range {
	for i := range t.ranges {
		if t.ranges[i].Contains(addr) {
			return &t.ranges[i]
		}
	}
	return nil
}

// Read16 searches in the table for the device mapped at the given address
// and forwards the read to it.
func (t *Table) Read16(addr uint32) uint16 {
	r := t.Search(addr)
	if r == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Read16").
				String("name", t.Name).
				Hex32("addr", addr).
				End()
		}
		if t.Unmapped != nil {
			return t.Unmapped.Read16(addr)
		}
		return 0
	}
	return r.IO.Read16(r.DevAddr(addr))
}

// Peek16 is like Read16 without side effects.
func (t *Table) Peek16(addr uint32) uint16 {
	r := t.Search(addr)
	if r == nil {
		if t.Unmapped != nil {
			return t.Unmapped.Peek16(addr)
		}
		return 0
	}
	return r.IO.Peek16(r.DevAddr(addr))
}

func (t *Table) Write16(addr uint32, val, mask uint16) {
	r := t.Search(addr)
	if r == nil {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write16").
				String("name", t.Name).
				Hex32("addr", addr).
				Hex16("val", val).
				End()
		}
		if t.Unmapped != nil {
			t.Unmapped.Write16(addr, val, mask)
		}
		return
	}
	if r.Flags&MemFlagReadOnly != 0 {
		if r.Flags&MemFlagNoROLog == 0 {
			log.ModHwIo.ErrorZ("Write16 to read-only range").
				String("name", t.Name).
				String("range", r.Name).
				Hex32("addr", addr).
				Hex16("val", val).
				End()
		}
		return
	}
	r.IO.Write16(r.DevAddr(addr), val, mask)
}
