package hwio

import (
	"fmt"

	"anubis/emu/log"
)

type MemFlags int

const (
	MemFlagReadWrite MemFlags = 0
	MemFlagReadOnly  MemFlags = (1 << iota) // writes are dropped
	MemFlagNoROLog                          // skip logging attempts to write when configured to readonly
)

// Mem is a linear array of 16-bit words indexed by word address. Accesses
// beyond the buffer size wrap around, so a Mem mapped over a range bigger
// than itself appears mirrored.
type Mem struct {
	Name  string   // name of the memory area (for debugging)
	Data  []uint16 // actual memory buffer, size must be a power of 2
	Flags MemFlags

	mask uint32
}

// NewMem creates a memory block holding depth words. If init is not nil, its
// content is copied at the start of the block.
func NewMem(name string, depth int, flags MemFlags, init []uint16) *Mem {
	if depth <= 0 || depth&(depth-1) != 0 {
		panic(fmt.Sprintf("memory %s: depth %d is not pow2", name, depth))
	}
	m := &Mem{
		Name:  name,
		Data:  make([]uint16, depth),
		Flags: flags,
		mask:  uint32(depth - 1),
	}
	copy(m.Data, init)
	return m
}

func (m *Mem) ReadOnly() bool {
	return m.Flags&MemFlagReadOnly != 0
}

func (m *Mem) Read16(addr uint32) uint16 {
	return m.Data[addr&m.mask]
}

func (m *Mem) Peek16(addr uint32) uint16 {
	return m.Data[addr&m.mask]
}

// Write16 writes the byte lanes of val selected by mask.
func (m *Mem) Write16(addr uint32, val, mask uint16) {
	if m.Flags&MemFlagReadOnly != 0 {
		if m.Flags&MemFlagNoROLog == 0 {
			log.ModMem.ErrorZ("Write16 to readonly memory").
				String("name", m.Name).
				Hex32("addr", addr).
				Hex16("val", val).
				End()
		}
		return
	}
	p := &m.Data[addr&m.mask]
	*p = *p&^mask | val&mask
}

// Reset clears a writable memory. Read-only memories keep their content.
func (m *Mem) Reset() {
	if m.ReadOnly() {
		return
	}
	clear(m.Data)
}

// Poke16 writes a whole word regardless of the memory flags.
func (m *Mem) Poke16(addr uint32, val uint16) {
	m.Data[addr&m.mask] = val
}
