package hwio_test

import (
	"testing"

	"anubis/hw/hwio"
)

// Unmapped
type openbus struct{}

func (ob *openbus) Read16(addr uint32) uint16             { return 0xD3D3 }
func (ob *openbus) Peek16(addr uint32) uint16             { return 0xD4D4 }
func (ob *openbus) Write16(addr uint32, val, mask uint16) {}

type testTable struct {
	t   testing.TB
	Bus *hwio.Table

	Boot *hwio.Mem
	RAM  *hwio.Mem
	IPL  *hwio.Mem
	DEV  *hwio.Device

	devval uint16
}

func newTestTable(tb testing.TB) *testTable {
	tbl := &testTable{t: tb}
	tbl.Boot = hwio.NewMem("boot", 16, hwio.MemFlagReadOnly, []uint16{0x1111, 0x2222, 0x3333, 0x4444})
	tbl.RAM = hwio.NewMem("ram", 0x100, hwio.MemFlagReadWrite, nil)
	tbl.IPL = hwio.NewMem("ipl", 0x100, hwio.MemFlagReadOnly, []uint16{0xCAFE, 0xBEEF})
	tbl.DEV = &hwio.Device{
		Name:    "dev",
		ReadCb:  func(addr uint32) uint16 { return 0xE100 | uint16(addr&0xff) },
		WriteCb: func(addr uint32, val, mask uint16) { tbl.devval = val & mask },
	}

	tbl.Bus = hwio.NewTable("bus")
	tbl.Bus.MapMem(0x0000, 0x0003, tbl.Boot, false)
	tbl.Bus.MapMem(0x0000, 0x0fff, tbl.RAM, false)
	tbl.Bus.MapRange(hwio.Range{Name: "ram-mirror", Begin: 0x1000, End: 0x1fff, IO: tbl.RAM, Flags: hwio.MemFlagReadOnly | hwio.MemFlagNoROLog})
	tbl.Bus.MapMem(0x7f00, 0x7fff, tbl.IPL, true)
	tbl.Bus.MapDevice(0x8000, 0x80ff, tbl.DEV)
	tbl.Bus.Unmapped = &openbus{}
	return tbl
}

func (tbl *testTable) wantRead16(addr uint32, want uint16) {
	tbl.t.Helper()

	if got := tbl.Bus.Read16(addr); got != want {
		tbl.t.Errorf("Read16(%06X) = %04X, want %04X", addr, got, want)
	}
}

func (tbl *testTable) wantPeek16(addr uint32, want uint16) {
	tbl.t.Helper()

	if got := tbl.Bus.Peek16(addr); got != want {
		tbl.t.Errorf("Peek16(%06X) = %04X, want %04X", addr, got, want)
	}
}

func TestTablePriority(t *testing.T) {
	tbl := newTestTable(t)

	// boot rom shadows the start of ram
	tbl.wantRead16(0x0000, 0x1111)
	tbl.wantRead16(0x0003, 0x4444)
	tbl.Bus.Write16(0x0002, 0xFFFF, 0xFFFF)
	tbl.wantRead16(0x0002, 0x3333)

	tbl.wantRead16(0x0004, 0x0000)
	tbl.Bus.Write16(0x0004, 0x1234, 0xFFFF)
	tbl.wantRead16(0x0004, 0x1234)
}

func TestTableMirror(t *testing.T) {
	tbl := newTestTable(t)

	tbl.Bus.Write16(0x0010, 0xABCD, 0xFFFF)
	tbl.wantRead16(0x0110, 0xABCD)
	tbl.wantRead16(0x1010, 0xABCD)

	// read-only mirror
	tbl.Bus.Write16(0x1010, 0x0000, 0xFFFF)
	tbl.wantRead16(0x0010, 0xABCD)
}

func TestTableRebase(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead16(0x7f00, 0xCAFE)
	tbl.wantRead16(0x7f01, 0xBEEF)
	tbl.wantPeek16(0x7f01, 0xBEEF)
}

func TestTableByteLanes(t *testing.T) {
	tbl := newTestTable(t)

	tbl.Bus.Write16(0x0020, 0x1234, 0xFFFF)
	tbl.Bus.Write16(0x0020, 0xAB00, hwio.LaneMask(true, false))
	tbl.wantRead16(0x0020, 0xAB34)
	tbl.Bus.Write16(0x0020, 0x00CD, hwio.LaneMask(false, true))
	tbl.wantRead16(0x0020, 0xABCD)
	tbl.Bus.Write16(0x0020, 0x0000, hwio.LaneMask(false, false))
	tbl.wantRead16(0x0020, 0xABCD)
}

func TestTableDevice(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead16(0x8042, 0xE142)
	tbl.wantPeek16(0x8042, 0x0000) // no peek callback
	tbl.Bus.Write16(0x8000, 0x5A5A, 0x00FF)
	if tbl.devval != 0x005A {
		t.Errorf("devval = %04X, want 005A", tbl.devval)
	}
}

func TestTableUnmapped(t *testing.T) {
	tbl := newTestTable(t)

	tbl.wantRead16(0x9000, 0xD3D3)
	tbl.wantPeek16(0x9000, 0xD4D4)

	tbl.Bus.Unmapped = nil
	tbl.wantRead16(0x9000, 0x0000)
}

func TestTableUnmap(t *testing.T) {
	tbl := newTestTable(t)

	tbl.Bus.Unmap("boot")
	tbl.wantRead16(0x0000, 0x0000) // now ram
	if r := tbl.Bus.Search(0x0001); r == nil || r.Name != "ram" {
		t.Errorf("Search(1) = %v, want ram", r)
	}
}

func TestMemPow2(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("NewMem with non pow2 depth should panic")
		}
	}()
	hwio.NewMem("bad", 3, 0, nil)
}
