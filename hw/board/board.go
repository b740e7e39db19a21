// Package board wires the bridge, the upstream master, the memories and an
// optional third-party bus master into a complete clocked system.
package board

import (
	"fmt"

	"github.com/go-faster/errors"

	"anubis/emu/log"
	"anubis/hw/bridge"
	"anubis/hw/hwio"
	"anubis/hw/m68k"
	"anubis/hw/wishbone"
	"anubis/rom"
)

// System is the top level of the simulated board.
//
// Every cycle runs in two steps: Settle recomputes all the combinational
// signals from the registered state, Tick then updates every register from
// the settled signals. Components never modify shared signals in Tick, so
// the order in which they are ticked doesn't matter.
type System struct {
	Up  wishbone.Bus
	Bus m68k.Bus

	Bridge  *bridge.Controller
	Master  *wishbone.Master
	Ext     *m68k.ExternalMaster
	Monitor *m68k.Monitor

	Mem  *hwio.Table
	IACK *hwio.Device

	cfg  Config
	mems map[string]*hwio.Mem
	out  bridge.Outputs

	ipl    uint8
	waited int   // cycles AS has been asserted
	cycle  int64 // current cycle number
}

// New builds a system according to cfg.
func New(variant bridge.Variant, cfg Config) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid board config")
	}

	s := &System{
		cfg:  cfg,
		mems: make(map[string]*hwio.Mem),
		Mem:  hwio.NewTable("legacy"),
		ipl:  cfg.IPL,
	}
	s.Bus = m68k.Idle()
	s.Bridge = bridge.New(variant, &s.Up, &s.Bus)
	s.Master = wishbone.NewMaster(&s.Up)
	s.Ext = m68k.NewExternalMaster(&s.Bus)
	s.Monitor = m68k.NewMonitor(&s.Bus)
	s.IACK = &hwio.Device{
		Name:   "iack",
		Flags:  hwio.ReadOnlyFlag,
		ReadCb: s.readVector,
		PeekCb: s.readVector,
	}

	if err := s.mapRegions(); err != nil {
		return nil, err
	}
	s.Reset()
	return s, nil
}

func (s *System) mapRegions() error {
	for _, rc := range s.cfg.Regions {
		begin, end := rc.Words()

		var mem *hwio.Mem
		switch rc.Kind {
		case KindROM:
			img, err := s.loadImage(rc)
			if err != nil {
				return err
			}
			mem = hwio.NewMem(rc.Name, rc.Depth, hwio.MemFlagReadOnly, img.Words)
			s.mems[rc.Name] = mem
		case KindRAM:
			mem = hwio.NewMem(rc.Name, rc.Depth, hwio.MemFlagReadWrite, nil)
			s.mems[rc.Name] = mem
		case KindMirror:
			mem = s.mems[rc.Target]
			if mem == nil {
				return fmt.Errorf("region %q: mirror target %q must be declared first", rc.Name, rc.Target)
			}
		}

		var flags hwio.MemFlags
		if rc.ReadOnly {
			flags = hwio.MemFlagReadOnly | hwio.MemFlagNoROLog
		}
		s.Mem.MapRange(hwio.Range{
			Name:   rc.Name,
			Begin:  begin,
			End:    end,
			IO:     mem,
			Rebase: rc.Rebase,
			Flags:  flags,
		})
	}
	return nil
}

func (s *System) loadImage(rc RegionConfig) (*rom.Image, error) {
	path := rc.File
	if path == "" {
		path = s.cfg.Image
	}
	if path == "" {
		log.ModMem.WarnZ("no image for rom, zero-filled").String("region", rc.Name).End()
		return rom.Blank(rc.Depth), nil
	}
	img, err := rom.Open(path, rc.FileOffset, rc.Depth)
	if err != nil {
		return nil, errors.Wrapf(err, "region %q", rc.Name)
	}
	if img.Missing > 0 {
		log.ModMem.WarnZ("rom image too short, zero-filled").
			String("region", rc.Name).
			String("file", path).
			Int("missing", img.Missing).
			End()
	}
	return img, nil
}

// readVector answers interrupt acknowledge cycles. The CPU puts the level
// being acknowledged in the low bits of the upstream address, the bridge
// shifts it one bit up on the legacy bus (A4-A2).
func (s *System) readVector(addr uint32) uint16 {
	if s.cfg.IACKVector != 0 {
		return uint16(s.cfg.IACKVector)
	}
	return 24 + uint16(addr>>1&7)
}

// Reset brings the whole system to its power-up state. ROM contents are
// kept, RAM is cleared.
func (s *System) Reset() {
	for _, m := range s.mems {
		m.Reset()
	}
	s.Up = wishbone.Bus{}
	s.Bus = m68k.Idle()
	s.Bridge.Reset()
	s.Master.Reset()
	s.Ext.Reset()
	s.Monitor.Reset()
	s.ipl = s.cfg.IPL
	s.waited = 0
	s.cycle = 0
	s.out = bridge.Outputs{}
}

func (s *System) Config() Config { return s.cfg }

// Cycle returns the number of the current clock cycle.
func (s *System) Cycle() int64 { return s.cycle }

// Outputs returns the bridge outputs of the last Settle.
func (s *System) Outputs() bridge.Outputs { return s.out }

// Memory returns the memory backing region name.
func (s *System) Memory(name string) (*hwio.Mem, bool) {
	m, ok := s.mems[name]
	return m, ok
}

// SetIPL sets the interrupt priority level driven by the board interrupt
// logic.
func (s *System) SetIPL(level uint8) {
	s.ipl = level & 7
}

// Settle propagates all the combinational signals of the current cycle.
func (s *System) Settle() {
	s.Master.Settle()
	s.Ext.Settle()
	s.out = s.Bridge.Settle()
	s.resolve()

	// IPL is forwarded from the resolved bus.
	s.out = s.Bridge.Settle()
}

// resolve computes the state of the legacy bus wires from all its drivers.
// The bridge output buffers are enabled by bus_asserted, the third-party
// master's by BGACK; undriven lines are pulled up.
func (s *System) resolve() {
	drv := m68k.Released()
	switch {
	case s.out.BusAsserted && s.Ext.Drive.Enabled:
		log.ModBus.ErrorZ("bus contention").Int64("cycle", s.cycle).End()
		drv = s.out.Drive
	case s.out.BusAsserted:
		drv = s.out.Drive
	case s.Ext.Drive.Enabled:
		drv = s.Ext.Drive
	}

	bus := &s.Bus
	bus.Addr = drv.Addr & m68k.AddrMask
	bus.FC = drv.FC
	bus.AS, bus.UDS, bus.LDS, bus.RW = drv.AS, drv.UDS, drv.LDS, drv.RW
	bus.BR, bus.BGACK, bus.BG = s.Ext.BR, s.Ext.BGACK, s.out.BG
	bus.IPL = s.ipl

	switch {
	case s.cfg.DTACKDelay == 0:
		bus.DTACK = m68k.Low
	case bus.AS.Asserted() && s.waited >= s.cfg.DTACKDelay:
		bus.DTACK = m68k.Low
	default:
		bus.DTACK = m68k.High
	}

	switch {
	case drv.DataEnabled:
		bus.Data = drv.Data
	case bus.FC == m68k.FCInterruptAck && bus.AS.Asserted():
		bus.Data = s.IACK.Read16(bus.Addr)
	case bus.Strobed():
		bus.Data = s.Mem.Read16(bus.Addr)
	default:
		bus.Data = s.Mem.Peek16(bus.Addr)
	}
}

// Tick is the rising clock edge.
func (s *System) Tick() {
	bus := &s.Bus
	if bus.AS.Asserted() && bus.Write() && bus.Strobed() && bus.DTACK.Asserted() &&
		bus.FC != m68k.FCInterruptAck {
		mask := hwio.LaneMask(bus.UDS.Asserted(), bus.LDS.Asserted())
		s.Mem.Write16(bus.Addr, bus.Data, mask)
	}

	s.Monitor.Tick()
	s.Bridge.Tick()
	s.Master.Tick()
	s.Ext.Tick()

	if bus.AS.Asserted() {
		s.waited++
	} else {
		s.waited = 0
	}
	s.cycle++
}

// Step runs one full clock cycle.
func (s *System) Step() {
	s.Settle()
	s.Tick()
}

// PeekWord reads the word at word address addr without side effects.
func (s *System) PeekWord(addr uint32) uint16 {
	return s.Mem.Peek16(addr & m68k.AddrMask)
}

// PokeWord writes the word at word address addr, bypassing read-only
// protections. Only memories can be poked.
func (s *System) PokeWord(addr uint32, val uint16) error {
	addr &= m68k.AddrMask
	r := s.Mem.Search(addr)
	if r == nil {
		return fmt.Errorf("no device at %#06x", addr)
	}
	mem, ok := r.IO.(*hwio.Mem)
	if !ok {
		return fmt.Errorf("%s is not a memory", r.Name)
	}
	mem.Poke16(r.DevAddr(addr), val)
	return nil
}
