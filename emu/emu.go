// Package emu runs a simulated anubis board: it builds the system from a
// configuration, clocks it, drives transactions through the bridge and
// feeds the trace outputs.
package emu

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/go-faster/errors"

	"anubis/emu/log"
	"anubis/hw/board"
	"anubis/hw/bridge"
	"anubis/hw/m68k"
	"anubis/hw/snapshot"
	"anubis/hw/trace"
	"anubis/hw/wishbone"
)

// ErrStalled is returned when the bus doesn't make progress within the
// configured number of cycles, typically because no device ever asserts
// DTACK.
var ErrStalled = errors.New("bus stalled")

// ErrNoArbiter is returned when a third-party master requests the bus from a
// bridge that never grants it.
var ErrNoArbiter = errors.New("bridge has no bus arbiter")

// Simulator owns a board and clocks it. All its methods are safe for
// concurrent use.
type Simulator struct {
	mu sync.Mutex

	Sys   *board.System
	cfg   Config
	ctx   context.Context
	sinks []trace.Sink
	last  wishbone.Result
}

// NewSimulator builds a simulator from cfg and opens its trace outputs.
func NewSimulator(cfg Config) (*Simulator, error) {
	sys, err := board.New(cfg.Bridge.Variant, cfg.Board)
	if err != nil {
		return nil, err
	}

	sim := &Simulator{Sys: sys, cfg: cfg, ctx: context.Background()}
	if err := sim.openTraces(); err != nil {
		sim.Close()
		return nil, err
	}

	log.ModEmu.InfoZ("simulator ready").
		Stringer("variant", cfg.Bridge.Variant).
		Int("regions", len(cfg.Board.Regions)).
		Int("stall_limit", cfg.Sim.StallLimit).
		End()
	return sim, nil
}

func (sim *Simulator) openTraces() error {
	tc := sim.cfg.Trace
	if tc.VCD != "" {
		f, err := os.Create(tc.VCD)
		if err != nil {
			return errors.Wrap(err, "vcd trace")
		}
		sim.AddSink(trace.NewVCD(f, sim.cfg.Sim.ClockHz))
	}
	if tc.JSON != "" {
		f, err := os.Create(tc.JSON)
		if err != nil {
			return errors.Wrap(err, "json trace")
		}
		sim.AddSink(trace.NewJSON(f))
	}
	if tc.PNG != "" {
		sim.AddSink(trace.NewDiagram(tc.PNG, tc.PNGCycles))
	}
	return nil
}

// AddSink adds a trace output, fed with the signals of every cycle.
func (sim *Simulator) AddSink(s trace.Sink) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	sim.sinks = append(sim.sinks, s)
}

// AddLogContext implements log.Context.
func (sim *Simulator) AddLogContext(z *log.EntryZ) {
	z.Int64("cycle", sim.Sys.Cycle())
}

func (sim *Simulator) Config() Config { return sim.cfg }

// SetContext sets the context checked while clocking the system. Once ctx is
// done, Run and the bus operations return its error. A nil ctx removes it.
func (sim *Simulator) SetContext(ctx context.Context) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	sim.ctx = ctx
}

// Close flushes and closes the trace outputs.
func (sim *Simulator) Close() error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	var err error
	for _, s := range sim.sinks {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	sim.sinks = nil
	return err
}

func (sim *Simulator) step() error {
	if err := sim.ctx.Err(); err != nil {
		return err
	}
	sim.Sys.Settle()
	if len(sim.sinks) > 0 {
		smp := trace.Capture(sim.Sys)
		for _, s := range sim.sinks {
			if err := s.Sample(&smp); err != nil {
				return errors.Wrap(err, "trace")
			}
		}
	}
	sim.Sys.Tick()
	return nil
}

// Run runs n clock cycles.
func (sim *Simulator) Run(n int) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	for range n {
		if err := sim.step(); err != nil {
			return err
		}
	}
	return nil
}

// Cycle returns the current cycle number.
func (sim *Simulator) Cycle() int64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.Sys.Cycle()
}

// until clocks the system until done returns true. It gives up with
// ErrStalled if the stall limit is reached first.
func (sim *Simulator) until(done func() bool) error {
	limit := sim.cfg.Sim.StallLimit
	for n := 0; !done(); n++ {
		if limit > 0 && n >= limit {
			st := sim.Sys.Bridge.State()
			log.ModEmu.WarnZ("bus stalled").
				Stringer("state", st).
				Bool("dtack_wait", st.Strobing()).
				Int("cycles", n).
				End()
			return errors.Wrapf(ErrStalled, "bridge in %s for %d cycles", st, n)
		}
		if err := sim.step(); err != nil {
			return err
		}
	}
	return nil
}

// Transact runs txn through the bridge and waits for its completion.
func (sim *Simulator) Transact(txn wishbone.Transaction) (wishbone.Result, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.transact(txn)
}

// A transaction left over by a stall is still issued first, its result is
// dropped.
func (sim *Simulator) transact(txn wishbone.Transaction) (wishbone.Result, error) {
	var seq uint64
	done := false
	sim.Sys.Master.OnDone = func(r wishbone.Result) {
		if r.Seq != seq {
			log.ModEmu.WarnZ("dropping stale result").
				Stringer("txn", r.Transaction).
				Hex32("data", r.Data).
				End()
			return
		}
		sim.last = r
		done = true
	}
	defer func() { sim.Sys.Master.OnDone = nil }()

	seq = sim.Sys.Master.Enqueue(txn)
	if err := sim.until(func() bool { return done }); err != nil {
		return wishbone.Result{}, err
	}
	return sim.last, nil
}

// Read performs a read of the upstream word at adr with byte enables sel.
func (sim *Simulator) Read(adr uint32, sel uint8, fc uint8) (uint32, error) {
	res, err := sim.Transact(wishbone.Transaction{Adr: adr, Sel: sel, FC: fc})
	return res.Data, err
}

// Write performs a write of the upstream word at adr with byte enables sel.
func (sim *Simulator) Write(adr uint32, sel uint8, val uint32, fc uint8) error {
	_, err := sim.Transact(wishbone.Transaction{Adr: adr, Sel: sel, We: true, Data: val, FC: fc})
	return err
}

// IACK runs an interrupt acknowledge cycle for level and returns the vector
// number answered on the legacy bus.
func (sim *Simulator) IACK(level uint8) (uint8, error) {
	// The CPU puts the level in the low bits of an all ones address.
	adr := wishbone.AddrMask&^7 | uint32(level&7)
	res, err := sim.Transact(wishbone.Transaction{Adr: adr, Sel: 0b0011, FC: m68k.FCInterruptAck})
	return uint8(res.Data), err
}

// RequestBus has the external master request the legacy bus, perform ops
// and hold the bus for hold more cycles. It returns once the external master
// has released the bus, with the data of the read accesses.
func (sim *Simulator) RequestBus(hold int, ops ...m68k.Access) ([]uint16, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if sim.Sys.Bridge.Variant() == bridge.Plain {
		return nil, ErrNoArbiter
	}

	ext := sim.Sys.Ext
	nreads := len(ext.Reads)
	ext.Request(hold, ops...)
	if err := sim.until(func() bool { return !ext.Busy() }); err != nil {
		return nil, err
	}

	var data []uint16
	for _, p := range ext.Reads[nreads:] {
		data = append(data, p.Data)
	}
	return data, nil
}

// Drain clocks the system until all bus masters are idle.
func (sim *Simulator) Drain() error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.until(func() bool {
		return !sim.Sys.Master.Busy() && !sim.Sys.Ext.Busy()
	})
}

func (sim *Simulator) SetIPL(level uint8) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	sim.Sys.SetIPL(level)
}

// Peek reads the legacy word at word address addr, without bus cycle.
func (sim *Simulator) Peek(addr uint32) uint16 {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.Sys.PeekWord(addr)
}

// Poke writes the legacy word at word address addr, without bus cycle.
func (sim *Simulator) Poke(addr uint32, val uint16) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.Sys.PokeWord(addr, val)
}

// Phases returns the legacy bus phases recorded since the last call.
func (sim *Simulator) Phases() []m68k.Phase {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	phases := append([]m68k.Phase(nil), sim.Sys.Monitor.Phases...)
	sim.Sys.Monitor.Clear()
	return phases
}

func (sim *Simulator) Reset() {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	log.ModEmu.InfoZ("reset").End()
	sim.Sys.Reset()
}

// SaveSnapshot writes the state of the system to w.
func (sim *Simulator) SaveSnapshot(w io.Writer) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	state, err := sim.Sys.Snapshot()
	if err != nil {
		return err
	}
	return state.Save(w)
}

// LoadSnapshot restores a state saved with SaveSnapshot.
func (sim *Simulator) LoadSnapshot(r io.Reader) error {
	state, err := snapshot.Load(r)
	if err != nil {
		return err
	}

	sim.mu.Lock()
	defer sim.mu.Unlock()

	return sim.Sys.Restore(state)
}
