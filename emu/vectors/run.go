package vectors

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/sync/errgroup"

	"anubis/emu"
	"anubis/hw/m68k"
	"anubis/hw/wishbone"
)

// ErrMismatch is wrapped by the errors of failed checks.
var ErrMismatch = errors.New("mismatch")

// Report is the outcome of a vector.
type Report struct {
	File   string
	Name   string
	Cycles int64
	Err    error
}

func (r Report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("FAIL %s: %s: %v", r.File, r.Name, r.Err)
	}
	return fmt.Sprintf("ok   %s: %s (%d cycles)", r.File, r.Name, r.Cycles)
}

// RunFiles runs the vectors of all files, each on its own simulator built
// from cfg. At most parallel vectors run at the same time, 0 means one per
// CPU. Reports are returned in file order. The returned error only reports
// files that couldn't be loaded or a cancelled context, failed vectors are
// reported in their Report.
func RunFiles(ctx context.Context, cfg emu.Config, files []string, parallel int) ([]Report, error) {
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}

	type job struct {
		file string
		vec  Vector
	}
	var jobs []job
	for _, file := range files {
		vecs, err := LoadFile(file)
		if err != nil {
			return nil, err
		}
		for _, v := range vecs {
			jobs = append(jobs, job{file, v})
		}
	}

	reports := make([]Report, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	var mu sync.Mutex
	nfailed := 0
	for i, j := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cycles, err := j.vec.Run(cfg)
			reports[i] = Report{File: j.file, Name: j.vec.Name, Cycles: cycles, Err: err}
			if err != nil {
				mu.Lock()
				nfailed++
				mu.Unlock()
				modVectors.WarnZ("vector failed").
					String("file", j.file).
					String("name", j.vec.Name).
					Error("err", err).
					End()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return reports, err
	}

	modVectors.InfoZ("vectors done").
		Int("total", len(jobs)).
		Int("failed", nfailed).
		End()
	return reports, nil
}

// Run runs v on a new simulator built from cfg, and returns the number of
// cycles it took.
func (v *Vector) Run(cfg emu.Config) (int64, error) {
	if v.Variant != nil {
		cfg.Bridge.Variant = *v.Variant
	}
	if v.DTACKDelay != nil {
		cfg.Board.DTACKDelay = *v.DTACKDelay
	}
	// Trace outputs are shared files, vectors must not write them.
	cfg.Trace = emu.TraceConfig{}

	sim, err := emu.NewSimulator(cfg)
	if err != nil {
		return 0, err
	}
	defer sim.Close()

	for _, w := range v.Init {
		if err := sim.Poke(w.Addr, w.Data); err != nil {
			return 0, errors.Wrap(err, "init")
		}
	}
	for i := range v.Steps {
		if err := v.Steps[i].run(sim); err != nil {
			return sim.Cycle(), errors.Wrapf(err, "step %d (%s)", i, v.Steps[i].Op)
		}
	}

	var diffs []string
	for _, w := range v.Final {
		if got := sim.Peek(w.Addr); got != w.Data {
			diffs = append(diffs, fmt.Sprintf("[%06x] = %04x, want %04x", w.Addr, got, w.Data))
		}
	}
	if len(diffs) > 0 {
		return sim.Cycle(), errors.Wrapf(ErrMismatch, "final memory: %s", strings.Join(diffs, ", "))
	}
	return sim.Cycle(), nil
}

var phaseOpts = cmpopts.IgnoreFields(m68k.Phase{}, "Cycle", "FC")

func (s *Step) fc(def uint8) uint8 {
	if s.FC != nil {
		return *s.FC
	}
	return def
}

func (s *Step) run(sim *emu.Simulator) error {
	sim.Phases() // forget phases of previous steps

	var (
		res wishbone.Result
		err error
	)
	switch s.Op {
	case OpRead:
		res, err = sim.Transact(wishbone.Transaction{Adr: s.Adr, Sel: s.Sel, FC: s.fc(m68k.FCSupervisorData)})
	case OpWrite:
		res, err = sim.Transact(wishbone.Transaction{Adr: s.Adr, Sel: s.Sel, We: true, Data: s.Data, FC: s.fc(m68k.FCSupervisorData)})
	case OpIACK:
		var vec uint8
		vec, err = sim.IACK(s.Level)
		res.Data = uint32(vec)
	case OpRequestBus:
		var data []uint16
		data, err = sim.RequestBus(s.Hold, s.Accesses...)
		if err == nil && s.ExpectData != nil {
			if diff := cmp.Diff(s.ExpectData, data, cmpopts.EquateEmpty()); diff != "" {
				return errors.Wrapf(ErrMismatch, "read data (-want +got):\n%s", diff)
			}
		}
	case OpTick:
		err = sim.Run(s.N)
	}
	if err != nil {
		return err
	}

	if s.Expect != nil && res.Data != *s.Expect {
		return errors.Wrapf(ErrMismatch, "data = %08x, want %08x", res.Data, *s.Expect)
	}
	if s.Cycles != nil && res.Cycles() != *s.Cycles {
		return errors.Wrapf(ErrMismatch, "took %d cycles, want %d", res.Cycles(), *s.Cycles)
	}
	if s.Phases != nil {
		if diff := cmp.Diff(s.Phases, sim.Phases(), phaseOpts, cmpopts.EquateEmpty()); diff != "" {
			return errors.Wrapf(ErrMismatch, "phases (-want +got):\n%s", diff)
		}
	}
	return nil
}
