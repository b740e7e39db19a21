package board

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"anubis/hw/bridge"
	"anubis/hw/snapshot"
)

// ErrBusy is returned when saving the state of a system with bus masters
// having pending work.
var ErrBusy = errors.New("bus masters busy")

// Snapshot saves the state of s. Bus masters must be idle, ROM contents are
// not saved.
func (s *System) Snapshot() (*snapshot.System, error) {
	if s.Master.Busy() || s.Ext.Busy() {
		return nil, ErrBusy
	}
	state := &snapshot.System{
		Version: snapshot.Version,
		Variant: strings.ToLower(s.Bridge.Variant().String()),
		Cycle:   s.cycle,
		IPL:     s.ipl,
		Waited:  s.waited,
		Bridge: snapshot.Bridge{
			State:    uint8(s.Bridge.State()),
			DataHigh: s.Bridge.DataHigh(),
			DataLow:  s.Bridge.DataLow(),
		},
	}
	for name, m := range s.mems {
		if m.ReadOnly() {
			continue
		}
		state.Memories = append(state.Memories, snapshot.Memory{
			Name: name,
			Data: slices.Clone(m.Data),
		})
	}
	slices.SortFunc(state.Memories, func(a, b snapshot.Memory) int {
		return strings.Compare(a.Name, b.Name)
	})
	return state, nil
}

// Restore loads a state previously saved with Snapshot. Pending bus master
// work is dropped.
func (s *System) Restore(state *snapshot.System) error {
	variant, err := bridge.ParseVariant(state.Variant)
	if err != nil {
		return err
	}
	if variant != s.Bridge.Variant() {
		return errors.Errorf("snapshot of a %s bridge, system has a %s bridge", variant, s.Bridge.Variant())
	}
	if state.Bridge.State > uint8(bridge.GrantAckHeld) {
		return errors.Errorf("invalid bridge state %d", state.Bridge.State)
	}
	for _, sm := range state.Memories {
		m, ok := s.mems[sm.Name]
		if !ok || m.ReadOnly() {
			return errors.Errorf("no writable memory %q", sm.Name)
		}
		if len(sm.Data) != len(m.Data) {
			return errors.Errorf("memory %q: size mismatch, got %d words, want %d", sm.Name, len(sm.Data), len(m.Data))
		}
	}

	s.Reset()
	for _, sm := range state.Memories {
		copy(s.mems[sm.Name].Data, sm.Data)
	}
	s.Bridge.Restore(bridge.State(state.Bridge.State), state.Bridge.DataHigh, state.Bridge.DataLow)
	s.cycle = state.Cycle
	s.Master.SetCycle(s.cycle)
	s.Monitor.SetCycle(s.cycle)
	s.Ext.SetCycle(s.cycle)
	s.ipl = state.IPL & 7
	s.waited = state.Waited
	return nil
}
