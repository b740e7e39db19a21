package m68k

// Monitor watches the resolved bus and records every completed phase, that
// is every strobed cycle acknowledged by DTACK. It never drives anything.
type Monitor struct {
	bus *Bus

	inPhase bool
	cycle   int64

	Phases []Phase

	// OnPhase, if set, is called for every recorded phase.
	OnPhase func(Phase)
}

func NewMonitor(bus *Bus) *Monitor {
	return &Monitor{bus: bus}
}

func (m *Monitor) Reset() {
	m.inPhase = false
	m.cycle = 0
	m.Phases = nil
}

// Clear forgets recorded phases.
func (m *Monitor) Clear() {
	m.Phases = m.Phases[:0]
}

// SetCycle sets the current cycle number, used to timestamp phases.
func (m *Monitor) SetCycle(n int64) { m.cycle = n }

func (m *Monitor) Tick() {
	defer func() { m.cycle++ }()

	if !m.bus.AS.Asserted() {
		m.inPhase = false
		return
	}
	if m.inPhase || !m.bus.Strobed() || !m.bus.DTACK.Asserted() {
		return
	}

	m.inPhase = true
	p := Phase{
		Addr:  m.bus.Addr,
		Upper: m.bus.UDS.Asserted(),
		Lower: m.bus.LDS.Asserted(),
		Write: m.bus.Write(),
		Data:  m.bus.Data,
		FC:    m.bus.FC,
		Cycle: m.cycle,
	}
	m.Phases = append(m.Phases, p)
	if m.OnPhase != nil {
		m.OnPhase(p)
	}
}
