package wishbone

import "anubis/emu/log"

// Master is a simple non-pipelined Wishbone master issuing queued
// transactions one at a time. It stands in for the CPU core driving the
// bridge.
//
// Master follows the two phase clocking model used across the simulator:
// Settle drives the bus from registered state, Tick samples the bus at the
// clock edge.
type Master struct {
	bus *Bus

	queue []Transaction
	cur   *Transaction
	seq   uint64 // sequence number of cur
	start int64
	cycle int64

	// OnDone, if set, is called for every completed transaction.
	OnDone func(Result)
}

func NewMaster(bus *Bus) *Master {
	return &Master{bus: bus}
}

// Enqueue adds transactions to the issue queue. It returns the sequence
// number the last of them will carry in its Result.
func (m *Master) Enqueue(txns ...Transaction) uint64 {
	m.queue = append(m.queue, txns...)
	return m.seq + uint64(len(m.queue))
}

// Busy reports whether a transaction is in flight or queued.
func (m *Master) Busy() bool {
	return m.cur != nil || len(m.queue) > 0
}

// Current returns the in-flight transaction, if any.
func (m *Master) Current() (Transaction, bool) {
	if m.cur == nil {
		return Transaction{}, false
	}
	return *m.cur, true
}

func (m *Master) Reset() {
	m.queue = nil
	m.cur = nil
	m.cycle = 0
	m.bus.Release()
}

// SetCycle sets the current cycle number, used to timestamp results.
func (m *Master) SetCycle(n int64) { m.cycle = n }

func (m *Master) Settle() {
	if m.cur == nil {
		m.bus.Release()
		return
	}
	m.bus.Cyc = true
	m.bus.Stb = true
	m.bus.We = m.cur.We
	m.bus.Adr = m.cur.Adr & AddrMask
	m.bus.Sel = m.cur.Sel & SelMask
	m.bus.DatW = m.cur.Data
	m.bus.FC = m.cur.FC & 0x7
}

func (m *Master) Tick() {
	defer func() { m.cycle++ }()

	if m.cur != nil {
		if !m.bus.Ack {
			return
		}
		res := Result{
			Transaction: *m.cur,
			Seq:         m.seq,
			Data:        m.bus.DatR,
			Start:       m.start,
			End:         m.cycle,
		}
		m.cur = nil
		log.ModBus.DebugZ("transaction done").
			Stringer("txn", res.Transaction).
			Hex32("data", res.Data).
			Int64("cycles", res.Cycles()).
			End()
		if m.OnDone != nil {
			m.OnDone(res)
		}
		return
	}

	if len(m.queue) > 0 {
		txn := m.queue[0]
		m.cur = &txn
		m.queue = m.queue[1:]
		m.seq++
		m.start = m.cycle + 1
	}
}
