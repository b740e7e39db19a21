// Package wishbone models the upstream side of the bridge: a 32-bit,
// byte-granular Wishbone classic bus as exposed by the ao68000 soft core.
package wishbone

import "fmt"

const (
	AddrWidth   = 30 // word address bits
	DataWidth   = 32
	Granularity = 8
	SelWidth    = DataWidth / Granularity

	AddrMask = 1<<AddrWidth - 1
	SelMask  = 1<<SelWidth - 1
)

// Bus holds the signals of a Wishbone interface for the current cycle.
// Besides the standard signals it carries the 68000 function code and
// interrupt priority level sidebands of the ao68000 core.
type Bus struct {
	// master -> slave
	Cyc  bool
	Stb  bool
	We   bool
	Adr  uint32 // word address, AddrWidth bits
	Sel  uint8  // byte enables, bit n selects DatW[8n+7:8n]
	DatW uint32
	FC   uint8

	// slave -> master
	DatR uint32
	Ack  bool
	Err  bool
	Rty  bool
	IPL  uint8
}

// Request reports whether the master currently requests a transfer.
func (b *Bus) Request() bool {
	return b.Cyc && b.Stb
}

// Release deasserts all master driven signals.
func (b *Bus) Release() {
	b.Cyc, b.Stb, b.We = false, false, false
	b.Adr, b.Sel, b.DatW, b.FC = 0, 0, 0, 0
}

// Transaction is a single upstream transfer request.
type Transaction struct {
	Adr  uint32 // word address
	Sel  uint8
	We   bool
	Data uint32 // write data
	FC   uint8
}

func (t Transaction) String() string {
	dir := "R"
	if t.We {
		dir = "W"
	}
	s := fmt.Sprintf("%s adr=%08x sel=%04b fc=%d", dir, t.Adr, t.Sel, t.FC)
	if t.We {
		s += fmt.Sprintf(" data=%08x", t.Data)
	}
	return s
}

// Result is a completed transaction.
type Result struct {
	Transaction
	Seq   uint64 // issue order, starting at 1
	Data  uint32 // read data as sampled with ACK
	Start int64  // cycle the request was first presented
	End   int64  // cycle ACK was sampled
}

// Cycles returns the number of clock cycles the transaction took.
func (r Result) Cycles() int64 {
	return r.End - r.Start + 1
}
