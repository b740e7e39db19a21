package board

import (
	"fmt"
	"io"
	"strings"
)

// Dir is the direction of a pin resource, as seen from the FPGA.
type Dir uint8

const (
	In Dir = iota
	Out
	InOut
)

func (d Dir) String() string {
	switch d {
	case In:
		return "i"
	case Out:
		return "o"
	case InOut:
		return "io"
	}
	return "?"
}

// Resource is a group of pins of the ULX3S GPIO connector carrying one bus
// signal. Pins are listed LSB first, using the connector pair naming ("24+"
// is the positive pin of pair 24).
type Resource struct {
	Name string
	Pins []string
	Dir  Dir
}

// Connector is the ULX3S connector the legacy bus is wired to.
const Connector = "gpio0"

// Resources is the pin map of the anubis carrier board.
//
// DTACK is routed to the pin originally meant for RESET (rev 1 board
// errata), the original DTACK pin then drives the data buffers direction.
var Resources = []Resource{
	{"addr", strings.Fields("24+ 25- 25+ 26- 26+ 27- 27+ 0- 0+ 1- 1+ 2- 2+ 3- 3+ 5+ 6- 6+ 7- 7+ 8- 8+ 9-"), InOut},
	{"fc", strings.Fields("5- 4+ 4-"), InOut},
	{"data", strings.Fields("20+ 20- 19+ 19- 18+ 18- 17+ 17- 10+ 10- 11+ 11- 12+ 12- 13+ 13-"), InOut},
	{"dtack", []string{"22+"}, In},
	{"data_dir", []string{"9+"}, Out},
	{"ipl", strings.Fields("24- 23+ 23-"), In},
	{"clk", []string{"22-"}, In},
	{"br", []string{"21+"}, In},
	{"bgack", []string{"21-"}, In},
	{"bg", []string{"16+"}, Out}, // through an open collector inverter
	{"addr_dir", []string{"16-"}, Out},
	{"as_", []string{"15+"}, InOut},
	{"uds_", []string{"15-"}, InOut},
	{"rw_", []string{"14+"}, InOut},
	{"lds_", []string{"14-"}, InOut},
}

// PrintPinMap writes the pin map in a human readable form.
func PrintPinMap(w io.Writer) {
	fmt.Fprintf(w, "connector %s\n", Connector)
	for _, r := range Resources {
		fmt.Fprintf(w, "%-9s %-2s %s\n", r.Name, r.Dir, strings.Join(r.Pins, " "))
	}
}

// Pads is the state of the FPGA pads driving the carrier board for the
// current cycle. Output enables are true when the FPGA drives the pins.
type Pads struct {
	Addr   uint32
	AddrOE bool // also the output enable of fc, as_, uds_, lds_ and rw_
	FC     uint8

	Data   uint16
	DataOE bool

	AS, UDS, LDS, RW bool // pin levels

	DataDir bool // 1 = FPGA to bus
	AddrDir bool // 1 = FPGA to bus
	BG      bool // inverted by the open collector buffer

	LEDs uint8
}

// Pads samples the FPGA pads from the settled bridge outputs.
func (s *System) Pads() Pads {
	drv := s.out.Drive
	return Pads{
		Addr:    drv.Addr,
		AddrOE:  s.out.BusAsserted,
		FC:      drv.FC,
		Data:    drv.Data,
		DataOE:  drv.DataEnabled,
		AS:      bool(drv.AS),
		UDS:     bool(drv.UDS),
		LDS:     bool(drv.LDS),
		RW:      bool(drv.RW),
		DataDir: drv.DataEnabled,
		AddrDir: s.out.BusAsserted,
		BG:      s.out.BG.Asserted(),
		LEDs:    uint8(s.Up.Adr >> 15),
	}
}
