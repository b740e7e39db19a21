package rpc

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/rpc"
	"strconv"

	"github.com/go-faster/errors"

	"anubis/hw/m68k"
)

// Sim is the simulator driven by the server.
type Sim interface {
	Reset()
	Run(n int) error
	Cycle() int64
	Read(adr uint32, sel uint8, fc uint8) (uint32, error)
	Write(adr uint32, sel uint8, val uint32, fc uint8) error
	IACK(level uint8) (uint8, error)
	RequestBus(hold int, ops ...m68k.Access) ([]uint16, error)
	SetIPL(level uint8)
	Peek(addr uint32) uint16
	Poke(addr uint32, val uint16) error
	Phases() []m68k.Phase
	SaveSnapshot(w io.Writer) error
	LoadSnapshot(r io.Reader) error
}

type simProxy struct {
	sim Sim
}

func (sp *simProxy) Reset(_, _ *struct{}) error        { sp.sim.Reset(); return nil }
func (sp *simProxy) Run(n int, _ *struct{}) error      { return sp.sim.Run(n) }
func (sp *simProxy) SetIPL(l uint8, _ *struct{}) error { sp.sim.SetIPL(l); return nil }

func (sp *simProxy) Cycle(_ *struct{}, reply *int64) error {
	*reply = sp.sim.Cycle()
	return nil
}

func (sp *simProxy) Read(args ReadArgs, reply *uint32) (err error) {
	*reply, err = sp.sim.Read(args.Adr, args.Sel, args.FC)
	return err
}

func (sp *simProxy) Write(args WriteArgs, _ *struct{}) error {
	return sp.sim.Write(args.Adr, args.Sel, args.Data, args.FC)
}

func (sp *simProxy) IACK(level uint8, reply *uint8) (err error) {
	*reply, err = sp.sim.IACK(level)
	return err
}

func (sp *simProxy) RequestBus(args RequestBusArgs, reply *[]uint16) (err error) {
	*reply, err = sp.sim.RequestBus(args.Hold, args.Accesses...)
	return err
}

func (sp *simProxy) Peek(addr uint32, reply *uint16) error {
	*reply = sp.sim.Peek(addr)
	return nil
}

func (sp *simProxy) Poke(args PokeArgs, _ *struct{}) error {
	return sp.sim.Poke(args.Addr, args.Data)
}

func (sp *simProxy) Phases(_ *struct{}, reply *[]m68k.Phase) error {
	*reply = sp.sim.Phases()
	return nil
}

func (sp *simProxy) SaveSnapshot(_ *struct{}, reply *[]byte) error {
	var buf bytes.Buffer
	if err := sp.sim.SaveSnapshot(&buf); err != nil {
		return err
	}
	*reply = buf.Bytes()
	return nil
}

func (sp *simProxy) LoadSnapshot(state []byte, _ *struct{}) error {
	return sp.sim.LoadSnapshot(bytes.NewReader(state))
}

func (sp *simProxy) IsReady(_ *struct{}, reply *bool) error {
	*reply = true
	return nil
}

type Server struct {
	io.Closer
	Addr net.Addr
}

// NewServer serves sim over HTTP on port, 0 picks any free port.
func NewServer(port int, sim Sim) (*Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(service, &simProxy{sim: sim}); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, srv)

	l, err := net.Listen("tcp", "localhost:"+strconv.Itoa(port))
	if err != nil {
		return nil, err
	}

	modRPC.InfoZ("rpc server listening").String("addr", l.Addr().String()).End()
	go func() {
		if err := http.Serve(l, mux); err != nil && !errors.Is(err, net.ErrClosed) {
			modRPC.WarnZ("rpc server stopped").Error("err", err).End()
		}
	}()
	return &Server{Closer: l, Addr: l.Addr()}, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.Addr.(*net.TCPAddr).Port
}
