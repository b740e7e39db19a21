// Package rpc exposes a simulator over net/rpc, so that a test bench
// running in another process can drive the bridge.
package rpc

import (
	"net"

	"anubis/emu/log"
	"anubis/hw/m68k"
)

var modRPC = log.NewModule("rpc")

// service name of the simulator.
const service = "sim"

func UnusedPort() int {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic("pickUnusedPort failed: " + err.Error())
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		panic("pickUnusedPort failed: " + err.Error())
	}
	return port
}

type ReadArgs struct {
	Adr uint32
	Sel uint8
	FC  uint8
}

type WriteArgs struct {
	Adr  uint32
	Sel  uint8
	Data uint32
	FC   uint8
}

type PokeArgs struct {
	Addr uint32
	Data uint16
}

type RequestBusArgs struct {
	Hold     int
	Accesses []m68k.Access
}
