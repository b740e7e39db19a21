// Package script drives a simulator from Lua scripts, standing in for the
// software running on the CPU core.
//
// Scripts see the following globals:
//
//	read(adr [, sel [, fc]])           upstream read, returns the 32-bit word
//	write(adr, val [, sel [, fc]])     upstream write
//	iack(level)                        interrupt acknowledge, returns the vector
//	tick([n])                          run n clock cycles (default 1)
//	request_bus(accesses [, hold])     third-party bus master, returns read data
//	set_ipl(level)                     drive the interrupt priority level
//	peek(addr), poke(addr, val)        legacy memory word, no bus cycle
//	cycle()                            current cycle number
//	log(...)                           log a message
//
// Upstream addresses are 32-bit word addresses, legacy addresses are 16-bit
// word addresses. Accesses passed to request_bus are tables with the fields
// addr, data, write, upper and lower, upper and lower default to true.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	lua "github.com/yuin/gopher-lua"

	"anubis/emu"
	"anubis/emu/log"
	"anubis/hw/m68k"
)

var modScript = log.NewModule("script")

// Default function codes of script accesses.
const (
	DefaultReadFC  = m68k.FCSupervisorProgram
	DefaultWriteFC = m68k.FCSupervisorData
)

// Runner runs scripts against a simulator.
type Runner struct {
	sim *emu.Simulator
	L   *lua.LState
}

// NewRunner creates a Lua state bound to sim. Call Close when done.
func NewRunner(sim *emu.Simulator) *Runner {
	r := &Runner{
		sim: sim,
		L:   lua.NewState(),
	}
	for name, fn := range map[string]lua.LGFunction{
		"read":        r.read,
		"write":       r.write,
		"iack":        r.iack,
		"tick":        r.tick,
		"request_bus": r.requestBus,
		"set_ipl":     r.setIPL,
		"peek":        r.peek,
		"poke":        r.poke,
		"cycle":       r.cycle,
		"log":         r.log,
	} {
		r.L.SetGlobal(name, r.L.NewFunction(fn))
	}
	return r
}

func (r *Runner) Close() { r.L.Close() }

// RunFile runs the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	r.setContext(ctx)
	defer r.sim.SetContext(nil)
	modScript.InfoZ("running script").String("path", path).End()
	if err := r.L.DoFile(path); err != nil {
		return errors.Wrapf(err, "script %s", path)
	}
	return nil
}

// RunString runs the script src, name is only used in error messages.
func (r *Runner) RunString(ctx context.Context, name, src string) error {
	r.setContext(ctx)
	defer r.sim.SetContext(nil)
	if err := r.L.DoString(src); err != nil {
		return errors.Wrapf(err, "script %s", name)
	}
	return nil
}

// setContext makes ctx interrupt both the Lua code and the clocking done on
// its behalf.
func (r *Runner) setContext(ctx context.Context) {
	r.L.SetContext(ctx)
	r.sim.SetContext(ctx)
}

func optUint8(L *lua.LState, n int, def uint8) uint8 {
	return uint8(L.OptInt(n, int(def)))
}

func checkUint32(L *lua.LState, n int) uint32 {
	return uint32(L.CheckNumber(n))
}

func (r *Runner) check(err error) {
	if err != nil {
		r.L.RaiseError("%v", err)
	}
}

func (r *Runner) read(L *lua.LState) int {
	adr := checkUint32(L, 1)
	sel := optUint8(L, 2, 0xF)
	fc := optUint8(L, 3, DefaultReadFC)

	data, err := r.sim.Read(adr, sel, fc)
	r.check(err)
	L.Push(lua.LNumber(data))
	return 1
}

func (r *Runner) write(L *lua.LState) int {
	adr := checkUint32(L, 1)
	val := checkUint32(L, 2)
	sel := optUint8(L, 3, 0xF)
	fc := optUint8(L, 4, DefaultWriteFC)

	r.check(r.sim.Write(adr, sel, val, fc))
	return 0
}

func (r *Runner) iack(L *lua.LState) int {
	level := L.CheckInt(1)
	if level < 1 || level > 7 {
		L.ArgError(1, "interrupt level must be in [1, 7]")
	}
	vec, err := r.sim.IACK(uint8(level))
	r.check(err)
	L.Push(lua.LNumber(vec))
	return 1
}

func (r *Runner) tick(L *lua.LState) int {
	n := L.OptInt(1, 1)
	if n < 0 {
		L.ArgError(1, "negative cycle count")
	}
	r.check(r.sim.Run(n))
	return 0
}

func (r *Runner) requestBus(L *lua.LState) int {
	tbl := L.CheckTable(1)
	hold := L.OptInt(2, 0)

	var ops []m68k.Access
	var perr error
	tbl.ForEach(func(_, v lua.LValue) {
		t, ok := v.(*lua.LTable)
		if !ok {
			perr = fmt.Errorf("access must be a table, got %s", v.Type())
			return
		}
		ops = append(ops, m68k.Access{
			Addr:  uint32(lua.LVAsNumber(L.GetField(t, "addr"))),
			Data:  uint16(lua.LVAsNumber(L.GetField(t, "data"))),
			Write: lua.LVAsBool(L.GetField(t, "write")),
			Upper: optBool(L.GetField(t, "upper"), true),
			Lower: optBool(L.GetField(t, "lower"), true),
		})
	})
	if perr != nil {
		L.ArgError(1, perr.Error())
	}

	data, err := r.sim.RequestBus(hold, ops...)
	r.check(err)

	res := L.NewTable()
	for _, d := range data {
		res.Append(lua.LNumber(d))
	}
	L.Push(res)
	return 1
}

func optBool(v lua.LValue, def bool) bool {
	if v == lua.LNil {
		return def
	}
	return lua.LVAsBool(v)
}

func (r *Runner) setIPL(L *lua.LState) int {
	level := L.CheckInt(1)
	if level < 0 || level > 7 {
		L.ArgError(1, "interrupt level must be in [0, 7]")
	}
	r.sim.SetIPL(uint8(level))
	return 0
}

func (r *Runner) peek(L *lua.LState) int {
	L.Push(lua.LNumber(r.sim.Peek(checkUint32(L, 1))))
	return 1
}

func (r *Runner) poke(L *lua.LState) int {
	addr := checkUint32(L, 1)
	val := uint16(L.CheckInt(2))
	r.check(r.sim.Poke(addr, val))
	return 0
}

func (r *Runner) cycle(L *lua.LState) int {
	L.Push(lua.LNumber(r.sim.Cycle()))
	return 1
}

func (r *Runner) log(L *lua.LState) int {
	var parts []string
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	modScript.InfoZ(strings.Join(parts, " ")).End()
	return 0
}
