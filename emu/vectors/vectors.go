// Package vectors runs bus test vectors stored in JSON files.
//
// A vector file holds an array of vectors. Each vector runs on a fresh
// simulator: memory is initialized, steps are run in order and their
// results checked, then the final memory content is checked.
//
//	[{
//	  "name": "word write then read",
//	  "variant": "plain",
//	  "dtack_delay": 1,
//	  "init": [{"addr": 64, "data": 4660}],
//	  "steps": [
//	    {"op": "write", "adr": 32, "sel": 15, "data": 305419896},
//	    {"op": "read", "adr": 32, "sel": 15, "expect": 305419896,
//	     "phases": [{"addr": 64, "upper": true, "lower": true, "data": 4660}]},
//	    {"op": "iack", "level": 3, "expect": 27},
//	    {"op": "request_bus", "hold": 2, "accesses": [{"addr": 64}], "expect": [4660]},
//	    {"op": "tick", "n": 10}
//	  ],
//	  "final": [{"addr": 64, "data": 4660}]
//	}]
//
// Addresses of steps are upstream word addresses, addresses of memory
// words, phases and accesses are legacy word addresses.
package vectors

import (
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"anubis/emu/log"
	"anubis/hw/bridge"
	"anubis/hw/m68k"
)

var modVectors = log.NewModule("vectors")

type Vector struct {
	Name       string
	Variant    *bridge.Variant // nil keeps the configured variant
	DTACKDelay *int
	Init       []Word
	Steps      []Step
	Final      []Word
}

// Word is a legacy memory word.
type Word struct {
	Addr uint32
	Data uint16
}

// Step operations.
const (
	OpRead       = "read"
	OpWrite      = "write"
	OpIACK       = "iack"
	OpRequestBus = "request_bus"
	OpTick       = "tick"
)

type Step struct {
	Op string

	Adr  uint32
	Sel  uint8
	FC   *uint8
	Data uint32

	Level    uint8
	N        int
	Hold     int
	Accesses []m68k.Access

	// Expected results, checked when not nil.
	Expect     *uint32
	ExpectData []uint16
	Phases     []m68k.Phase
	Cycles     *int64
}

// LoadFile reads all vectors of a file.
func LoadFile(path string) ([]Vector, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	vecs, err := Decode(jx.DecodeBytes(buf))
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return vecs, nil
}

// Decode decodes an array of vectors.
func Decode(d *jx.Decoder) ([]Vector, error) {
	var vecs []Vector
	err := d.Arr(func(d *jx.Decoder) error {
		var v Vector
		if err := v.decode(d); err != nil {
			return errors.Wrapf(err, "vector %d", len(vecs))
		}
		vecs = append(vecs, v)
		return nil
	})
	return vecs, err
}

func (v *Vector) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			s, err := d.Str()
			v.Name = s
			return err
		case "variant":
			s, err := d.Str()
			if err != nil {
				return err
			}
			variant, err := bridge.ParseVariant(s)
			if err != nil {
				return err
			}
			v.Variant = &variant
		case "dtack_delay":
			n, err := d.Int()
			if err != nil {
				return err
			}
			v.DTACKDelay = &n
		case "init":
			return decodeWords(d, &v.Init)
		case "final":
			return decodeWords(d, &v.Final)
		case "steps":
			return d.Arr(func(d *jx.Decoder) error {
				var s Step
				if err := s.decode(d); err != nil {
					return errors.Wrapf(err, "step %d", len(v.Steps))
				}
				v.Steps = append(v.Steps, s)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
}

func decodeWords(d *jx.Decoder, words *[]Word) error {
	return d.Arr(func(d *jx.Decoder) error {
		var w Word
		err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "addr":
				w.Addr, err = d.UInt32()
			case "data":
				w.Data, err = d.UInt16()
			default:
				err = d.Skip()
			}
			return err
		})
		*words = append(*words, w)
		return err
	})
}

func (s *Step) decode(d *jx.Decoder) error {
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "op":
			s.Op, err = d.Str()
		case "adr":
			s.Adr, err = d.UInt32()
		case "sel":
			s.Sel, err = d.UInt8()
		case "fc":
			var fc uint8
			fc, err = d.UInt8()
			s.FC = &fc
		case "data":
			s.Data, err = d.UInt32()
		case "level":
			s.Level, err = d.UInt8()
		case "n":
			s.N, err = d.Int()
		case "hold":
			s.Hold, err = d.Int()
		case "cycles":
			var n int64
			n, err = d.Int64()
			s.Cycles = &n
		case "accesses":
			err = d.Arr(func(d *jx.Decoder) error {
				a, err := decodeAccess(d)
				s.Accesses = append(s.Accesses, a)
				return err
			})
		case "phases":
			s.Phases = []m68k.Phase{}
			err = d.Arr(func(d *jx.Decoder) error {
				p, err := decodePhase(d)
				s.Phases = append(s.Phases, p)
				return err
			})
		case "expect":
			err = s.decodeExpect(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return err
	}

	switch s.Op {
	case OpRead, OpWrite, OpIACK, OpRequestBus, OpTick:
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if s.Op == OpRead || s.Op == OpWrite {
		if s.Sel == 0 {
			s.Sel = 0xF
		}
	}
	return nil
}

// decodeExpect decodes a single expected word, or an array of words for
// request_bus steps.
func (s *Step) decodeExpect(d *jx.Decoder) error {
	if d.Next() == jx.Array {
		s.ExpectData = []uint16{}
		return d.Arr(func(d *jx.Decoder) error {
			v, err := d.UInt16()
			s.ExpectData = append(s.ExpectData, v)
			return err
		})
	}
	v, err := d.UInt32()
	s.Expect = &v
	return err
}

func decodeAccess(d *jx.Decoder) (m68k.Access, error) {
	a := m68k.Access{Upper: true, Lower: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "addr":
			a.Addr, err = d.UInt32()
		case "data":
			a.Data, err = d.UInt16()
		case "write":
			a.Write, err = d.Bool()
		case "upper":
			a.Upper, err = d.Bool()
		case "lower":
			a.Lower, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	})
	return a, err
}

func decodePhase(d *jx.Decoder) (m68k.Phase, error) {
	var p m68k.Phase
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "addr":
			p.Addr, err = d.UInt32()
		case "upper":
			p.Upper, err = d.Bool()
		case "lower":
			p.Lower, err = d.Bool()
		case "write":
			p.Write, err = d.Bool()
		case "data":
			p.Data, err = d.UInt16()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}
