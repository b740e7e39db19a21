// Package snapshot holds the serializable state of a board.
package snapshot

import (
	"encoding/binary"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Version is the current snapshot format version.
const Version = 1

type System struct {
	Version int
	Variant string
	Cycle   int64
	IPL     uint8
	Waited  int

	Bridge   Bridge
	Memories []Memory
}

type Bridge struct {
	State    uint8
	DataHigh uint16
	DataLow  uint16
}

// Memory is the content of a writable memory block.
type Memory struct {
	Name string
	Data []uint16
}

func (s *System) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("version")
	e.Int(s.Version)
	e.FieldStart("variant")
	e.Str(s.Variant)
	e.FieldStart("cycle")
	e.Int64(s.Cycle)
	e.FieldStart("ipl")
	e.UInt8(s.IPL)
	e.FieldStart("waited")
	e.Int(s.Waited)

	e.FieldStart("bridge")
	e.ObjStart()
	e.FieldStart("state")
	e.UInt8(s.Bridge.State)
	e.FieldStart("data_high")
	e.UInt16(s.Bridge.DataHigh)
	e.FieldStart("data_low")
	e.UInt16(s.Bridge.DataLow)
	e.ObjEnd()

	e.FieldStart("memories")
	e.ArrStart()
	for _, m := range s.Memories {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(m.Name)
		e.FieldStart("data")
		e.Base64(wordsToBytes(m.Data))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func (s *System) Decode(d *jx.Decoder) error {
	*s = System{}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "version":
			s.Version, err = d.Int()
		case "variant":
			s.Variant, err = d.Str()
		case "cycle":
			s.Cycle, err = d.Int64()
		case "ipl":
			s.IPL, err = d.UInt8()
		case "waited":
			s.Waited, err = d.Int()
		case "bridge":
			err = s.Bridge.decode(d)
		case "memories":
			err = d.Arr(func(d *jx.Decoder) error {
				var m Memory
				if err := m.decode(d); err != nil {
					return err
				}
				s.Memories = append(s.Memories, m)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
}

func (b *Bridge) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "state":
			b.State, err = d.UInt8()
		case "data_high":
			b.DataHigh, err = d.UInt16()
		case "data_low":
			b.DataLow, err = d.UInt16()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (m *Memory) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			name, err := d.Str()
			m.Name = name
			return err
		case "data":
			buf, err := d.Base64()
			if err != nil {
				return err
			}
			if len(buf)%2 != 0 {
				return errors.Errorf("odd memory size %d", len(buf))
			}
			m.Data = bytesToWords(buf)
			return nil
		}
		return d.Skip()
	})
}

// Save writes the snapshot to w.
func (s *System) Save(w io.Writer) error {
	var e jx.Encoder
	s.Encode(&e)
	_, err := w.Write(e.Bytes())
	return err
}

// Load reads a snapshot from r.
func Load(r io.Reader) (*System, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := new(System)
	if err := s.Decode(jx.DecodeBytes(buf)); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	if s.Version != Version {
		return nil, errors.Errorf("unsupported snapshot version %d", s.Version)
	}
	return s, nil
}

func wordsToBytes(words []uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint16(buf[2*i:], w)
	}
	return buf
}

func bytesToWords(buf []byte) []uint16 {
	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(buf[2*i:])
	}
	return words
}
