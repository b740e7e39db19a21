package hwio

import "anubis/emu/log"

type RWFlags uint8

const (
	ReadWriteFlag RWFlags = 0
	ReadOnlyFlag  RWFlags = (1 << iota)
	WriteOnlyFlag
)

// Device is a BankIO16 implementation that allows manual management of an
// entire range of addresses through callbacks.
type Device struct {
	Name  string // name of the device (for debugging)
	Flags RWFlags

	ReadCb  func(addr uint32) uint16
	PeekCb  func(addr uint32) uint16
	WriteCb func(addr uint32, val, mask uint16)
}

func (d *Device) Read16(addr uint32) uint16 {
	switch {
	case d.Flags&WriteOnlyFlag != 0:
		log.ModHwIo.ErrorZ("invalid Read16 from writeonly device").
			String("name", d.Name).
			Hex32("addr", addr).
			End()
		fallthrough
	case d.ReadCb == nil:
		return 0
	}
	return d.ReadCb(addr)
}

func (d *Device) Peek16(addr uint32) uint16 {
	if d.PeekCb != nil {
		return d.PeekCb(addr)
	}
	return 0
}

func (d *Device) Write16(addr uint32, val, mask uint16) {
	switch {
	case d.Flags&ReadOnlyFlag != 0:
		log.ModHwIo.ErrorZ("invalid Write16 to readonly device").
			String("name", d.Name).
			Hex32("addr", addr).
			End()
		fallthrough
	case d.WriteCb == nil:
		return
	}
	d.WriteCb(addr, val, mask)
}
