package board

import (
	"fmt"

	"github.com/go-faster/errors"

	"anubis/hw/m68k"
)

// Region kinds.
const (
	KindROM    = "rom"
	KindRAM    = "ram"
	KindMirror = "mirror"
)

// Config describes the devices wired on the legacy bus.
type Config struct {
	// Regions are decoded in order, the first matching region wins.
	Regions []RegionConfig `toml:"region"`

	// DTACKDelay is the number of wait cycles after AS before DTACK is
	// asserted. Zero ties DTACK low permanently.
	DTACKDelay int `toml:"dtack_delay"`

	// IACKVector is the vector number returned on interrupt acknowledge
	// cycles. Zero selects autovectors (24 + level).
	IACKVector uint8 `toml:"iack_vector"`

	// IPL is the initial interrupt priority level presented on the bus.
	IPL uint8 `toml:"ipl"`

	// Image is the image file used by rom regions without their own file.
	Image string `toml:"image,omitempty"`
}

// RegionConfig describes a memory region. Addresses and sizes are in bytes,
// as seen by 68000 software.
type RegionConfig struct {
	Name string `toml:"name"`
	Kind string `toml:"kind"`
	Base uint32 `toml:"base"`
	Size uint32 `toml:"size"`

	// Depth is the number of 16-bit words backing a rom or ram region. It
	// must be a power of 2, the region mirrors the memory when bigger.
	Depth int `toml:"depth"`

	// File and FileOffset locate the image of a rom region. A rom without
	// file uses the board image, or is zero-filled if there's none.
	File       string `toml:"file,omitempty"`
	FileOffset int64  `toml:"file_offset,omitempty"`

	// Target names the region a mirror maps again.
	Target string `toml:"target,omitempty"`

	// ReadOnly drops writes through this region.
	ReadOnly bool `toml:"readonly,omitempty"`

	// Rebase makes the memory indexed relative to Base rather than by
	// absolute address.
	Rebase bool `toml:"rebase,omitempty"`
}

// Words returns the inclusive range of word addresses of the region.
func (rc RegionConfig) Words() (begin, end uint32) {
	return rc.Base >> 1, (rc.Base+rc.Size)>>1 - 1
}

func (rc RegionConfig) validate() error {
	switch rc.Kind {
	case KindROM, KindRAM:
		if rc.Depth <= 0 || rc.Depth&(rc.Depth-1) != 0 {
			return fmt.Errorf("depth %d is not a power of 2", rc.Depth)
		}
	case KindMirror:
		if rc.Target == "" {
			return fmt.Errorf("mirror without target")
		}
	default:
		return fmt.Errorf("unknown kind %q", rc.Kind)
	}
	if rc.Size == 0 || rc.Base&1 != 0 || rc.Size&1 != 0 {
		return fmt.Errorf("base %#x and size %#x must be even and size not zero", rc.Base, rc.Size)
	}
	if _, end := rc.Words(); end > m68k.AddrMask {
		return fmt.Errorf("region ends beyond 16MB address space")
	}
	return nil
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	names := make(map[string]string)
	for _, rc := range cfg.Regions {
		if rc.Name == "" {
			return errors.New("region without name")
		}
		if _, dup := names[rc.Name]; dup {
			return fmt.Errorf("duplicate region %q", rc.Name)
		}
		if err := rc.validate(); err != nil {
			return errors.Wrapf(err, "region %q", rc.Name)
		}
		names[rc.Name] = rc.Kind
	}
	for _, rc := range cfg.Regions {
		if rc.Kind != KindMirror {
			continue
		}
		kind, ok := names[rc.Target]
		if !ok || kind == KindMirror {
			return fmt.Errorf("region %q: invalid mirror target %q", rc.Name, rc.Target)
		}
	}
	if cfg.DTACKDelay < 0 {
		return fmt.Errorf("negative dtack delay %d", cfg.DTACKDelay)
	}
	if cfg.IPL > 7 {
		return fmt.Errorf("invalid interrupt level %d", cfg.IPL)
	}
	return nil
}

// DefaultConfig returns the memory map of the anubis test system: the first
// 8 bytes of the address space come from the boot vectors of the IPL ROM
// image, the IPL ROM sits at $FE0000 and 128KB of RAM are mirrored over the
// bottom 8MB, the rest of the space being a read-only mirror of the RAM.
func DefaultConfig() Config {
	return Config{
		Regions: []RegionConfig{
			{Name: "boot", Kind: KindROM, Base: 0x000000, Size: 0x8, Depth: 16, FileOffset: 0x10000},
			{Name: "iplrom", Kind: KindROM, Base: 0xFE0000, Size: 0x20000, Depth: 0x10000, Rebase: true},
			{Name: "ram", Kind: KindRAM, Base: 0x000000, Size: 0x800000, Depth: 0x10000},
			{Name: "ram-mirror", Kind: KindMirror, Base: 0x800000, Size: 0x7E0000, Target: "ram", ReadOnly: true},
		},
	}
}
