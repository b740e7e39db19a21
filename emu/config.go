package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/kirsle/configdir"

	"anubis/emu/log"
	"anubis/hw/board"
	"anubis/hw/bridge"
)

type Config struct {
	Bridge BridgeConfig `toml:"bridge"`
	Board  board.Config `toml:"board"`
	Sim    SimConfig    `toml:"sim"`
	Trace  TraceConfig  `toml:"trace"`
}

type BridgeConfig struct {
	Variant bridge.Variant `toml:"variant"`
}

type SimConfig struct {
	// StallLimit is the number of cycles a transaction may take before
	// being reported as stalled. Zero waits forever.
	StallLimit int `toml:"stall_limit"`

	// ClockHz is the frequency of the simulated clock, only used to
	// timestamp waveforms.
	ClockHz int64 `toml:"clock_hz"`
}

// TraceConfig lists the optional trace outputs, empty paths are disabled.
type TraceConfig struct {
	VCD       string `toml:"vcd,omitempty"`
	JSON      string `toml:"json,omitempty"`
	PNG       string `toml:"png,omitempty"`
	PNGCycles int    `toml:"png_cycles,omitempty"`
}

// DefaultConfig returns the configuration of the anubis board, clocked
// by the 25MHz oscillator of the ULX3S.
func DefaultConfig() Config {
	return Config{
		Bridge: BridgeConfig{Variant: bridge.Arbiter},
		Board:  board.DefaultConfig(),
		Sim: SimConfig{
			StallLimit: 10000,
			ClockHz:    25_000_000,
		},
	}
}

// ConfigDir returns the anubis config directory, creating it if needed.
var ConfigDir = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("anubis")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})

const cfgFilename = "config.toml"

// LoadConfig loads the configuration file at path. Values missing from the
// file keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load config")
	}
	if md.IsDefined("board", "region") {
		// regions from the file replace the default map, they don't
		// extend it.
		var regions struct {
			Board struct {
				Regions []board.RegionConfig `toml:"region"`
			} `toml:"board"`
		}
		if _, err := toml.DecodeFile(path, &regions); err != nil {
			return Config{}, errors.Wrapf(err, "load config")
		}
		cfg.Board.Regions = regions.Board.Regions
	}
	for _, key := range md.Undecoded() {
		log.ModEmu.WarnZ("unknown config key").String("key", key.String()).End()
	}
	if err := cfg.Board.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads the configuration from the anubis config
// directory, or provide a default one.
func LoadConfigOrDefault() Config {
	path := filepath.Join(ConfigDir(), cfgFilename)
	cfg, err := LoadConfig(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.ModEmu.WarnZ("using default config").Error("err", err).End()
		}
		return DefaultConfig()
	}
	return cfg
}

// SaveConfig into anubis config directory.
func SaveConfig(cfg Config) error {
	return WriteConfig(filepath.Join(ConfigDir(), cfgFilename), cfg)
}

// WriteConfig writes cfg to path, in TOML.
func WriteConfig(path string, cfg Config) error {
	buf, err := EncodeConfig(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

func EncodeConfig(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
