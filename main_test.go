package main

import (
	"os"
	"path/filepath"
	"testing"

	"anubis/emu"
	"anubis/hw/bridge"
)

func TestParseArgs(t *testing.T) {
	script := filepath.Join(t.TempDir(), "boot.lua")
	if err := os.WriteFile(script, []byte("tick(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		args []string
		want mode
	}{
		{[]string{"run", script}, runMode},
		{[]string{"vectors", script, script}, vectorsMode},
		{[]string{"serve", "--port", "1234"}, serveMode},
		{[]string{"pins"}, pinsMode},
		{[]string{"rom-infos", script}, romInfosMode},
		{[]string{"config", "--default"}, configMode},
		{[]string{"version"}, versionMode},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			if got := parseArgs(tt.args).mode; got != tt.want {
				t.Errorf("mode = %d, want %d", got, tt.want)
			}
		})
	}

	cli := parseArgs([]string{"run", "--variant", "plain", "--dtack-delay", "2", script})
	if cli.Run.Script != script || cli.Run.Variant != "plain" || cli.Run.DTACKDelay != 2 || cli.Run.StallLimit != -1 {
		t.Errorf("unexpected run flags: %+v", cli.Run)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anubis.toml")
	cfg := emu.DefaultConfig()
	cfg.Sim.StallLimit = 77
	if err := emu.WriteConfig(path, cfg); err != nil {
		t.Fatal(err)
	}

	cli := CLI{ConfigPath: path}
	got := loadConfig(cli, SimFlags{Variant: "plain", DTACKDelay: 3, StallLimit: -1})
	if got.Bridge.Variant != bridge.Plain {
		t.Errorf("variant = %s, want Plain", got.Bridge.Variant)
	}
	if got.Board.DTACKDelay != 3 {
		t.Errorf("dtack delay = %d, want 3", got.Board.DTACKDelay)
	}
	if got.Sim.StallLimit != 77 {
		t.Errorf("stall limit = %d, want 77", got.Sim.StallLimit)
	}
}
