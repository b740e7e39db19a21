package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"anubis/emu"
	"anubis/hw/board"
	"anubis/rom"
)

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case runMode:
		os.Exit(runMain(cli.Run, loadConfig(cli, cli.Run.SimFlags)))
	case vectorsMode:
		os.Exit(vectorsMain(cli.Vectors, loadConfig(cli, cli.Vectors.SimFlags)))
	case serveMode:
		os.Exit(serveMain(cli.Serve, loadConfig(cli, cli.Serve.SimFlags)))
	case pinsMode:
		board.PrintPinMap(os.Stdout)
	case romInfosMode:
		img, err := rom.Open(cli.RomInfos.RomPath, cli.RomInfos.Offset, cli.RomInfos.Depth)
		checkf(err, "failed to open rom")
		img.PrintInfos(os.Stdout)
	case configMode:
		configMain(cli)
	case versionMode:
		printVersion()
	}
}

// loadConfig loads the configuration file given on the command line, or
// the user one, and applies the simulator flags on top of it.
func loadConfig(cli CLI, flags SimFlags) emu.Config {
	var cfg emu.Config
	if cli.ConfigPath != "" {
		var err error
		cfg, err = emu.LoadConfig(cli.ConfigPath)
		checkf(err, "failed to load configuration")
	} else {
		cfg = emu.LoadConfigOrDefault()
	}

	if flags.Variant != "" {
		checkf(cfg.Bridge.Variant.UnmarshalText([]byte(flags.Variant)), "invalid --variant")
	}
	if flags.DTACKDelay >= 0 {
		cfg.Board.DTACKDelay = flags.DTACKDelay
	}
	if flags.StallLimit >= 0 {
		cfg.Sim.StallLimit = flags.StallLimit
	}
	return cfg
}

func configMain(cli CLI) {
	cfg := emu.DefaultConfig()
	if !cli.Config.Default {
		cfg = loadConfig(cli, SimFlags{DTACKDelay: -1, StallLimit: -1})
	}
	if cli.Config.Save {
		checkf(emu.SaveConfig(cfg), "failed to save configuration")
		fmt.Println("configuration saved to", emu.ConfigDir())
		return
	}

	buf, err := emu.EncodeConfig(cfg)
	checkf(err, "failed to encode configuration")
	os.Stdout.Write(buf)
}

func printVersion() {
	version := "(devel)"
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		version = bi.Main.Version
	}
	fmt.Println("anubis", version)
}
