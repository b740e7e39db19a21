package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"anubis/emu/log"
)

type mode byte

const (
	runMode      mode = iota // Run a Lua script against the simulator
	vectorsMode              // Run JSON test vectors
	serveMode                // Serve the simulator over RPC
	pinsMode                 // Print the ULX3S pin map
	romInfosMode             // Show ROM image infos
	configMode               // Print or save the configuration
	versionMode              // Show anubis version
)

type (
	CLI struct {
		Run      Run       `cmd:"" help:"Run a Lua script driving the upstream bus."`
		Vectors  Vectors   `cmd:"" help:"Run JSON test vectors."`
		Serve    Serve     `cmd:"" help:"Serve the simulator over RPC."`
		Pins     Pins      `cmd:"" help:"Print the ULX3S GPIO pin map."`
		RomInfos RomInfos  `cmd:"" help:"Show ROM image infos." name:"rom-infos"`
		Config   ConfigCmd `cmd:"" help:"Print the configuration in use."`
		Version  Version   `cmd:"" help:"Show anubis version."`

		Log        logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		ConfigPath string     `name:"config" help:"${config_help}" type:"existingfile" placeholder:"FILE"`

		mode mode
	}

	// SimFlags override the configuration of the simulator.
	SimFlags struct {
		Variant    string `name:"variant" help:"${variant_help}" placeholder:"plain|arbiter"`
		DTACKDelay int    `name:"dtack-delay" help:"Wait states inserted by memories, 0 ties DTACK low." default:"-1"`
		StallLimit int    `name:"stall-limit" help:"Cycles after which a stalled bus is an error, 0 disables." default:"-1"`
	}

	Run struct {
		Script string `arg:"" name:"/path/to/script.lua" help:"Lua script to run." type:"existingfile"`

		SimFlags `embed:""`

		VCD        string   `name:"vcd" help:"Write a VCD waveform of all signals." type:"path" placeholder:"FILE"`
		JSON       string   `name:"json" help:"Write a JSON lines trace of all signals." type:"path" placeholder:"FILE"`
		PNG        string   `name:"png" help:"Render a timing diagram of the first cycles." type:"path" placeholder:"FILE"`
		Phases     *outfile `name:"phases" help:"Write the legacy bus phases." placeholder:"FILE|stdout|stderr"`
		CPUProfile string   `name:"cpuprofile" help:"${cpuprofile_help}" type:"path"`
	}

	Vectors struct {
		Files []string `arg:"" name:"/path/to/vectors.json" help:"Vector files." type:"existingfile"`

		SimFlags `embed:""`

		Parallel int  `name:"parallel" short:"j" help:"Vectors run at the same time, 0 means one per CPU." default:"0"`
		Verbose  bool `name:"verbose" short:"v" help:"Also report passing vectors."`
	}

	Serve struct {
		SimFlags `embed:""`

		Port int `name:"port" help:"TCP port to listen on, 0 picks a free one." default:"0"`
	}

	Pins struct{}

	RomInfos struct {
		RomPath string `arg:"" name:"/path/to/rom" type:"existingfile"`
		Offset  int64  `name:"offset" help:"Byte offset of the image in the file." default:"0"`
		Depth   int    `name:"depth" help:"Number of 16-bit words in the image." default:"65536"`
	}

	ConfigCmd struct {
		Default bool `name:"default" help:"Print the default configuration."`
		Save    bool `name:"save" help:"Save the configuration to the user config directory."`
	}

	Version struct{}
)

var vars = kong.Vars{
	"log_help":        "Enable logging for specified modules.",
	"config_help":     "Configuration file, defaults to the one in the user config directory.",
	"variant_help":    "Bridge variant, overrides the configuration.",
	"cpuprofile_help": "Write CPU profile to file.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("anubis"),
		kong.Description("Wishbone to 68000 bus bridge simulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	cmd, _, _ := strings.Cut(ctx.Command(), " ")
	switch cmd {
	case "run":
		cfg.mode = runMode
	case "vectors":
		cfg.mode = vectorsMode
	case "serve":
		cfg.mode = serveMode
	case "pins":
		cfg.mode = pinsMode
	case "rom-infos":
		cfg.mode = romInfosMode
	case "config":
		cfg.mode = configMode
	case "version":
		cfg.mode = versionMode
	default:
		fatalf("unexpected command %q", ctx.Command())
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if ctx.Command() == "" {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
