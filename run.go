package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"

	"anubis/emu"
	"anubis/emu/log"
	"anubis/emu/rpc"
	"anubis/emu/script"
	"anubis/emu/vectors"
	"anubis/hw/m68k"
)

// runMain runs a Lua script against a new simulator.
func runMain(args Run, cfg emu.Config) int {
	if args.VCD != "" {
		cfg.Trace.VCD = args.VCD
	}
	if args.JSON != "" {
		cfg.Trace.JSON = args.JSON
	}
	if args.PNG != "" {
		cfg.Trace.PNG = args.PNG
	}

	sim, err := emu.NewSimulator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start simulator: %v\n", err)
		return 1
	}
	defer func() {
		if err := sim.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write traces: %v\n", err)
		}
	}()
	defer log.AddContext(sim)()

	if args.Phases != nil {
		defer args.Phases.Close()
		sim.Sys.Monitor.OnPhase = func(p m68k.Phase) {
			fmt.Fprintln(args.Phases, p)
		}
	}

	if args.CPUProfile != "" {
		f, err := os.Create(args.CPUProfile)
		checkf(err, "failed to create cpu profile file")
		checkf(pprof.StartCPUProfile(f), "failed to start cpu profile")
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
			fmt.Println("CPU profile written to", args.CPUProfile)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := script.NewRunner(sim)
	defer r.Close()
	if err := r.RunFile(ctx, args.Script); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	fmt.Printf("script done after %d cycles\n", sim.Cycle())
	return 0
}

// vectorsMain runs test vector files and reports failed vectors.
func vectorsMain(args Vectors, cfg emu.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reports, err := vectors.RunFiles(ctx, cfg, args.Files, args.Parallel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	nfailed := 0
	for _, r := range reports {
		if r.Err != nil {
			nfailed++
		}
		if r.Err != nil || args.Verbose {
			fmt.Println(r)
		}
	}
	fmt.Printf("%d/%d vectors passed\n", len(reports)-nfailed, len(reports))
	if nfailed > 0 {
		return 1
	}
	return 0
}

// serveMain serves a simulator over RPC until interrupted.
func serveMain(args Serve, cfg emu.Config) int {
	sim, err := emu.NewSimulator(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start simulator: %v\n", err)
		return 1
	}
	defer sim.Close()
	defer log.AddContext(sim)()

	server, err := rpc.NewServer(args.Port, sim)
	if err != nil {
		fmt.Fprintf(os.Stderr, "RPC error: %v\n", err)
		return 1
	}
	defer server.Close()
	fmt.Println("rpc server listening on port", server.Port())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-ctx.Done()
	return 0
}
