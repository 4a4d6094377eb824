package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the command-line surface of the benchmark: the `run`
// command (also reachable with the bare positional form) and `detect`.
//
//   cpubench flops double 10 2
//   cpubench run -kernel=full -verify matrix double 512 4
//   cpubench run -json=result.json -quiet matrix single 1024 8
//   cpubench detect
//
// The four positional arguments are the whole benchmark definition. Flags
// only pick variants (kernel, transpose policy), fix the seed, or export the
// result; none of them changes what the default strided run measures.
//
// ===========================================================================

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	Kernel     string
	Transpose  string
	Seed       uint64
	OpsScale   uint64
	MemLimit   int64
	Verify     bool
	OutputJSON string
	OutputCSV  string
	Quiet      bool
}

// RunBenchmarkCommand parses args, runs one benchmark and prints its result
// line to stdout.
func RunBenchmarkCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts RunOptions
	fs.StringVar(&opts.Kernel, "kernel", "strided", "Matrix kernel (strided, full)")
	fs.StringVar(&opts.Transpose, "transpose", "once", "Transpose sweep policy for the strided kernel (once, per-worker)")
	fs.Uint64Var(&opts.Seed, "seed", 0, "Seed for the matrix fill (0 = from the clock)")
	fs.Uint64Var(&opts.OpsScale, "ops-scale", GigaFlops, "Loop operations per unit of size in flops mode")
	fs.Int64Var(&opts.MemLimit, "mem-limit", 0, "Maximum bytes for the three matrices (0 = no limit)")
	fs.BoolVar(&opts.Verify, "verify", false, "Check the result matrix against a reference after the run")
	fs.StringVar(&opts.OutputJSON, "json", "", "Output JSON file")
	fs.StringVar(&opts.OutputCSV, "csv", "", "Output CSV file")
	fs.BoolVar(&opts.Quiet, "quiet", false, "Only print the result line")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%v: %w", err, ErrInvalidConfiguration)
	}
	if fs.NArg() != 4 {
		return fmt.Errorf("expected <mode> <type> <size> <threads>, got %d arguments: %w", fs.NArg(), ErrInvalidConfiguration)
	}

	cfg, err := buildConfig(fs.Args(), opts)
	if err != nil {
		return err
	}

	if !opts.Quiet {
		fmt.Fprintln(stdout, FormatBanner(cfg))
	}

	d := NewDriver(stdout, !opts.Quiet)
	d.Seed = opts.Seed
	d.Verify = opts.Verify

	res, err := d.Run(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, FormatResultLine(res))

	if opts.OutputJSON != "" || opts.OutputCSV != "" {
		hw := DetectHardware()
		res.Hardware = &hw
	}
	if opts.OutputJSON != "" {
		if err := saveResult(opts.OutputJSON, res, WriteJSON); err != nil {
			return fmt.Errorf("failed to save JSON: %w", err)
		}
	}
	if opts.OutputCSV != "" {
		if err := saveResult(opts.OutputCSV, res, WriteCSV); err != nil {
			return fmt.Errorf("failed to save CSV: %w", err)
		}
	}
	return nil
}

// buildConfig turns the positional arguments and flags into a validated
// config.
func buildConfig(args []string, opts RunOptions) (WorkUnitConfig, error) {
	return ParseWorkUnitConfig(args[0], args[1], args[2], args[3], func(cfg *WorkUnitConfig) error {
		var err error
		if cfg.Kernel, err = ParseKernel(opts.Kernel); err != nil {
			return err
		}
		if cfg.Transpose, err = ParseTransposePolicy(opts.Transpose); err != nil {
			return err
		}
		cfg.OpsScale = opts.OpsScale
		cfg.MemoryLimit = opts.MemLimit
		if opts.Verify && cfg.Mode != ModeMatrix {
			return fmt.Errorf("-verify needs matrix mode: %w", ErrInvalidConfiguration)
		}
		return nil
	})
}

// runHardwareDetection prints what DetectHardware found.
func runHardwareDetection(w io.Writer) error {
	hw := DetectHardware()

	fmt.Fprintln(w, "=== Hardware Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Operating System: %s\n", hw.OS)
	fmt.Fprintf(w, "Architecture:     %s\n", hw.Arch)
	fmt.Fprintf(w, "CPU Model:        %s\n", hw.CPUModel)
	fmt.Fprintf(w, "Logical CPUs:     %d\n", hw.NumCPU)
	fmt.Fprintf(w, "GOMAXPROCS:       %d\n", hw.GOMAXPROCS)
	fmt.Fprintf(w, "Cache line:       %d bytes\n", hw.CacheLineSize)
	if len(hw.Features) > 0 {
		fmt.Fprintf(w, "Features:         %s\n", strings.Join(hw.Features, " "))
	}
	fmt.Fprintf(w, "Max threads:      %d\n", MaxThreads)
	return nil
}
