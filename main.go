package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stdout)
		return 1
	}

	var err error
	switch args[0] {
	case "run":
		err = RunBenchmarkCommand(args[1:], stdout, stderr)
	case "detect":
		err = runHardwareDetection(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		err = RunBenchmarkCommand(args, stdout, stderr)
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, ErrInvalidConfiguration) {
			printUsage(stderr)
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cpubench <mode> <type> <size> <threads>")
	fmt.Fprintln(w, "  cpubench run [flags] <mode> <type> <size> <threads>")
	fmt.Fprintln(w, "  cpubench detect")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  mode     flops / matrix")
	fmt.Fprintln(w, "  type     single / double")
	fmt.Fprintln(w, "  size     10 / 100 / 1000 / 1024 / 4096 / 16386")
	fmt.Fprintln(w, "  threads  1 / 2 / 4")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  cpubench flops double 10 2")
	fmt.Fprintln(w, "  cpubench run -kernel=full -verify matrix double 512 4")
	fmt.Fprintln(w, "  cpubench run -json=result.json matrix single 1024 4")
	fmt.Fprintln(w)
}
