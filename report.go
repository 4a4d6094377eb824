package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// FormatBanner returns the line printed before a run starts.
func FormatBanner(cfg WorkUnitConfig) string {
	return fmt.Sprintf("* running cpubench %s using %s with size %d and %d threads...",
		cfg.Mode, cfg.Type, cfg.Size, cfg.Threads)
}

// FormatResultLine returns the one-line summary of a run. Runs of the full
// kernel are tagged so they are never mistaken for strided numbers.
func FormatResultLine(res *BenchmarkResult) string {
	line := fmt.Sprintf("mode=%s type=%s size=%d threads=%d time=%f throughput=%f",
		res.Mode, res.Type, res.Size, res.Threads, res.ElapsedSeconds, res.Throughput)
	if res.Kernel == KernelFull.String() {
		line += " kernel=full"
	}
	return line
}

// WriteJSON writes res as indented JSON.
func WriteJSON(w io.Writer, res *BenchmarkResult) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// csvHeader lists the columns of the CSV export.
var csvHeader = []string{
	"mode", "type", "size", "threads", "kernel", "transpose",
	"elapsed_seconds", "cpu_seconds", "throughput", "iterations", "verified",
}

// WriteCSV writes a header and one row for res.
func WriteCSV(w io.Writer, res *BenchmarkResult) error {
	cw := csv.NewWriter(w)
	row := []string{
		res.Mode,
		res.Type,
		strconv.FormatUint(res.Size, 10),
		strconv.Itoa(res.Threads),
		res.Kernel,
		res.Transpose,
		strconv.FormatFloat(res.ElapsedSeconds, 'f', -1, 64),
		strconv.FormatFloat(res.CPUSeconds, 'f', -1, 64),
		strconv.FormatFloat(res.Throughput, 'f', -1, 64),
		strconv.FormatUint(res.Iterations, 10),
		strconv.FormatBool(res.Verified),
	}
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// saveResult creates filename and hands it to write.
func saveResult(filename string, res *BenchmarkResult, write func(io.Writer, *BenchmarkResult) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
