package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file drives one benchmark run from a validated config to a result.
//
// THE TIMED REGION:
//
//   allocate + fill (matrix mode)         ← not timed
//   ┌─ start clock
//   │  transpose B (matrix mode)
//   │  spawn N workers, each pinned to an OS thread
//   │  join N workers
//   └─ stop clock
//   checksums, verification, release      ← not timed
//
// Workers are created fresh for every run and never reused. A worker that
// panics is recovered and turned into ErrThreadManagement; the run is then
// abandoned, there is no partial result.
//
// THROUGHPUT:
//   flops:  size / seconds                (giga-ops per second)
//   matrix: (size³ / 1024³) / seconds     (giga-element-ops per second)
//
// A zero or negative elapsed time is ErrTimingAnomaly, never "infinite
// throughput".
//
// ===========================================================================

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// BenchmarkResult is the outcome of one run.
type BenchmarkResult struct {
	Mode           string        `json:"mode"`
	Type           string        `json:"type"`
	Size           uint64        `json:"size"`
	Threads        int           `json:"threads"`
	Kernel         string        `json:"kernel,omitempty"`
	Transpose      string        `json:"transpose,omitempty"`
	Seed           uint64        `json:"seed,omitempty"`
	ElapsedSeconds float64       `json:"elapsed_seconds"`
	CPUSeconds     float64       `json:"cpu_seconds"`
	Throughput     float64       `json:"throughput"`
	Iterations     uint64        `json:"iterations"`
	Checksums      []float64     `json:"checksums"`
	Verified       bool          `json:"verified,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
	Hardware       *HardwareInfo `json:"hardware,omitempty"`
}

// RunStats counts the workers of the last run.
type RunStats struct {
	Spawned int64
	Joined  int64
}

// Driver runs benchmarks. The zero value is usable and silent.
type Driver struct {
	// Out receives verbose progress. Nil discards it.
	Out io.Writer

	// Verbose enables per-thread checksums and CPU time on Out.
	Verbose bool

	// Seed seeds the matrix fill. Zero seeds from the clock.
	Seed uint64

	// Verify compares the result matrix against a reference after the
	// timed region. Matrix mode only.
	Verify bool

	// Clock returns the timestamps bracketing the timed region. Nil means
	// time.Now.
	Clock func() time.Time

	// beforeWork runs at the start of every worker; tests use it to inject
	// failures.
	beforeWork func(threadID int)

	spawned atomic.Int64
	joined  atomic.Int64
}

// NewDriver returns a Driver writing verbose output to out.
func NewDriver(out io.Writer, verbose bool) *Driver {
	return &Driver{Out: out, Verbose: verbose, Clock: time.Now}
}

// Stats returns the worker counts of the most recent run.
func (d *Driver) Stats() RunStats {
	return RunStats{Spawned: d.spawned.Load(), Joined: d.joined.Load()}
}

func (d *Driver) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock()
}

func (d *Driver) logf(format string, args ...any) {
	if !d.Verbose || d.Out == nil {
		return
	}
	fmt.Fprintf(d.Out, format, args...)
}

// Run validates cfg, executes the benchmark and returns its result.
func (d *Driver) Run(cfg WorkUnitConfig) (*BenchmarkResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d.spawned.Store(0)
	d.joined.Store(0)

	switch cfg.Type {
	case TypeSingle:
		return runTyped[int32](d, cfg)
	default:
		return runTyped[float64](d, cfg)
	}
}

// job is the body of one worker. It returns the worker's checksum and the
// number of inner-loop iterations it executed.
type job func() (checksum float64, iterations uint64)

func runTyped[T Number](d *Driver, cfg WorkUnitConfig) (*BenchmarkResult, error) {
	var (
		jobs        []job
		prepare     func()
		release     func(threadID int)
		ops         *Operands[T]
		matrixTasks []MatrixTask[T]
	)

	switch cfg.Mode {
	case ModeFlops:
		tasks, err := NewFlopTasks[T](cfg)
		if err != nil {
			return nil, err
		}
		for _, t := range tasks {
			jobs = append(jobs, func() (float64, uint64) {
				acc, n := t.Saturate()
				return float64(acc), n
			})
		}

	case ModeMatrix:
		var err error
		ops, err = AllocateOperands[T](int(cfg.Size), d.Seed, cfg.MemoryLimit)
		if err != nil {
			return nil, err
		}
		defer ops.Release()

		policy := cfg.Transpose
		if cfg.Kernel == KernelFull {
			policy = TransposeOnce
		}
		matrixTasks = NewMatrixTasks(ops, cfg.Threads, policy)
		release = func(threadID int) { matrixTasks[threadID].Leave() }

		switch {
		case cfg.Kernel == KernelFull:
			prepare = func() { ops.B.Transpose(TransposeBlockSize) }
		case policy == TransposeOnce:
			prepare = ops.B.SweepTranspose
		}

		for _, t := range matrixTasks {
			if cfg.Kernel == KernelFull {
				jobs = append(jobs, func() (float64, uint64) {
					t.MultiplyFull()
					start, end := t.RowRange()
					return 0, uint64(end-start) * uint64(t.Size) * uint64(t.Size)
				})
				continue
			}
			jobs = append(jobs, func() (float64, uint64) {
				t.MultiplyStrided()
				c := uint64(stridedCount(t.ThreadID, t.Threads, t.Size))
				return 0, c * c * c
			})
		}
	}

	slots := make([]checksumSlot, cfg.Threads)

	cpuStart := processCPUSeconds()
	start := d.now()
	if prepare != nil {
		prepare()
	}
	err := d.spawnAndJoin(jobs, slots, release)
	end := d.now()
	cpuEnd := processCPUSeconds()
	if err != nil {
		return nil, err
	}

	res := &BenchmarkResult{
		Mode:       cfg.Mode.String(),
		Type:       cfg.Type.String(),
		Size:       cfg.Size,
		Threads:    cfg.Threads,
		CPUSeconds: cpuEnd - cpuStart,
		Checksums:  make([]float64, cfg.Threads),
		Timestamp:  start,
	}
	for t := range slots {
		res.Checksums[t] = slots[t].value
		res.Iterations += slots[t].iterations
	}

	if ops != nil {
		res.Kernel = cfg.Kernel.String()
		res.Seed = ops.Seed
		if cfg.Kernel == KernelStrided {
			res.Transpose = cfg.Transpose.String()
		}
		for t, task := range matrixTasks {
			res.Checksums[t] = task.Checksum(cfg.Kernel)
		}
		if d.Verify {
			if err := VerifyOperands(ops, cfg.Threads, cfg.Kernel); err != nil {
				return nil, err
			}
			res.Verified = true
		}
		ops.Release()
	}

	elapsed := end.Sub(start)
	res.ElapsedSeconds = elapsed.Seconds()
	res.Throughput, err = Throughput(cfg, elapsed)
	if err != nil {
		return nil, err
	}

	for t, v := range res.Checksums {
		d.logf("thread %d checksum %s\n", t, strconv.FormatFloat(v, 'f', -1, 64))
	}
	d.logf("cpu time %.6fs over %.6fs wall\n", res.CPUSeconds, res.ElapsedSeconds)

	return res, nil
}

// spawnAndJoin runs every job on its own goroutine, locked to an OS thread,
// and waits for all of them. release, if set, runs as each worker exits,
// whether or not it failed.
func (d *Driver) spawnAndJoin(jobs []job, slots []checksumSlot, release func(threadID int)) error {
	errs := make([]error, len(jobs))

	var wg sync.WaitGroup
	for t, work := range jobs {
		wg.Add(1)
		d.spawned.Add(1)
		go func() {
			defer wg.Done()
			defer d.joined.Add(1)
			defer func() {
				if r := recover(); r != nil {
					errs[t] = fmt.Errorf("worker %d: %v: %w", t, r, ErrThreadManagement)
				}
				if release != nil {
					release(t)
				}
			}()

			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			if d.beforeWork != nil {
				d.beforeWork(t)
			}
			slots[t].value, slots[t].iterations = work()
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}
	spawned, joined := d.spawned.Load(), d.joined.Load()
	if spawned != int64(len(jobs)) || joined != spawned {
		return fmt.Errorf("spawned %d workers, joined %d: %w", spawned, joined, ErrThreadManagement)
	}
	return nil
}

// Throughput converts an elapsed time into the reported figure for cfg.
func Throughput(cfg WorkUnitConfig, elapsed time.Duration) (float64, error) {
	if elapsed <= 0 {
		return 0, fmt.Errorf("elapsed time %v: %w", elapsed, ErrTimingAnomaly)
	}
	if _, err := mulInt64(cfg.Size, cfg.opsScale()); err != nil {
		return 0, fmt.Errorf("size %d: %w", cfg.Size, err)
	}

	secs := elapsed.Seconds()
	switch cfg.Mode {
	case ModeMatrix:
		ops, err := cfg.MatrixOps()
		if err != nil {
			return 0, err
		}
		return float64(ops) / GigaBytes / secs, nil
	default:
		gigaOps := float64(cfg.Size) * (float64(cfg.opsScale()) / GigaFlops)
		return gigaOps / secs, nil
	}
}

// stridedCount returns how many of 0..n-1 are congruent to t modulo step.
func stridedCount(t, step, n int) int {
	if t >= n {
		return 0
	}
	return (n-1-t)/step + 1
}
