package main

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file defines the parameters of a single benchmark run and the size
// arithmetic derived from them.
//
// INTENTION:
// A run is fully described by four values (mode, numeric type, size, thread
// count) plus a handful of knobs that select between workload variants. The
// config is built once, validated once, and never mutated afterwards.
//
// OVERFLOW:
// Two products decide whether a size is usable at all:
//   - size × OpsScale   (flops budget, reported as giga-ops)
//   - size × size × size (matrix work, reported as giga-element-ops)
// Both must fit in int64. We check with math/bits instead of multiplying and
// testing the sign afterwards: unsigned overflow in Go wraps silently, so a
// sign test after the fact can miss it.
//
// ===========================================================================

const (
	// GigaFlops is the number of loop operations one unit of flops-mode size
	// stands for.
	GigaFlops = 1_000_000_000

	// GigaBytes normalizes matrix-mode work (size³) into the reported figure.
	GigaBytes = 1024 * 1024 * 1024

	// MaxThreads is the Go runtime's default ceiling on OS threads
	// (runtime/debug.SetMaxThreads).
	MaxThreads = 10000
)

// Mode selects the workload.
type Mode int

const (
	ModeFlops Mode = iota
	ModeMatrix
)

func (m Mode) String() string {
	switch m {
	case ModeFlops:
		return "flops"
	case ModeMatrix:
		return "matrix"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps "flops" and "matrix" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "flops":
		return ModeFlops, nil
	case "matrix":
		return ModeMatrix, nil
	}
	return 0, fmt.Errorf("unknown mode %q: %w", s, ErrInvalidConfiguration)
}

// NumericType selects the element type. "single" runs on int32 and "double"
// on float64.
type NumericType int

const (
	TypeSingle NumericType = iota
	TypeDouble
)

func (t NumericType) String() string {
	switch t {
	case TypeSingle:
		return "single"
	case TypeDouble:
		return "double"
	}
	return fmt.Sprintf("NumericType(%d)", int(t))
}

// ParseNumericType maps "single" and "double" to a NumericType.
func ParseNumericType(s string) (NumericType, error) {
	switch s {
	case "single":
		return TypeSingle, nil
	case "double":
		return TypeDouble, nil
	}
	return 0, fmt.Errorf("unknown type %q: %w", s, ErrInvalidConfiguration)
}

// Kernel selects the matrix-mode algorithm.
type Kernel int

const (
	// KernelStrided is the measured workload: every thread walks i, j and k
	// with the same stride. It does not compute the full product.
	KernelStrided Kernel = iota

	// KernelFull splits output rows into contiguous blocks and computes the
	// complete product A × B. Its numbers are not comparable to strided runs.
	KernelFull
)

func (k Kernel) String() string {
	switch k {
	case KernelStrided:
		return "strided"
	case KernelFull:
		return "full"
	}
	return fmt.Sprintf("Kernel(%d)", int(k))
}

// ParseKernel maps "strided" and "full" to a Kernel.
func ParseKernel(s string) (Kernel, error) {
	switch s {
	case "strided", "":
		return KernelStrided, nil
	case "full":
		return KernelFull, nil
	}
	return 0, fmt.Errorf("unknown kernel %q: %w", s, ErrInvalidConfiguration)
}

// TransposePolicy decides who performs the transpose sweep over B.
type TransposePolicy int

const (
	// TransposeOnce sweeps B once before any worker starts.
	TransposeOnce TransposePolicy = iota

	// TransposePerWorker has every worker sweep B, one at a time, and holds
	// all workers at a barrier until the last sweep is done.
	TransposePerWorker
)

func (p TransposePolicy) String() string {
	switch p {
	case TransposeOnce:
		return "once"
	case TransposePerWorker:
		return "per-worker"
	}
	return fmt.Sprintf("TransposePolicy(%d)", int(p))
}

// ParseTransposePolicy maps "once" and "per-worker" to a TransposePolicy.
func ParseTransposePolicy(s string) (TransposePolicy, error) {
	switch s {
	case "once", "":
		return TransposeOnce, nil
	case "per-worker":
		return TransposePerWorker, nil
	}
	return 0, fmt.Errorf("unknown transpose policy %q: %w", s, ErrInvalidConfiguration)
}

// WorkUnitConfig holds the validated parameters of one benchmark run.
type WorkUnitConfig struct {
	Mode    Mode
	Type    NumericType
	Size    uint64
	Threads int

	// Kernel and Transpose only apply to matrix mode.
	Kernel    Kernel
	Transpose TransposePolicy

	// OpsScale is the number of loop operations per unit of size in flops
	// mode. Zero means GigaFlops.
	OpsScale uint64

	// MemoryLimit caps the bytes the three matrices may take. Zero means
	// no limit.
	MemoryLimit int64
}

// ConfigOption adjusts a parsed config before it is validated.
type ConfigOption func(*WorkUnitConfig) error

// ParseWorkUnitConfig builds a config from the four positional arguments of
// the command line, applies opts in order and validates the result.
func ParseWorkUnitConfig(mode, typ, size, threads string, opts ...ConfigOption) (WorkUnitConfig, error) {
	cfg, err := parseWorkUnitArgs(mode, typ, size, threads)
	if err != nil {
		return cfg, err
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

// parseWorkUnitArgs converts the positional arguments without validating
// the result.
func parseWorkUnitArgs(mode, typ, size, threads string) (WorkUnitConfig, error) {
	var cfg WorkUnitConfig
	var err error

	if cfg.Mode, err = ParseMode(mode); err != nil {
		return cfg, err
	}
	if cfg.Type, err = ParseNumericType(typ); err != nil {
		return cfg, err
	}

	cfg.Size, err = strconv.ParseUint(strings.TrimSpace(size), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return cfg, fmt.Errorf("size %q: %w", size, ErrOverflowDetected)
		}
		return cfg, fmt.Errorf("size %q is not an unsigned integer: %w", size, ErrInvalidConfiguration)
	}

	cfg.Threads, err = strconv.Atoi(strings.TrimSpace(threads))
	if err != nil {
		return cfg, fmt.Errorf("threads %q is not an integer: %w", threads, ErrInvalidConfiguration)
	}
	return cfg, nil
}

// Validate checks every invariant of the config. It never modifies cfg.
func (c WorkUnitConfig) Validate() error {
	if c.Mode != ModeFlops && c.Mode != ModeMatrix {
		return fmt.Errorf("mode %v: %w", c.Mode, ErrInvalidConfiguration)
	}
	if c.Type != TypeSingle && c.Type != TypeDouble {
		return fmt.Errorf("type %v: %w", c.Type, ErrInvalidConfiguration)
	}
	if c.Kernel != KernelStrided && c.Kernel != KernelFull {
		return fmt.Errorf("kernel %v: %w", c.Kernel, ErrInvalidConfiguration)
	}
	if c.Transpose != TransposeOnce && c.Transpose != TransposePerWorker {
		return fmt.Errorf("transpose %v: %w", c.Transpose, ErrInvalidConfiguration)
	}
	if c.Kernel == KernelFull && c.Transpose == TransposePerWorker {
		// A real transpose applied once per worker would flip B back and forth.
		return fmt.Errorf("kernel full requires transpose once: %w", ErrInvalidConfiguration)
	}
	if c.Size == 0 {
		return fmt.Errorf("size must be positive: %w", ErrInvalidConfiguration)
	}
	if c.Threads < 1 || c.Threads > MaxThreads {
		return fmt.Errorf("threads must be in [1, %d], got %d: %w", MaxThreads, c.Threads, ErrInvalidConfiguration)
	}
	if c.MemoryLimit < 0 {
		return fmt.Errorf("memory limit must not be negative: %w", ErrInvalidConfiguration)
	}

	if _, err := mulInt64(c.Size, c.opsScale()); err != nil {
		return fmt.Errorf("size %d × %d: %w", c.Size, c.opsScale(), err)
	}
	if c.Mode == ModeMatrix {
		if _, err := c.MatrixOps(); err != nil {
			return err
		}
		if c.Size > math.MaxInt {
			return fmt.Errorf("size %d exceeds addressable length: %w", c.Size, ErrOverflowDetected)
		}
	}
	return nil
}

func (c WorkUnitConfig) opsScale() uint64 {
	if c.OpsScale == 0 {
		return GigaFlops
	}
	return c.OpsScale
}

// MatrixOps returns size³, the element-op count of a matrix run.
func (c WorkUnitConfig) MatrixOps() (uint64, error) {
	sq, err := mulInt64(c.Size, c.Size)
	if err != nil {
		return 0, fmt.Errorf("size %d squared: %w", c.Size, err)
	}
	cube, err := mulInt64(sq, c.Size)
	if err != nil {
		return 0, fmt.Errorf("size %d cubed: %w", c.Size, err)
	}
	return cube, nil
}

// LoopBudget returns the flops loop bound shared by all threads:
// (size/threads × scale) / 2. Each thread covers the indices congruent to
// its ID modulo threads. A zero budget is valid and means no iterations.
func LoopBudget(size uint64, threads int, scale uint64) (uint64, error) {
	if threads < 1 {
		return 0, fmt.Errorf("threads must be positive: %w", ErrInvalidConfiguration)
	}
	perThread := size / uint64(threads)
	total, err := mulInt64(perThread, scale)
	if err != nil {
		return 0, fmt.Errorf("loop budget %d × %d: %w", perThread, scale, err)
	}
	return total / 2, nil
}

// mulInt64 multiplies a and b and fails if the product does not fit in int64.
func mulInt64(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, ErrOverflowDetected
	}
	return lo, nil
}
