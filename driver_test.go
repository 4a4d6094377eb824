package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallFlops keeps flops runs in the millisecond range.
const smallFlops = 1_000_000

func TestDriverFlops(t *testing.T) {
	d := &Driver{}
	cfg := WorkUnitConfig{Mode: ModeFlops, Type: TypeDouble, Size: 10, Threads: 2, OpsScale: smallFlops}

	res, err := d.Run(cfg)
	require.NoError(t, err)

	assert.Equal(t, "flops", res.Mode)
	assert.Equal(t, "double", res.Type)
	assert.Equal(t, uint64(10), res.Size)
	assert.Equal(t, 2, res.Threads)
	assert.Positive(t, res.ElapsedSeconds)
	assert.Positive(t, res.Throughput)
	assert.Empty(t, res.Kernel)
	assert.Len(t, res.Checksums, 2)

	budget, err := LoopBudget(10, 2, smallFlops)
	require.NoError(t, err)
	assert.Equal(t, budget, res.Iterations)

	assert.Equal(t, RunStats{Spawned: 2, Joined: 2}, d.Stats())
}

func TestDriverFlopsChecksums(t *testing.T) {
	d := &Driver{}
	res, err := d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeSingle, Size: 10, Threads: 1, OpsScale: 1})
	require.NoError(t, err)

	// Budget 5: 0 + 2 + 4 + 6 + 8.
	assert.Equal(t, []float64{20}, res.Checksums)
	assert.Equal(t, uint64(5), res.Iterations)
}

func TestDriverMatrix(t *testing.T) {
	d := &Driver{Seed: 7, Verify: true}
	cfg := WorkUnitConfig{Mode: ModeMatrix, Type: TypeSingle, Size: 100, Threads: 4}

	res, err := d.Run(cfg)
	require.NoError(t, err)

	assert.True(t, res.Verified)
	assert.Equal(t, "strided", res.Kernel)
	assert.Equal(t, "once", res.Transpose)
	assert.Equal(t, uint64(7), res.Seed)
	assert.Equal(t, RunStats{Spawned: 4, Joined: 4}, d.Stats())

	// Every thread owns 25 of each of i, j and k.
	assert.Equal(t, uint64(4*25*25*25), res.Iterations)

	want := float64(100*100*100) / GigaBytes / res.ElapsedSeconds
	assert.InEpsilon(t, want, res.Throughput, 1e-9)
}

func TestDriverMatrixVariants(t *testing.T) {
	tests := []struct {
		typ       NumericType
		size      uint64
		threads   int
		kernel    Kernel
		transpose TransposePolicy
	}{
		{TypeDouble, 10, 3, KernelStrided, TransposeOnce},
		{TypeSingle, 10, 3, KernelStrided, TransposeOnce},
		{TypeDouble, 17, 4, KernelStrided, TransposePerWorker},
		{TypeSingle, 3, 4, KernelStrided, TransposePerWorker},
		{TypeDouble, 33, 4, KernelFull, TransposeOnce},
		{TypeSingle, 10, 3, KernelFull, TransposeOnce},
		{TypeDouble, 2, 4, KernelFull, TransposeOnce},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s_%d_%d_%s_%s", tt.typ, tt.size, tt.threads, tt.kernel, tt.transpose)
		t.Run(name, func(t *testing.T) {
			d := &Driver{Seed: 3, Verify: true}
			res, err := d.Run(WorkUnitConfig{
				Mode: ModeMatrix, Type: tt.typ, Size: tt.size, Threads: tt.threads,
				Kernel: tt.kernel, Transpose: tt.transpose,
			})
			require.NoError(t, err)
			assert.True(t, res.Verified)
			assert.Equal(t, int64(tt.threads), d.Stats().Joined)
		})
	}
}

func TestDriverFullKernelIterations(t *testing.T) {
	d := &Driver{Seed: 1}
	res, err := d.Run(WorkUnitConfig{Mode: ModeMatrix, Type: TypeDouble, Size: 10, Threads: 3, Kernel: KernelFull})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), res.Iterations)
	assert.Empty(t, res.Transpose)
	assert.Equal(t, "full", res.Kernel)
}

func TestDriverZeroElapsed(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := &Driver{Clock: func() time.Time { return frozen }}

	_, err := d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeDouble, Size: 1, Threads: 1, OpsScale: 10})
	require.ErrorIs(t, err, ErrTimingAnomaly)

	_, err = d.Run(WorkUnitConfig{Mode: ModeMatrix, Type: TypeSingle, Size: 4, Threads: 2})
	require.ErrorIs(t, err, ErrTimingAnomaly)
}

func TestDriverWorkerPanic(t *testing.T) {
	d := &Driver{beforeWork: func(threadID int) {
		if threadID == 1 {
			panic("boom")
		}
	}}

	_, err := d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeDouble, Size: 10, Threads: 3, OpsScale: 100})
	require.ErrorIs(t, err, ErrThreadManagement)
	assert.Contains(t, err.Error(), "worker 1")
	assert.Equal(t, RunStats{Spawned: 3, Joined: 3}, d.Stats())
}

func TestDriverInvalidConfigSpawnsNothing(t *testing.T) {
	d := &Driver{}
	_, err := d.Run(WorkUnitConfig{Mode: Mode(9), Type: TypeDouble, Size: 10, Threads: 1})
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Zero(t, d.Stats())

	_, err = d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeDouble, Size: 9_223_372_037, Threads: 1})
	require.ErrorIs(t, err, ErrOverflowDetected)
	assert.Zero(t, d.Stats())
}

func TestDriverAllocationFailureSpawnsNothing(t *testing.T) {
	d := &Driver{}
	_, err := d.Run(WorkUnitConfig{Mode: ModeMatrix, Type: TypeDouble, Size: 100, Threads: 2, MemoryLimit: 1024})
	require.ErrorIs(t, err, ErrAllocationFailure)
	assert.Zero(t, d.Stats())
}

func TestDriverOperandsBeyondPhysicalMemory(t *testing.T) {
	if _, ok := physicalMemory(); !ok {
		t.Skip("physical memory size unknown on this platform")
	}

	// 3 × 2e6² × 4 bytes = 48 TB, valid but never allocatable.
	cfg := WorkUnitConfig{Mode: ModeMatrix, Type: TypeSingle, Size: 2_000_000, Threads: 1}
	require.NoError(t, cfg.Validate())

	d := &Driver{}
	_, err := d.Run(cfg)
	require.ErrorIs(t, err, ErrAllocationFailure)
	assert.Zero(t, d.Stats())
}

func TestDriverWorkerPanicPerWorkerTranspose(t *testing.T) {
	d := &Driver{beforeWork: func(threadID int) {
		if threadID == 1 {
			panic("boom")
		}
	}}
	cfg := WorkUnitConfig{Mode: ModeMatrix, Type: TypeDouble, Size: 8, Threads: 2, Transpose: TransposePerWorker}

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(cfg)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrThreadManagement)
		assert.Contains(t, err.Error(), "worker 1")
		assert.Equal(t, RunStats{Spawned: 2, Joined: 2}, d.Stats())
	case <-time.After(10 * time.Second):
		t.Fatal("run blocked at the transpose barrier")
	}
}

func TestDriverVerboseOutput(t *testing.T) {
	var buf bytes.Buffer
	d := NewDriver(&buf, true)
	_, err := d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeSingle, Size: 4, Threads: 2, OpsScale: 10})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "thread 0 checksum")
	assert.Contains(t, out, "thread 1 checksum")
	assert.Contains(t, out, "cpu time")

	buf.Reset()
	d.Verbose = false
	_, err = d.Run(WorkUnitConfig{Mode: ModeFlops, Type: TypeSingle, Size: 4, Threads: 2, OpsScale: 10})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestThroughput(t *testing.T) {
	flops := WorkUnitConfig{Mode: ModeFlops, Size: 10}
	got, err := Throughput(flops, 2*time.Second)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-12)

	matrix := WorkUnitConfig{Mode: ModeMatrix, Size: 1024}
	got, err = Throughput(matrix, time.Second/2)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)

	for _, elapsed := range []time.Duration{0, -time.Millisecond} {
		_, err = Throughput(flops, elapsed)
		require.ErrorIs(t, err, ErrTimingAnomaly)
	}

	_, err = Throughput(WorkUnitConfig{Mode: ModeFlops, Size: 1 << 40}, time.Second)
	require.ErrorIs(t, err, ErrOverflowDetected)
}

func TestStridedCount(t *testing.T) {
	assert.Equal(t, 2, stridedCount(0, 4, 8))
	assert.Equal(t, 3, stridedCount(0, 3, 7))
	assert.Equal(t, 2, stridedCount(2, 3, 7))
	assert.Equal(t, 0, stridedCount(5, 8, 4))
}

func TestSpawnAndJoinJoinsErrors(t *testing.T) {
	d := &Driver{beforeWork: func(int) { panic(errors.New("lost")) }}
	jobs := []job{
		func() (float64, uint64) { return 0, 0 },
		func() (float64, uint64) { return 0, 0 },
	}
	err := d.spawnAndJoin(jobs, make([]checksumSlot, len(jobs)), nil)
	require.ErrorIs(t, err, ErrThreadManagement)
	assert.Contains(t, err.Error(), "worker 0")
	assert.Contains(t, err.Error(), "worker 1")
}
