package main

import "sync"

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements the two matrix-mode workloads.
//
// STRIDED (the measured benchmark):
// Thread t of T walks i, j and k all starting at t with step T:
//
//   for i := t; i < n; i += T
//     for j := t; j < n; j += T
//       for k := t; k < n; k += T
//         C[i][j] += A[i][k] * B[j][k]
//
// This is round-robin partitioning, not blocking. Thread t only ever writes
// cells with i ≡ j ≡ t (mod T), so no two threads share a cell and C needs no
// lock. It is NOT a complete product: cells with i ≢ j (mod T) are never
// touched, each visited cell only sums over k ≡ t, and when n ≤ t thread t
// does nothing at all. With T == 1 it degenerates to the full C = A × Bᵀ.
//
// Before the dot products, B gets a transpose sweep (see SweepTranspose).
// Either it is swept once before the workers start, or every worker sweeps
// it in turn and waits at a barrier so nobody reads B while it moves.
//
// FULL (the corrected variant):
// B is transposed for real once, then output rows are split into contiguous
// blocks, one per worker. Each cell gets the complete dot product, so
// C = A × B. Throughput numbers from this kernel measure a different amount
// of work and must not be compared with strided runs.
//
// ===========================================================================

// transposeBarrier serializes per-worker transpose sweeps and holds every
// worker until all of them have arrived. A worker arrives at most once,
// either after its sweep or when it leaves early.
type transposeBarrier struct {
	mu      sync.Mutex
	done    sync.WaitGroup
	arrived []sync.Once
}

func newTransposeBarrier(workers int) *transposeBarrier {
	b := &transposeBarrier{arrived: make([]sync.Once, workers)}
	b.done.Add(workers)
	return b
}

func (b *transposeBarrier) sweep(id int, m interface{ SweepTranspose() }) {
	func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		m.SweepTranspose()
	}()
	b.arrive(id)
	b.done.Wait()
}

func (b *transposeBarrier) arrive(id int) {
	b.arrived[id].Do(b.done.Done)
}

// MatrixTask is one worker's share of a matrix-mode run. A, B and C are
// shared between all tasks of the run; the partition decides which cells of
// C this task writes.
type MatrixTask[T Number] struct {
	ThreadID int
	Threads  int
	Size     int
	A, B, C  *Matrix[T]

	// barrier is set when every worker performs its own transpose sweep.
	barrier *transposeBarrier
}

// MultiplyStrided runs the strided compute phase for this task, preceded by
// the task's own transpose sweep when the run uses one per worker.
func (t MatrixTask[T]) MultiplyStrided() {
	if t.barrier != nil {
		t.barrier.sweep(t.ThreadID, t.B)
	}

	n, step := t.Size, t.Threads
	a, b, c := t.A.data, t.B.data, t.C.data
	for i := t.ThreadID; i < n; i += step {
		for j := t.ThreadID; j < n; j += step {
			for k := t.ThreadID; k < n; k += step {
				c[i*n+j] = MulAdd(c[i*n+j], a[i*n+k], b[j*n+k])
			}
		}
	}
}

// Leave releases this task's place at the transpose barrier if it has not
// taken it yet, so the other workers are not held by one that failed. It is
// a no-op when the run has no barrier or the task already swept.
func (t MatrixTask[T]) Leave() {
	if t.barrier != nil {
		t.barrier.arrive(t.ThreadID)
	}
}

// RowRange returns the contiguous rows [start, end) this task owns in the
// full kernel. The last worker takes the remainder.
func (t MatrixTask[T]) RowRange() (start, end int) {
	per := t.Size / t.Threads
	start = t.ThreadID * per
	end = start + per
	if t.ThreadID == t.Threads-1 {
		end = t.Size
	}
	return start, end
}

// MultiplyFull computes complete dot products for this task's rows. B must
// already hold the transpose of the right-hand operand.
func (t MatrixTask[T]) MultiplyFull() {
	n := t.Size
	start, end := t.RowRange()
	for i := start; i < end; i++ {
		ai := t.A.Row(i)
		ci := t.C.Row(i)
		for j := 0; j < n; j++ {
			bj := t.B.Row(j)
			var sum T
			for k := 0; k < n; k++ {
				sum = MulAdd(sum, ai[k], bj[k])
			}
			ci[j] = sum
		}
	}
}

// Checksum returns the sum of this task's cells of C. It runs after the
// timed region.
func (t MatrixTask[T]) Checksum(kernel Kernel) float64 {
	n := t.Size
	var sum float64
	if kernel == KernelFull {
		start, end := t.RowRange()
		for _, v := range t.C.data[start*n : end*n] {
			sum += float64(v)
		}
		return sum
	}
	for i := t.ThreadID; i < n; i += t.Threads {
		for j := t.ThreadID; j < n; j += t.Threads {
			sum += float64(t.C.data[i*n+j])
		}
	}
	return sum
}

// NewMatrixTasks builds one task per thread over ops. For the strided
// kernel with TransposePerWorker the tasks share a barrier so each one
// sweeps B before any of them computes.
func NewMatrixTasks[T Number](ops *Operands[T], threads int, policy TransposePolicy) []MatrixTask[T] {
	var barrier *transposeBarrier
	if policy == TransposePerWorker {
		barrier = newTransposeBarrier(threads)
	}

	tasks := make([]MatrixTask[T], threads)
	for t := range tasks {
		tasks[t] = MatrixTask[T]{
			ThreadID: t,
			Threads:  threads,
			Size:     ops.A.Size(),
			A:        ops.A,
			B:        ops.B,
			C:        ops.C,
			barrier:  barrier,
		}
	}
	return tasks
}
