package main

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RandMax is the upper bound of operand values, the same as glibc's RAND_MAX.
const RandMax = math.MaxInt32

// TransposeBlockSize is the tile edge of the blocked transpose: a 64×64
// float64 tile is 32 KB, and a pair of tiles fits a typical L1 data cache.
const TransposeBlockSize = 64

// Matrix is an owned size×size matrix stored row-major in a flat slice.
//
// Matrix is not safe for concurrent use. The multiplier only shares one
// between goroutines when their writes go to disjoint cells.
type Matrix[T Number] struct {
	n    int
	data []T
}

// NewMatrix allocates a zeroed size×size matrix. A size the runtime cannot
// allocate is reported as ErrAllocationFailure rather than a panic.
func NewMatrix[T Number](size int) (m *Matrix[T], err error) {
	if size <= 0 {
		return nil, fmt.Errorf("matrix size %d: %w", size, ErrInvalidConfiguration)
	}
	if _, err := mulInt64(uint64(size), uint64(size)); err != nil {
		return nil, fmt.Errorf("matrix %dx%d: %w", size, size, ErrAllocationFailure)
	}

	defer func() {
		// makeslice panics with a runtime error when the length is out of
		// range for the address space.
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("matrix %dx%d: %v: %w", size, size, r, ErrAllocationFailure)
		}
	}()

	return &Matrix[T]{n: size, data: make([]T, size*size)}, nil
}

// Size returns the edge length of the matrix.
func (m *Matrix[T]) Size() int { return m.n }

// At returns the element at row i, column j.
func (m *Matrix[T]) At(i, j int) T { return m.data[i*m.n+j] }

// Set stores v at row i, column j.
func (m *Matrix[T]) Set(i, j int, v T) { m.data[i*m.n+j] = v }

// Row returns row i as a slice aliasing the matrix storage.
func (m *Matrix[T]) Row(i int) []T { return m.data[i*m.n : (i+1)*m.n] }

// Data returns the backing slice.
func (m *Matrix[T]) Data() []T { return m.data }

// Released reports whether Release has been called.
func (m *Matrix[T]) Released() bool { return m.data == nil }

// Release drops the backing storage. Calling it more than once is harmless.
func (m *Matrix[T]) Release() { m.data = nil }

// Clone returns a deep copy.
func (m *Matrix[T]) Clone() *Matrix[T] {
	out := &Matrix[T]{n: m.n, data: make([]T, len(m.data))}
	copy(out.data, m.data)
	return out
}

// FillRandom overwrites every element with a value drawn from src.
// Floating types are uniform on [0, RandMax]; integer types take the
// non-negative 31-bit range of C's rand().
func (m *Matrix[T]) FillRandom(src rand.Source) {
	switch data := any(m.data).(type) {
	case []float64:
		u := distuv.Uniform{Min: 0, Max: RandMax, Src: src}
		for i := range data {
			data[i] = u.Rand()
		}
	case []float32:
		u := distuv.Uniform{Min: 0, Max: RandMax, Src: src}
		for i := range data {
			data[i] = float32(u.Rand())
		}
	default:
		r := rand.New(src)
		for i := range m.data {
			m.data[i] = T(r.Int31())
		}
	}
}

// SweepTranspose swaps B[i][j] with B[j][i] for every i and j, the loop
// the strided kernel runs before its dot products. Each
// off-diagonal pair is swapped twice, so the contents end up unchanged; the
// sweep is kept because its memory traffic is part of the measured work.
func (m *Matrix[T]) SweepTranspose() {
	n, d := m.n, m.data
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d[i*n+j], d[j*n+i] = d[j*n+i], d[i*n+j]
		}
	}
}

// Transpose transposes the matrix in place, tile by tile, so both the row
// being read and the column being written stay cache resident.
func (m *Matrix[T]) Transpose(blockSize int) {
	if blockSize <= 0 {
		blockSize = TransposeBlockSize
	}
	n, d := m.n, m.data
	for i0 := 0; i0 < n; i0 += blockSize {
		iMax := min(i0+blockSize, n)
		for j0 := i0; j0 < n; j0 += blockSize {
			jMax := min(j0+blockSize, n)
			for i := i0; i < iMax; i++ {
				// On diagonal tiles only the upper triangle is swapped.
				for j := max(j0, i+1); j < jMax; j++ {
					d[i*n+j], d[j*n+i] = d[j*n+i], d[i*n+j]
				}
			}
		}
	}
}

// Operands are the three matrices of a matrix-mode run: the inputs A and B
// and the zeroed result C.
type Operands[T Number] struct {
	A, B, C *Matrix[T]
	Seed    uint64
}

// OperandBytes returns the memory three size×size matrices of elemBytes
// elements need.
func OperandBytes(size uint64, elemBytes int64) (uint64, error) {
	sq, err := mulInt64(size, size)
	if err != nil {
		return 0, err
	}
	return mulInt64(sq, 3*uint64(elemBytes))
}

// AllocateOperands allocates A, B and C and fills A and B from a PCG source
// seeded with seed. A zero seed draws one from the clock. memLimit, when
// positive, bounds the total bytes of the three matrices; the machine's
// physical memory bounds them whenever it is known.
//
// Both bounds are checked before anything is allocated. The runtime does not
// return an error when the heap cannot grow, it aborts the process.
func AllocateOperands[T Number](size int, seed uint64, memLimit int64) (*Operands[T], error) {
	var zero T
	need, err := OperandBytes(uint64(size), int64(unsafe.Sizeof(zero)))
	if err != nil {
		return nil, fmt.Errorf("operands for size %d: %w", size, ErrAllocationFailure)
	}
	if memLimit > 0 && need > uint64(memLimit) {
		return nil, fmt.Errorf("operands need %d bytes, limit is %d: %w", need, memLimit, ErrAllocationFailure)
	}
	if total, ok := physicalMemory(); ok && need > total {
		return nil, fmt.Errorf("operands need %d bytes, machine has %d: %w", need, total, ErrAllocationFailure)
	}

	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	ops := &Operands[T]{Seed: seed}

	for _, dst := range []**Matrix[T]{&ops.A, &ops.B, &ops.C} {
		m, err := NewMatrix[T](size)
		if err != nil {
			ops.Release()
			return nil, err
		}
		*dst = m
	}

	src := rand.NewSource(seed)
	ops.A.FillRandom(src)
	ops.B.FillRandom(src)

	return ops, nil
}

// Release frees all three matrices. It is safe on a partially allocated or
// already released set.
func (o *Operands[T]) Release() {
	for _, m := range []*Matrix[T]{o.A, o.B, o.C} {
		if m != nil {
			m.Release()
		}
	}
}
