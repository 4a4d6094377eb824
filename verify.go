package main

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// verifyTolerance is the relative error allowed between a float64 result
// and the gonum reference, whose summation order differs.
const verifyTolerance = 1e-9

// VerifyOperands checks C against what the kernel should have produced from
// A and the current contents of B. In both kernels cell (i, j) is a dot
// product of row i of A with row j of B: over all k for the full kernel, and
// over k ≡ i ≡ j (mod threads) for the strided one, whose other cells must
// be zero.
func VerifyOperands[T Number](ops *Operands[T], threads int, kernel Kernel) error {
	switch o := any(ops).(type) {
	case *Operands[float64]:
		return verifyFloat(o, threads, kernel)
	case *Operands[int32]:
		return verifyInt32(o, threads, kernel)
	}
	return fmt.Errorf("no reference for %T: %w", ops, ErrVerificationFailed)
}

// ReferenceProduct computes with gonum the matrix C the kernel should have
// produced from a and b.
func ReferenceProduct(a, b *Matrix[float64], threads int, kernel Kernel) *mat.Dense {
	n := a.Size()
	am := mat.NewDense(n, n, a.Clone().Data())
	bm := mat.NewDense(n, n, b.Clone().Data())

	ref := mat.NewDense(n, n, nil)
	if kernel == KernelFull || threads == 1 {
		ref.Mul(am, bm.T())
		return ref
	}

	masked := mat.NewDense(n, n, nil)
	var part mat.Dense
	for t := 0; t < threads && t < n; t++ {
		// Keep only the columns k ≡ t of A, so the product sums over them.
		masked.Apply(func(_, k int, v float64) float64 {
			if k%threads == t {
				return v
			}
			return 0
		}, am)
		part.Mul(masked, bm.T())
		for i := t; i < n; i += threads {
			for j := t; j < n; j += threads {
				ref.Set(i, j, part.At(i, j))
			}
		}
	}
	return ref
}

func verifyFloat(ops *Operands[float64], threads int, kernel Kernel) error {
	ref := ReferenceProduct(ops.A, ops.B, threads, kernel)
	n := ops.C.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want, got := ref.At(i, j), ops.C.At(i, j)
			if math.Abs(got-want) > verifyTolerance*math.Max(1, math.Abs(want)) {
				return fmt.Errorf("C[%d][%d] = %g, want %g: %w", i, j, got, want, ErrVerificationFailed)
			}
		}
	}
	return nil
}

// verifyInt32 recomputes the product in int64. Wrapping arithmetic agrees
// modulo 2³², so truncating the reference gives the exact int32 result.
func verifyInt32(ops *Operands[int32], threads int, kernel Kernel) error {
	n := ops.C.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var want int64
			switch {
			case kernel == KernelFull:
				for k := 0; k < n; k++ {
					want += int64(ops.A.At(i, k)) * int64(ops.B.At(j, k))
				}
			case i%threads == j%threads:
				for k := i % threads; k < n; k += threads {
					want += int64(ops.A.At(i, k)) * int64(ops.B.At(j, k))
				}
			}
			if got := ops.C.At(i, j); got != int32(want) {
				return fmt.Errorf("C[%d][%d] = %d, want %d: %w", i, j, got, int32(want), ErrVerificationFailed)
			}
		}
	}
	return nil
}
