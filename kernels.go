package main

// Number is the set of element types the kernels run on. The benchmark
// itself uses int32 ("single") and float64 ("double").
type Number interface {
	~int32 | ~int64 | ~float32 | ~float64
}

// Add returns a + b. Integer types wrap on overflow.
func Add[T Number](a, b T) T { return a + b }

// Subtract returns a - b. Integer types wrap on overflow.
func Subtract[T Number](a, b T) T { return a - b }

// Multiply returns a * b. Integer types wrap on overflow.
func Multiply[T Number](a, b T) T { return a * b }

// Divide returns a / b. Integer division by zero is reported instead of
// panicking; floating division by zero follows IEEE 754.
func Divide[T Number](a, b T) (T, error) {
	var zero T
	if b == zero && !isFloat[T]() {
		return zero, ErrDivideByZero
	}
	return a / b, nil
}

// MulAdd returns acc + a*b as two separately rounded operations. The
// explicit conversion keeps the compiler from fusing them into an FMA.
func MulAdd[T Number](acc, a, b T) T {
	return Add(acc, T(Multiply(a, b)))
}

// isFloat reports whether T is a floating type; 1/2 truncates to zero for
// every integer type.
func isFloat[T Number]() bool {
	one := T(1)
	return one/2 != 0
}
