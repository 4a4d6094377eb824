package main

import "errors"

// Every failure a run can hit maps onto one of these. Call sites wrap them
// with fmt.Errorf("...: %w", ErrX) so callers match with errors.Is.
var (
	// ErrInvalidConfiguration indicates an unsupported mode, type, kernel or
	// transpose policy, or a size/thread count outside the accepted range.
	ErrInvalidConfiguration = errors.New("cpubench: invalid configuration")

	// ErrAllocationFailure indicates the operand matrices could not be allocated.
	ErrAllocationFailure = errors.New("cpubench: allocation failure")

	// ErrThreadManagement indicates a worker failed, or the number of joined
	// workers does not match the number spawned.
	ErrThreadManagement = errors.New("cpubench: thread management failure")

	// ErrOverflowDetected indicates a size product exceeded the int64 range.
	ErrOverflowDetected = errors.New("cpubench: size overflow detected")

	// ErrTimingAnomaly indicates a zero or negative elapsed time.
	ErrTimingAnomaly = errors.New("cpubench: timing anomaly")

	// ErrVerificationFailed indicates the result matrix does not match the
	// reference computed with gonum.
	ErrVerificationFailed = errors.New("cpubench: verification failed")

	// ErrDivideByZero indicates an integer division by zero.
	ErrDivideByZero = errors.New("cpubench: integer divide by zero")
)
