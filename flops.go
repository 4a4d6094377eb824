package main

import "golang.org/x/sys/cpu"

// FlopTask is one worker's share of a flops-mode run.
type FlopTask[T Number] struct {
	ThreadID int
	Threads  int

	// Budget is the loop bound shared by all threads, see LoopBudget.
	Budget uint64
}

// Saturate runs the additive loop over the indices ThreadID, ThreadID+Threads,
// ... below Budget, and returns the accumulator and the iteration count.
// The accumulator only exists so the loop has an observable result.
func (t FlopTask[T]) Saturate() (acc T, iterations uint64) {
	step := uint64(t.Threads)
	for index := uint64(t.ThreadID); index < t.Budget; index += step {
		acc = Add(acc, T(index*2))
	}
	return acc, t.Iterations()
}

// Iterations returns the number of loop steps Saturate will take.
func (t FlopTask[T]) Iterations() uint64 {
	start := uint64(t.ThreadID)
	if start >= t.Budget {
		return 0
	}
	return (t.Budget-start-1)/uint64(t.Threads) + 1
}

// checksumSlot holds one worker's final accumulator on its own cache line.
type checksumSlot struct {
	value      float64
	iterations uint64
	_          cpu.CacheLinePad
}

// NewFlopTasks builds one task per thread for cfg.
func NewFlopTasks[T Number](cfg WorkUnitConfig) ([]FlopTask[T], error) {
	budget, err := LoopBudget(cfg.Size, cfg.Threads, cfg.opsScale())
	if err != nil {
		return nil, err
	}
	tasks := make([]FlopTask[T], cfg.Threads)
	for t := range tasks {
		tasks[t] = FlopTask[T]{ThreadID: t, Threads: cfg.Threads, Budget: budget}
	}
	return tasks, nil
}
