//go:build linux || darwin || freebsd

package main

import "golang.org/x/sys/unix"

// processCPUSeconds returns user plus system CPU time consumed by the
// process so far, or 0 if the kernel refuses to say.
func processCPUSeconds() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return float64(ru.Utime.Nano()+ru.Stime.Nano()) / 1e9
}
