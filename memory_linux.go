//go:build linux

package main

import (
	"math"
	"math/bits"

	"golang.org/x/sys/unix"
)

// physicalMemory returns the total RAM of the machine in bytes, and false if
// the kernel refuses to say.
func physicalMemory() (uint64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	hi, total := bits.Mul64(uint64(info.Totalram), unit)
	if hi != 0 {
		return math.MaxUint64, true
	}
	return total, total > 0
}
