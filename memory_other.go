//go:build !linux

package main

// physicalMemory is not available on this platform.
func physicalMemory() (uint64, bool) { return 0, false }
