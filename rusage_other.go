//go:build !linux && !darwin && !freebsd

package main

// processCPUSeconds is not available on this platform.
func processCPUSeconds() float64 { return 0 }
