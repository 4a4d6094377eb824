package main

import (
	"os"
	"runtime"
	"strings"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// HardwareInfo describes the machine a result was measured on.
type HardwareInfo struct {
	OS            string   `json:"os"`
	Arch          string   `json:"arch"`
	CPUModel      string   `json:"cpu_model"`
	NumCPU        int      `json:"num_cpu"`
	GOMAXPROCS    int      `json:"gomaxprocs"`
	CacheLineSize int      `json:"cache_line_size"`
	Features      []string `json:"features"`
}

// DetectHardware gathers information about the current system.
func DetectHardware() HardwareInfo {
	return HardwareInfo{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUModel:      detectCPUModel(),
		NumCPU:        runtime.NumCPU(),
		GOMAXPROCS:    runtime.GOMAXPROCS(0),
		CacheLineSize: int(unsafe.Sizeof(cpu.CacheLinePad{})),
		Features:      detectFeatures(),
	}
}

// detectFeatures lists the SIMD extensions relevant to arithmetic throughput.
func detectFeatures() []string {
	var features []string
	add := func(has bool, name string) {
		if has {
			features = append(features, name)
		}
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE2, "sse2")
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasSSE42, "sse4.2")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
		add(cpu.X86.HasAVX512VNNI, "avx512vnni")
	case "arm64":
		add(cpu.ARM64.HasFP, "fp")
		add(cpu.ARM64.HasASIMD, "neon")
		add(cpu.ARM64.HasFPHP, "fp16")
		add(cpu.ARM64.HasASIMDDP, "dotprod")
		add(cpu.ARM64.HasSVE, "sve")
	}
	return features
}

// detectCPUModel reads the model name from /proc/cpuinfo where it exists.
func detectCPUModel() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return "unknown " + runtime.GOARCH
	}
	return parseCPUModel(string(data))
}

// parseCPUModel extracts a model name from /proc/cpuinfo text. x86 kernels
// report "model name"; arm64 kernels only report implementer and part.
func parseCPUModel(cpuinfo string) string {
	var implementer, part string
	for _, line := range strings.Split(cpuinfo, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "model name":
			if value != "" {
				return value
			}
		case "CPU implementer":
			if implementer == "" {
				implementer = value
			}
		case "CPU part":
			if part == "" {
				part = value
			}
		}
	}

	if implementer == "0x41" {
		switch part {
		case "0xd0c":
			return "ARM Neoverse N1"
		case "0xd40":
			return "ARM Neoverse V1"
		case "0xd4f":
			return "ARM Neoverse V2"
		}
	}
	if implementer != "" {
		return "ARM64 CPU (implementer: " + implementer + ", part: " + part + ")"
	}
	return "unknown " + runtime.GOARCH
}
