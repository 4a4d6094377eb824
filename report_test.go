package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *BenchmarkResult {
	return &BenchmarkResult{
		Mode:           "matrix",
		Type:           "single",
		Size:           100,
		Threads:        4,
		Kernel:         "strided",
		Transpose:      "once",
		Seed:           42,
		ElapsedSeconds: 0.25,
		CPUSeconds:     0.9,
		Throughput:     0.003725290298461914,
		Iterations:     62500,
		Checksums:      []float64{1, 2, 3, 4},
		Verified:       true,
		Timestamp:      time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Hardware:       &HardwareInfo{OS: "linux", Arch: "arm64", CPUModel: "ARM Neoverse V1", NumCPU: 64, GOMAXPROCS: 64, CacheLineSize: 64, Features: []string{"fp", "neon"}},
	}
}

func TestFormatBanner(t *testing.T) {
	cfg := WorkUnitConfig{Mode: ModeFlops, Type: TypeDouble, Size: 10, Threads: 2}
	assert.Equal(t, "* running cpubench flops using double with size 10 and 2 threads...", FormatBanner(cfg))
}

func TestFormatResultLine(t *testing.T) {
	res := &BenchmarkResult{Mode: "flops", Type: "double", Size: 10, Threads: 2, ElapsedSeconds: 1.5, Throughput: 6.666667}
	assert.Equal(t, "mode=flops type=double size=10 threads=2 time=1.500000 throughput=6.666667", FormatResultLine(res))

	res.Kernel = "strided"
	assert.NotContains(t, FormatResultLine(res), "kernel=")

	res.Kernel = "full"
	assert.Contains(t, FormatResultLine(res), " kernel=full")
}

func TestWriteJSON(t *testing.T) {
	want := sampleResult()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, want))
	assert.Contains(t, buf.String(), `"elapsed_seconds": 0.25`)
	assert.Contains(t, buf.String(), `"cpu_model": "ARM Neoverse V1"`)

	var got BenchmarkResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(want, &got); diff != "" {
		t.Errorf("JSON round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSONOmitsMatrixFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &BenchmarkResult{Mode: "flops", Type: "double", Size: 10, Threads: 1}))
	for _, key := range []string{"kernel", "transpose", "seed", "verified", "hardware"} {
		assert.NotContains(t, buf.String(), `"`+key+`"`)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResult()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{
		"matrix", "single", "100", "4", "strided", "once",
		"0.25", "0.9", "0.003725290298461914", "62500", "true",
	}, records[1])
}

func TestSaveResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.csv")
	require.NoError(t, saveResult(path, sampleResult(), WriteCSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mode,type,size,threads")

	err = saveResult(filepath.Join(dir, "missing", "result.json"), sampleResult(), WriteJSON)
	assert.Error(t, err)
}
