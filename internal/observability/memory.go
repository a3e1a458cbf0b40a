package observability

import (
	"context"
	"log"
	"runtime"
	"time"
)

// MemoryStats is a snapshot of the process heap in megabytes.
type MemoryStats struct {
	HeapAllocMB  float64
	HeapSysMB    float64
	TotalAllocMB float64
	NumGC        uint32
	Goroutines   int
}

func ReadMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		HeapAllocMB:  toMB(m.HeapAlloc),
		HeapSysMB:    toMB(m.HeapSys),
		TotalAllocMB: toMB(m.TotalAlloc),
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
	}
}

// LogMemoryUsage logs a memory snapshot every interval until ctx is done.
func LogMemoryUsage(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := ReadMemoryStats()
			log.Printf("memory usage heap_alloc_mb=%.2f heap_sys_mb=%.2f total_alloc_mb=%.2f num_gc=%d goroutines=%d",
				s.HeapAllocMB, s.HeapSysMB, s.TotalAllocMB, s.NumGC, s.Goroutines)
		}
	}
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
