package helpers

import "runtime"

// MemoryStats describes host and process memory for health reporting.
type MemoryStats struct {
	TotalMB     int    `json:"total_mb"`
	AvailableMB int    `json:"available_mb"`
	HeapAllocMB uint64 `json:"heap_alloc_mb"`
	Goroutines  int    `json:"goroutines"`
}

// UsedPercent is the share of host memory in use, 0 when unknown.
func (m MemoryStats) UsedPercent() float64 {
	if m.TotalMB <= 0 || m.AvailableMB <= 0 {
		return 0
	}
	return float64(m.TotalMB-m.AvailableMB) / float64(m.TotalMB) * 100
}

// ReadMemoryStats combines the OS view with the Go runtime view.
func ReadMemoryStats() MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	total, available := systemMemoryMB()
	return MemoryStats{
		TotalMB:     total,
		AvailableMB: available,
		HeapAllocMB: ms.HeapAlloc / 1024 / 1024,
		Goroutines:  runtime.NumGoroutine(),
	}
}
