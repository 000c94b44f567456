package models

import "time"

// Health states
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// MHealthCheck is the result of probing one dependency.
type MHealthCheck struct {
	Status    string  `json:"status"`
	LatencyMs float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// MMemoryReport is the memory section of a health report.
type MMemoryReport struct {
	TotalMB     int     `json:"total_mb"`
	AvailableMB int     `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
	HeapAllocMB uint64  `json:"heap_alloc_mb"`
	Goroutines  int     `json:"goroutines"`
}

// MHealthReport is returned by GET /health and the control service.
type MHealthReport struct {
	Status              string                  `json:"status"`
	Service             string                  `json:"service"`
	Timestamp           time.Time               `json:"timestamp"`
	UptimeSeconds       float64                 `json:"uptime_seconds"`
	Checks              map[string]MHealthCheck `json:"checks"`
	Memory              MMemoryReport           `json:"memory"`
	ActiveSessions      int                     `json:"active_sessions"`
	RealtimeConnections int                     `json:"realtime_connections"`
}
