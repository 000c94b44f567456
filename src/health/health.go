package health

import (
	"context"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

// memoryDegradedPercent marks the host as degraded above this usage.
const memoryDegradedPercent = 90.0

// Counter is anything that can report a population size.
type Counter interface {
	Count() int
}

// -----------------------------------------------------------------------------

// HealthMonitor aggregates the liveness of the gateway and its peers.
type HealthMonitor struct {
	service     string
	terminal    interfaces.ITerminal
	sessions    Counter
	connections Counter
	logger      *logger.Logger

	started time.Time
	now     func() time.Time
	memory  func() helpers.MemoryStats
}

func NewHealthMonitor(service string, term interfaces.ITerminal, sessions, connections Counter, log *logger.Logger) *HealthMonitor {
	return &HealthMonitor{
		service:     service,
		terminal:    term,
		sessions:    sessions,
		connections: connections,
		logger:      log,
		started:     time.Now(),
		now:         time.Now,
		memory:      helpers.ReadMemoryStats,
	}
}

// -----------------------------------------------------------------------------

// Check probes the terminal and reads process state. An unreachable
// terminal makes the gateway unhealthy; memory pressure only degrades it.
func (h *HealthMonitor) Check(ctx context.Context) models.MHealthReport {
	now := h.now()
	report := models.MHealthReport{
		Status:        models.HealthHealthy,
		Service:       h.service,
		Timestamp:     now.UTC(),
		UptimeSeconds: now.Sub(h.started).Seconds(),
		Checks:        map[string]models.MHealthCheck{},
	}

	start := time.Now()
	terminalCheck := models.MHealthCheck{Status: models.HealthHealthy}
	if err := h.terminal.Ping(ctx); err != nil {
		terminalCheck.Status = models.HealthUnhealthy
		terminalCheck.Error = helpers.PublicMessage(err)
		report.Status = models.HealthUnhealthy
		h.logger.Warning("health check: terminal unreachable: %v", err)
	}
	terminalCheck.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	report.Checks["terminal"] = terminalCheck

	mem := h.memory()
	report.Memory = models.MMemoryReport{
		TotalMB:     mem.TotalMB,
		AvailableMB: mem.AvailableMB,
		UsedPercent: mem.UsedPercent(),
		HeapAllocMB: mem.HeapAllocMB,
		Goroutines:  mem.Goroutines,
	}
	if report.Memory.UsedPercent > memoryDegradedPercent && report.Status == models.HealthHealthy {
		report.Status = models.HealthDegraded
	}

	if h.sessions != nil {
		report.ActiveSessions = h.sessions.Count()
	}
	if h.connections != nil {
		report.RealtimeConnections = h.connections.Count()
	}
	return report
}
