package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"mt5-gateway/src/config"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
)

const journalCleanupInterval = 6 * time.Hour

// -----------------------------------------------------------------------------

// startServers starts the realtime hub, the HTTP API and the gRPC control
// server. Listener failures are reported on app.fatal.
func startServers(a *app, conf *config.Config, appLogger *logger.Logger) {

	// 1. Realtime hub
	a.hub.Start()

	// 2. HTTP API
	go func() {
		if err := a.http.Start(); err != nil {
			a.fatal <- fmt.Errorf("http: %w", err)
		}
	}()

	// 3. gRPC Control Server
	if a.control == nil {
		appLogger.Info("gRPC control server disabled")
		return
	}
	addr := fmt.Sprintf("%s:%d", conf.GrpcHost, conf.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		a.fatal <- fmt.Errorf("grpc listen on %s: %w", addr, err)
		return
	}
	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", addr)
		if err := a.control.Serve(lis); err != nil {
			a.fatal <- fmt.Errorf("grpc: %w", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// runJournalCleanup drops journal rows past the retention window until ctx
// is cancelled.
func runJournalCleanup(ctx context.Context, journal interfaces.IJournal, appLogger *logger.Logger) {
	ticker := time.NewTicker(journalCleanupInterval)
	defer ticker.Stop()

	for {
		if err := journal.CleanupOldData(ctx); err != nil && ctx.Err() == nil {
			appLogger.Warning("journal cleanup failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
