package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mt5-gateway/src/config"
	"mt5-gateway/src/logger"
)

const shutdownTimeout = 15 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)
	defer appLogger.Sync()

	// 4. Setup Components
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw, err := setupApp(ctx, conf, appLogger)
	if err != nil {
		appLogger.Critical("Failed to set up gateway: %v", err)
	}

	// 5. Start Servers
	startServers(gw, conf, appLogger)
	go runJournalCleanup(ctx, gw.journal, appLogger)

	appLogger.Info("%s ready on %s:%d", conf.Name, conf.Host, conf.Port)

	// 6. Wait for a signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received %s, shutting down...", sig)
	case err := <-gw.fatal:
		appLogger.Error("Server failed: %v", err)
	}

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	gw.shutdown(shutdownCtx, appLogger)
	appLogger.Info("Shutdown complete.")
}
