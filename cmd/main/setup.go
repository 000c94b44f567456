package main

import (
	"context"
	"fmt"
	"time"

	"mt5-gateway/src/config"
	"mt5-gateway/src/events"
	"mt5-gateway/src/grpc_control"
	"mt5-gateway/src/health"
	"mt5-gateway/src/helpers"
	"mt5-gateway/src/identity"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/marketdata"
	"mt5-gateway/src/network"
	"mt5-gateway/src/orders"
	"mt5-gateway/src/server"
	"mt5-gateway/src/session"
	"mt5-gateway/src/storage"
	"mt5-gateway/src/terminal"
	"mt5-gateway/src/vault"
)

const (
	journalConnectRetries = 5
	journalRetryDelay     = time.Second
)

// -----------------------------------------------------------------------------

// app holds every long-lived component so shutdown can walk them in order.
type app struct {
	journal   interfaces.IJournal
	publisher interfaces.IPublisher
	sessions  *session.Registry
	market    *marketdata.Gateway
	orders    *orders.Gateway
	hub       *server.Hub
	http      *server.Server
	control   *grpc_control.Server

	fatal chan error
}

// -----------------------------------------------------------------------------

// setupApp builds the component graph from the loaded configuration.
func setupApp(ctx context.Context, conf *config.Config, appLogger *logger.Logger) (*app, error) {
	a := &app{fatal: make(chan error, 2)}

	// Credential vault
	credentialVault, err := vault.NewCredentialVault(conf.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("credential vault: %w", err)
	}

	// Peers
	terminalNet := network.NewNetworkManager("terminal", conf.TerminalTimeout(), appLogger.Named("TerminalNetwork"))
	identityNet := network.NewNetworkManager("identity", conf.IdentityTimeout(), appLogger.Named("IdentityNetwork"))
	term := terminal.NewHTTPTerminal(conf.Terminal.BaseURL, terminalNet, appLogger.Named("Terminal"))
	verifier := identity.NewSupabaseVerifier(conf.Identity.URL, conf.Identity.AnonKey, identityNet, appLogger.Named("Identity"))
	apiKeys := identity.NewAPIKeyVerifier(conf.API.APIKeys)

	// Journal; the database may still be starting next to us
	journalLogger := appLogger.Named("Journal")
	err = helpers.RetryWithBackoff(ctx, journalConnectRetries, journalRetryDelay, func(ctx context.Context) error {
		j, err := storage.NewJournal(conf.Storage, journalLogger)
		if err != nil {
			journalLogger.Warning("journal not ready: %v", err)
			return err
		}
		a.journal = j
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	// Event bus
	a.publisher, err = events.NewPublisher(conf.Events, appLogger.Named("Events"))
	if err != nil {
		return nil, fmt.Errorf("event publisher: %w", err)
	}

	// Sessions and their risk hooks
	sessionLogger := appLogger.Named("Sessions")
	hooks := []interfaces.IRiskHook{
		session.LoggingRiskHook{Logger: sessionLogger},
		session.JournalRiskHook{Journal: a.journal, Logger: sessionLogger},
		events.NewPublishingRiskHook(a.publisher, sessionLogger),
	}
	a.sessions = session.NewRegistry(term, credentialVault, a.journal, session.Options{
		HealthCheckInterval: conf.HealthCheckInterval(),
		ErrorBackoff:        conf.ErrorBackoff(),
		Risk: session.RiskEvaluator{
			MaxDailyLossPct:   conf.Risk.MaxDailyLossPct,
			MaxMarginUsagePct: conf.Risk.MaxMarginUsagePct,
		},
	}, sessionLogger, hooks...)

	// Market data and orders
	a.market, err = marketdata.NewGateway(term, marketdata.Options{
		UpdateInterval: conf.MarketDataInterval(),
		HistoryTTL:     conf.HistoryCacheTTL(),
		HistoryEntries: conf.MarketData.HistoryCacheSize,
		MaxBars:        conf.MarketData.MaxBars,
	}, appLogger.Named("MarketData"))
	if err != nil {
		return nil, fmt.Errorf("market data gateway: %w", err)
	}
	a.orders = orders.NewGateway(term, a.journal, a.publisher, appLogger.Named("Orders"))

	// Realtime fan-out
	a.hub = server.NewHub(a.market, verifier, server.HubOptions{
		AuthTimeout:    conf.AuthTimeout(),
		PingInterval:   conf.PingInterval(),
		MaxConnections: conf.Realtime.MaxConnections,
	}, appLogger.Named("Realtime"))

	monitor := health.NewHealthMonitor(conf.Name, term, a.sessions, a.hub, appLogger.Named("Health"))

	// Outer surfaces
	a.http, err = server.NewServer(conf.MConfig, server.Deps{
		Sessions: a.sessions,
		Market:   a.market,
		Orders:   a.orders,
		Journal:  a.journal,
		Identity: verifier,
		APIKeys:  apiKeys,
		Health:   monitor,
		Hub:      a.hub,
	}, appLogger.Named("HTTP"))
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	if conf.GrpcPort != 0 {
		controlLogger := appLogger.Named("ControlService")
		a.control = grpc_control.NewServer(grpc_control.NewControlService(a.sessions, a.orders, monitor, controlLogger), controlLogger)
	}

	return a, nil
}

// -----------------------------------------------------------------------------

// shutdown stops the surfaces first so no new work arrives, then the
// background loops, then the sinks.
func (a *app) shutdown(ctx context.Context, appLogger *logger.Logger) {
	if err := a.http.Stop(ctx); err != nil {
		appLogger.Warning("HTTP shutdown: %v", err)
	}
	if a.control != nil {
		a.control.Stop()
	}

	a.sessions.Shutdown()
	a.orders.Clear()
	a.market.Close()

	if err := a.publisher.Close(); err != nil {
		appLogger.Warning("event publisher close: %v", err)
	}
	if err := a.journal.Close(); err != nil {
		appLogger.Warning("journal close: %v", err)
	}
}
