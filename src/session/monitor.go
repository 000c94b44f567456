package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"
)

// Monitor states
const (
	MonitorRunning      = "running"
	MonitorReconnecting = "reconnecting"
	MonitorTerminated   = "terminated"
)

// -----------------------------------------------------------------------------

// monitor is the handle of one session's background loop.
type monitor struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	state    string
	failures int
}

func (m *monitor) stop() {
	m.once.Do(m.cancel)
	<-m.done
}

func (m *monitor) stats() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.failures
}

func (m *monitor) set(state string, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.failures = failures
}

// -----------------------------------------------------------------------------

// startMonitor launches the loop for s. Called with r.mu held.
func (r *Registry) startMonitor(s *session) *monitor {
	ctx, cancel := context.WithCancel(r.rootCtx)
	m := &monitor{
		cancel: cancel,
		done:   make(chan struct{}),
		state:  MonitorRunning,
	}
	go r.runMonitor(ctx, s, m)
	return m
}

// runMonitor refreshes the account every health check interval. A failed
// refresh switches to RECONNECTING and retries the login. A failed login or
// a second consecutive failed refresh makes the loop wait the longer error
// backoff. The failure count resets only on a successful refresh. Only
// cancellation ends the loop.
func (r *Registry) runMonitor(ctx context.Context, s *session, m *monitor) {
	defer close(m.done)
	defer m.set(MonitorTerminated, 0)

	r.logger.Info("account monitor started for user %s", s.userID)
	defer r.logger.Info("account monitor stopped for user %s", s.userID)

	timer := time.NewTimer(r.opts.HealthCheckInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := r.opts.HealthCheckInterval
		if err := r.refresh(ctx, s); err != nil {
			if ctx.Err() != nil || errors.Is(err, errStaleSession) || errors.Is(err, helpers.ErrNotConnected) {
				return
			}

			_, failures := m.stats()
			failures++
			m.set(MonitorReconnecting, failures)
			r.logger.Warning("account refresh failed for user %s (%d consecutive): %v", s.userID, failures, err)

			if _, rerr := r.reconnect(ctx, s); rerr != nil {
				if ctx.Err() != nil || errors.Is(rerr, helpers.ErrNotConnected) {
					return
				}
				r.logger.Warning("reconnect failed for user %s, backing off %v: %v", s.userID, r.opts.ErrorBackoff, rerr)
				wait = r.opts.ErrorBackoff
			} else {
				m.set(MonitorRunning, failures)
			}
			if failures > 1 {
				wait = r.opts.ErrorBackoff
			}
		} else {
			m.set(MonitorRunning, 0)
		}

		timer.Reset(wait)
	}
}

// -----------------------------------------------------------------------------

// refresh pulls the account state, stores it on the session and runs
// the risk checks.
func (r *Registry) refresh(ctx context.Context, s *session) error {
	var info *models.MAccountInfo
	err := r.withSession(ctx, s, func(ctx context.Context) error {
		var err error
		info, err = r.terminal.AccountInfo(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if info == nil {
		return helpers.NewPeerUnavailableError("trading terminal", errors.New("no account info"))
	}

	snapshot := info.Snapshot()
	now := r.now().UTC()

	r.mu.Lock()
	if r.sessions[s.userID] != s {
		r.mu.Unlock()
		return errStaleSession
	}
	s.snapshot = snapshot
	s.lastUpdated = now
	r.mu.Unlock()

	if err := r.journal.SaveSnapshot(ctx, s.userID, s.login, snapshot); err != nil {
		r.logger.Warning("failed to journal snapshot for user %s: %v", s.userID, err)
	}

	for _, ev := range r.opts.Risk.Evaluate(s.userID, snapshot, now) {
		for _, hook := range r.hooks {
			hook.OnRiskEvent(ctx, ev)
		}
	}
	return nil
}
