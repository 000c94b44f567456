package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/vault"
)

// -----------------------------------------------------------------------------

// Options configures the per-session monitors.
type Options struct {
	HealthCheckInterval time.Duration
	ErrorBackoff        time.Duration
	Risk                RiskEvaluator
}

// session is one user's live account binding. Fields other than the
// immutable identity are guarded by Registry.mu.
type session struct {
	userID string
	login  int64
	server string

	blob        string
	snapshot    models.MAccountSnapshot
	connectedAt time.Time
	lastUpdated time.Time
	monitor     *monitor
}

// -----------------------------------------------------------------------------

// Registry is the single source of truth for which users are connected.
// It owns one monitor goroutine per session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	// accountMu serializes account-scoped terminal use. The terminal holds
	// one logged-in account at a time; activeLogin is that account.
	accountMu   sync.Mutex
	activeLogin int64

	terminal interfaces.ITerminal
	vault    *vault.CredentialVault
	journal  interfaces.IJournal
	hooks    []interfaces.IRiskHook
	opts     Options
	logger   *logger.Logger
	now      func() time.Time

	rootCtx    context.Context
	rootCancel context.CancelFunc
}

// -----------------------------------------------------------------------------

func NewRegistry(term interfaces.ITerminal, v *vault.CredentialVault, journal interfaces.IJournal, opts Options, log *logger.Logger, hooks ...interfaces.IRiskHook) *Registry {
	if opts.HealthCheckInterval <= 0 {
		opts.HealthCheckInterval = 30 * time.Second
	}
	if opts.ErrorBackoff < opts.HealthCheckInterval {
		opts.ErrorBackoff = 2 * opts.HealthCheckInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		sessions:   make(map[string]*session),
		terminal:   term,
		vault:      v,
		journal:    journal,
		hooks:      hooks,
		opts:       opts,
		logger:     log,
		now:        time.Now,
		rootCtx:    ctx,
		rootCancel: cancel,
	}
}

// -----------------------------------------------------------------------------

// Connect logs the terminal into the account, seals the credentials and
// starts the account monitor. An existing session of the same user is
// replaced and its monitor stopped before Connect returns.
func (r *Registry) Connect(ctx context.Context, userID string, creds models.MCredentials) (models.MAccountSnapshot, error) {
	if userID == "" {
		return models.MAccountSnapshot{}, helpers.NewValidationError("user id is required")
	}
	if creds.Login <= 0 || creds.Server == "" {
		return models.MAccountSnapshot{}, helpers.NewValidationError("login and server are required")
	}

	r.logger.Info("user %s connecting account %d on %s", userID, creds.Login, creds.Server)

	info, err := r.login(ctx, creds)
	if err != nil {
		r.logger.Warning("connect failed for user %s: %v", userID, err)
		return models.MAccountSnapshot{}, err
	}

	blob, err := r.vault.Encrypt(creds)
	if err != nil {
		return models.MAccountSnapshot{}, fmt.Errorf("failed to seal credentials: %w", err)
	}

	now := r.now().UTC()
	s := &session{
		userID:      userID,
		login:       creds.Login,
		server:      creds.Server,
		blob:        blob,
		snapshot:    info.Snapshot(),
		connectedAt: now,
		lastUpdated: now,
	}

	r.mu.Lock()
	old := r.sessions[userID]
	s.monitor = r.startMonitor(s)
	r.sessions[userID] = s
	snapshot := s.snapshot
	r.mu.Unlock()

	if old != nil {
		old.monitor.stop()
		r.logger.Info("replaced previous session of user %s (account %d)", userID, old.login)
	}

	if err := r.journal.SaveSnapshot(ctx, userID, creds.Login, snapshot); err != nil {
		r.logger.Warning("failed to journal snapshot for user %s: %v", userID, err)
	}

	r.logger.Info("user %s connected account %d", userID, creds.Login)
	return snapshot, nil
}

// login performs the terminal login and reads the account back.
func (r *Registry) login(ctx context.Context, creds models.MCredentials) (*models.MAccountInfo, error) {
	r.accountMu.Lock()
	defer r.accountMu.Unlock()

	// A failed or timed out login may still have switched the terminal.
	r.activeLogin = 0
	ok, err := r.terminal.Login(ctx, creds.Login, creds.Password, creds.Server)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, helpers.NewAuthenticationError(fmt.Sprintf("MT5 login failed for account %d", creds.Login))
	}
	r.activeLogin = creds.Login

	info, err := r.terminal.AccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, helpers.NewPeerRejectedError("login succeeded but account info is unavailable")
	}
	return info, nil
}

// -----------------------------------------------------------------------------

// Disconnect stops the user's monitor, waits for it to exit, and then
// discards the session with its sealed credentials.
func (r *Registry) Disconnect(userID string) error {
	r.mu.Lock()
	s := r.sessions[userID]
	r.mu.Unlock()

	if s == nil {
		return helpers.ErrNotConnected
	}

	s.monitor.stop()

	r.mu.Lock()
	if r.sessions[userID] == s {
		delete(r.sessions, userID)
	}
	s.blob = ""
	r.mu.Unlock()

	r.logger.Info("user %s disconnected account %d", userID, s.login)
	return nil
}

// -----------------------------------------------------------------------------

// Status returns the session status, or nil when the user is not connected.
func (r *Registry) Status(userID string) *models.MSessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.sessions[userID]
	if s == nil {
		return nil
	}

	state, failures := s.monitor.stats()
	return &models.MSessionStatus{
		Connected:           true,
		Login:               s.login,
		Server:              s.server,
		AccountInfo:         s.snapshot,
		ConnectedAt:         s.connectedAt,
		LastUpdated:         s.lastUpdated,
		MonitorState:        state,
		ConsecutiveFailures: failures,
	}
}

// -----------------------------------------------------------------------------

// Reconnect logs the terminal back into the user's account with the
// sealed credentials. Without a session it is a no-op returning
// (false, ErrNotConnected).
func (r *Registry) Reconnect(ctx context.Context, userID string) (bool, error) {
	r.mu.Lock()
	s := r.sessions[userID]
	r.mu.Unlock()

	if s == nil {
		return false, helpers.ErrNotConnected
	}
	return r.reconnect(ctx, s)
}

func (r *Registry) reconnect(ctx context.Context, s *session) (bool, error) {
	r.accountMu.Lock()
	defer r.accountMu.Unlock()

	if err := r.relogin(ctx, s); err != nil {
		return false, err
	}
	r.logger.Info("reconnected account %d for user %s", s.login, s.userID)
	return true, nil
}

// relogin must be called with accountMu held.
func (r *Registry) relogin(ctx context.Context, s *session) error {
	r.mu.Lock()
	current := r.sessions[s.userID] == s
	blob := s.blob
	r.mu.Unlock()

	if !current || blob == "" {
		return helpers.ErrNotConnected
	}

	creds, err := r.vault.Decrypt(blob)
	if err != nil {
		r.logger.Error("credential blob of user %s could not be opened: %v", s.userID, err)
		return err
	}

	r.activeLogin = 0
	ok, err := r.terminal.Login(ctx, creds.Login, creds.Password, creds.Server)
	if err != nil {
		return err
	}
	if !ok {
		return helpers.NewAuthenticationError(fmt.Sprintf("MT5 login failed for account %d", creds.Login))
	}
	r.activeLogin = creds.Login

	// A disconnect that raced the login must not be undone.
	r.mu.Lock()
	current = r.sessions[s.userID] == s
	r.mu.Unlock()
	if !current {
		return helpers.ErrNotConnected
	}
	return nil
}

// -----------------------------------------------------------------------------

// WithAccount runs fn with the terminal logged into the user's account.
// Calls for different accounts are serialized.
func (r *Registry) WithAccount(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	s := r.sessions[userID]
	r.mu.Unlock()

	if s == nil {
		return helpers.ErrNotConnected
	}
	return r.withSession(ctx, s, fn)
}

func (r *Registry) withSession(ctx context.Context, s *session, fn func(ctx context.Context) error) error {
	r.accountMu.Lock()
	defer r.accountMu.Unlock()

	if r.activeLogin != s.login {
		if err := r.relogin(ctx, s); err != nil {
			return err
		}
	}
	return fn(ctx)
}

// -----------------------------------------------------------------------------

// AccountInfo reads the detailed account record live from the terminal.
func (r *Registry) AccountInfo(ctx context.Context, userID string) (*models.MAccountInfo, error) {
	var info *models.MAccountInfo
	err := r.WithAccount(ctx, userID, func(ctx context.Context) error {
		var err error
		info, err = r.terminal.AccountInfo(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, helpers.NewNotFoundError("account info unavailable")
	}
	return info, nil
}

// -----------------------------------------------------------------------------

// List summarizes every active session, oldest first.
func (r *Registry) List() []models.MSessionSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.MSessionSummary, 0, len(r.sessions))
	for userID, s := range r.sessions {
		out = append(out, models.MSessionSummary{
			UserID:      userID,
			Login:       s.login,
			Server:      s.server,
			ConnectedAt: s.connectedAt,
			Balance:     s.snapshot.Balance,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// -----------------------------------------------------------------------------

// Shutdown stops every monitor and drops all sessions.
func (r *Registry) Shutdown() {
	r.rootCancel()

	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.monitor.stop()
	}

	r.mu.Lock()
	for userID, s := range r.sessions {
		s.blob = ""
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	r.logger.Info("session registry stopped (%d sessions closed)", len(sessions))
}

// -----------------------------------------------------------------------------

var errStaleSession = errors.New("session replaced or disconnected")
