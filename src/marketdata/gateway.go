package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
	"mt5-gateway/src/terminal"

	"github.com/dgraph-io/ristretto"
)

// symbolTradeModeDisabled is SYMBOL_TRADE_MODE_DISABLED.
const symbolTradeModeDisabled = 0

// -----------------------------------------------------------------------------

// Options tunes the gateway. Zero HistoryTTL disables the bar cache.
type Options struct {
	UpdateInterval time.Duration
	HistoryTTL     time.Duration
	HistoryEntries int
	MaxBars        int
}

// Gateway fetches bars and quotes from the terminal and drives tick streams.
type Gateway struct {
	terminal interfaces.ITerminal
	opts     Options
	history  *ristretto.Cache
	logger   *logger.Logger
	now      func() time.Time
}

// -----------------------------------------------------------------------------

func NewGateway(term interfaces.ITerminal, opts Options, log *logger.Logger) (*Gateway, error) {
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 200 * time.Millisecond
	}
	if opts.MaxBars <= 0 {
		opts.MaxBars = 10000
	}

	g := &Gateway{
		terminal: term,
		opts:     opts,
		logger:   log,
		now:      time.Now,
	}

	if opts.HistoryTTL > 0 && opts.HistoryEntries > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: int64(opts.HistoryEntries) * 10,
			MaxCost:     int64(opts.HistoryEntries),
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create history cache: %w", err)
		}
		g.history = cache
	}

	return g, nil
}

// -----------------------------------------------------------------------------

// ParseTimeframe maps a timeframe name (M1..MN1, case-insensitive) onto
// the terminal value.
func ParseTimeframe(name string) (int, error) {
	tf, ok := terminal.Timeframes[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, helpers.NewValidationError("unsupported timeframe %q", name)
	}
	return tf, nil
}

// -----------------------------------------------------------------------------

// GetHistorical returns up to bars candles, oldest first, with prices as
// floats, volume as an integer and timestamps in milliseconds.
func (g *Gateway) GetHistorical(ctx context.Context, symbol, timeframe string, bars int) ([]models.MBar, error) {
	if symbol == "" {
		return nil, helpers.NewValidationError("symbol is required")
	}
	if bars < 1 || bars > g.opts.MaxBars {
		return nil, helpers.NewValidationError("bars must be between 1 and %d", g.opts.MaxBars)
	}
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%d|%d", symbol, tf, bars)
	if g.history != nil {
		if cached, ok := g.history.Get(key); ok {
			return append([]models.MBar(nil), cached.([]models.MBar)...), nil
		}
	}

	rates, err := g.terminal.CopyRates(ctx, symbol, tf, bars)
	if err != nil {
		return nil, err
	}

	out := make([]models.MBar, 0, len(rates))
	for _, r := range rates {
		out = append(out, models.MBar{
			Timestamp: r.Time * 1000,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    int64(r.TickVolume),
		})
	}

	if g.history != nil && len(out) > 0 {
		g.history.SetWithTTL(key, append([]models.MBar(nil), out...), 1, g.opts.HistoryTTL)
		g.history.Wait()
	}

	g.logger.Debug("retrieved %d bars for %s %s", len(out), symbol, timeframe)
	return out, nil
}

// -----------------------------------------------------------------------------

// GetTick returns the latest quote, or nil when the terminal has none.
func (g *Gateway) GetTick(ctx context.Context, symbol string) (*models.MTick, error) {
	raw, err := g.terminal.SymbolInfoTick(ctx, symbol)
	if err != nil || raw == nil {
		return nil, err
	}
	return normalizeTick(symbol, raw), nil
}

func normalizeTick(symbol string, raw *models.MRawTick) *models.MTick {
	tick := &models.MTick{
		Symbol:    symbol,
		Bid:       raw.Bid,
		Ask:       raw.Ask,
		Volume:    int64(raw.Volume),
		Timestamp: raw.Time,
	}
	if raw.Last != 0 {
		last := raw.Last
		tick.Last = &last
	}
	return tick
}

// -----------------------------------------------------------------------------

// Stream polls the terminal every update interval and calls emit for each
// tick whose timestamp differs from the last one emitted by this stream.
// It returns ctx.Err() once ctx is cancelled; poll failures are logged
// and the loop carries on.
func (g *Gateway) Stream(ctx context.Context, symbol string, emit func(models.MTick)) error {
	ticker := time.NewTicker(g.opts.UpdateInterval)
	defer ticker.Stop()

	var (
		lastTimestamp int64
		emitted       bool
		failures      int
	)

	for {
		tick, err := g.GetTick(ctx, symbol)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures == 1 || failures%50 == 0 {
				g.logger.Warning("stream %s: poll failed (%d in a row): %v", symbol, failures, err)
			}
		case tick != nil:
			failures = 0
			if !emitted || tick.Timestamp != lastTimestamp {
				lastTimestamp = tick.Timestamp
				emitted = true
				emit(*tick)
			}
		default:
			failures = 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// -----------------------------------------------------------------------------

// ListSymbols returns the terminal's symbol names, sorted.
func (g *Gateway) ListSymbols(ctx context.Context) ([]string, error) {
	symbols, err := g.terminal.SymbolsGet(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(symbols)
	return symbols, nil
}

// -----------------------------------------------------------------------------

func (g *Gateway) SymbolInfo(ctx context.Context, symbol string) (*models.MSymbolInfo, error) {
	info, err := g.terminal.SymbolInfo(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, helpers.NewNotFoundError("symbol %s not found", symbol)
	}
	return info, nil
}

// -----------------------------------------------------------------------------

// SymbolIsTradeable reports whether orders on symbol can be placed now:
// the terminal knows it, has it selected with trading enabled, and, for
// exchange-listed symbols, the exchange is in session.
func (g *Gateway) SymbolIsTradeable(ctx context.Context, symbol string) (bool, error) {
	info, err := g.terminal.SymbolInfo(ctx, symbol)
	if err != nil {
		return false, err
	}
	if info == nil || !info.Select || info.TradeMode == symbolTradeModeDisabled {
		return false, nil
	}

	if cal, ok := CalendarForSymbol(symbol); ok && !cal.IsOpen(g.now()) {
		return false, nil
	}
	return true, nil
}

// -----------------------------------------------------------------------------

// Close releases the history cache.
func (g *Gateway) Close() {
	if g.history != nil {
		g.history.Close()
	}
}
