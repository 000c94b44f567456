package session

import (
	"context"
	"time"

	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	"go.uber.org/zap"
)

// RiskEvaluator checks an account snapshot against the configured limits.
type RiskEvaluator struct {
	MaxDailyLossPct   float64
	MaxMarginUsagePct float64
}

// -----------------------------------------------------------------------------

// Evaluate runs the daily-loss and margin-usage checks independently and
// returns one event per breach. It has no side effects.
func (e RiskEvaluator) Evaluate(userID string, s models.MAccountSnapshot, at time.Time) []models.MRiskEvent {
	var events []models.MRiskEvent

	base := models.MRiskEvent{
		UserID:  userID,
		Balance: s.Balance,
		Equity:  s.Equity,
		Profit:  s.Profit,
		Margin:  s.Margin,
		At:      at,
	}

	if e.MaxDailyLossPct > 0 && s.Profit < -(s.Balance*e.MaxDailyLossPct) {
		ev := base
		ev.Kind = models.RiskKindDailyLoss
		ev.Threshold = e.MaxDailyLossPct
		if s.Balance > 0 {
			ev.Value = -s.Profit / s.Balance
		}
		events = append(events, ev)
	}

	usage := 1.0
	if s.Equity > 0 {
		usage = s.Margin / s.Equity
	}
	if e.MaxMarginUsagePct > 0 && usage > e.MaxMarginUsagePct {
		ev := base
		ev.Kind = models.RiskKindMarginUsage
		ev.Threshold = e.MaxMarginUsagePct
		ev.Value = usage
		events = append(events, ev)
	}

	return events
}

// -----------------------------------------------------------------------------

// LoggingRiskHook emits every breach as a structured warning.
type LoggingRiskHook struct {
	Logger *logger.Logger
}

func (h LoggingRiskHook) OnRiskEvent(ctx context.Context, ev models.MRiskEvent) {
	h.Logger.Event("risk_limit_breached",
		zap.String("user_id", ev.UserID),
		zap.String("kind", ev.Kind),
		zap.Float64("value", ev.Value),
		zap.Float64("threshold", ev.Threshold),
		zap.Float64("balance", ev.Balance),
		zap.Float64("equity", ev.Equity),
	)
}

// -----------------------------------------------------------------------------

// JournalRiskHook stores every breach in the journal.
type JournalRiskHook struct {
	Journal interfaces.IJournal
	Logger  *logger.Logger
}

func (h JournalRiskHook) OnRiskEvent(ctx context.Context, ev models.MRiskEvent) {
	if err := h.Journal.SaveRiskEvent(ctx, ev); err != nil {
		h.Logger.Warning("failed to journal %s risk event for user %s: %v", ev.Kind, ev.UserID, err)
	}
}
