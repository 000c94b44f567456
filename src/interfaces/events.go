package interfaces

import (
	"context"

	"mt5-gateway/src/models"
)

// -----------------------------------------------------------------------------
// IPublisher pushes domain events to a message bus.
// -----------------------------------------------------------------------------

type IPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
	Close() error
}

// -----------------------------------------------------------------------------
// IRiskHook is notified of every risk threshold breach. Hooks decide what
// (if anything) to enforce; the monitor itself only reports.
// -----------------------------------------------------------------------------

type IRiskHook interface {
	OnRiskEvent(ctx context.Context, event models.MRiskEvent)
}
