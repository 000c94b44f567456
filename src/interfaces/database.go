package interfaces

import (
	"context"

	"mt5-gateway/src/models"
)

// -----------------------------------------------------------------------------
// IJournal defines the contract for the non-secret activity journal.
// Implementations never receive credentials.
// -----------------------------------------------------------------------------

type IJournal interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshot records a refreshed account state.
	SaveSnapshot(ctx context.Context, userID string, login int64, snapshot models.MAccountSnapshot) error

	// -----------------------------------------------------------------------------

	// SaveOrder records a filled order.
	SaveOrder(ctx context.Context, order models.MOrderRecord) error

	// -----------------------------------------------------------------------------

	// SaveRiskEvent records a threshold breach.
	SaveRiskEvent(ctx context.Context, event models.MRiskEvent) error

	// -----------------------------------------------------------------------------

	// RecentOrders returns the newest journaled orders of a user.
	RecentOrders(ctx context.Context, userID string, limit int) ([]models.MOrderRecord, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes records older than the retention policy.
	CleanupOldData(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
