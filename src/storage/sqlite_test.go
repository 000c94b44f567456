package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T) *SQLiteJournal {
	t.Helper()
	cfg := models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "journal.db"), RetentionDays: 30}
	j, err := NewJournal(cfg, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j.(*SQLiteJournal)
}

func TestSQLiteOrdersRoundTrip(t *testing.T) {
	j := newSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, j.SaveOrder(ctx, models.MOrderRecord{
			Ticket:    int64(100 + i),
			UserID:    "u1",
			Symbol:    "EURUSD",
			Side:      "buy",
			Volume:    0.1,
			Price:     1.1,
			Status:    "filled",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, j.SaveOrder(ctx, models.MOrderRecord{Ticket: 1, UserID: "u2", Timestamp: base}))

	orders, err := j.RecentOrders(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(102), orders[0].Ticket)
	assert.Equal(t, int64(101), orders[1].Ticket)
	assert.Equal(t, base.Add(2*time.Minute), orders[0].Timestamp)
}

func TestSQLiteSnapshotsAndRiskEvents(t *testing.T) {
	j := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, j.SaveSnapshot(ctx, "u1", 123, models.MAccountSnapshot{Balance: 1000, Equity: 950, Currency: "USD", Leverage: 100}))
	require.NoError(t, j.SaveRiskEvent(ctx, models.MRiskEvent{UserID: "u1", Kind: models.RiskKindDailyLoss, Value: 0.06, Threshold: 0.05, At: time.Now()}))

	var snapshots, events int
	require.NoError(t, j.DB.QueryRow("SELECT COUNT(*) FROM account_snapshots WHERE login = 123").Scan(&snapshots))
	require.NoError(t, j.DB.QueryRow("SELECT COUNT(*) FROM risk_events WHERE kind = 'daily_loss'").Scan(&events))
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, 1, events)
}

func TestSQLiteCleanupOldData(t *testing.T) {
	j := newSQLite(t)
	ctx := context.Background()

	require.NoError(t, j.SaveOrder(ctx, models.MOrderRecord{Ticket: 1, UserID: "u1", Timestamp: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, j.SaveOrder(ctx, models.MOrderRecord{Ticket: 2, UserID: "u1", Timestamp: time.Now()}))

	require.NoError(t, j.CleanupOldData(ctx))

	orders, err := j.RecentOrders(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2), orders[0].Ticket)
}

func TestRebind(t *testing.T) {
	j := &sqlJournal{numbered: true}
	assert.Equal(t, "SELECT $1, $2", j.rebind("SELECT ?, ?"))

	j.numbered = false
	assert.Equal(t, "SELECT ?, ?", j.rebind("SELECT ?, ?"))
}

func TestNewJournalNone(t *testing.T) {
	j, err := NewJournal(models.MStorageConfig{DBType: "none"}, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NoopJournal{}, j)

	_, err = NewJournal(models.MStorageConfig{DBType: "mongo"}, logger.NewNop())
	assert.Error(t, err)
}
