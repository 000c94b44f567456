package storage

import (
	"context"

	"mt5-gateway/src/models"
)

// NoopJournal is used when storage is disabled.
type NoopJournal struct{}

func (NoopJournal) Initialize() error { return nil }

func (NoopJournal) SaveSnapshot(context.Context, string, int64, models.MAccountSnapshot) error {
	return nil
}

func (NoopJournal) SaveOrder(context.Context, models.MOrderRecord) error { return nil }

func (NoopJournal) SaveRiskEvent(context.Context, models.MRiskEvent) error { return nil }

func (NoopJournal) RecentOrders(context.Context, string, int) ([]models.MOrderRecord, error) {
	return nil, nil
}

func (NoopJournal) CleanupOldData(context.Context) error { return nil }

func (NoopJournal) Close() error { return nil }
