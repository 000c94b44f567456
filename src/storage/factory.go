package storage

import (
	"fmt"

	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

// NewJournal builds and initializes the journal selected by db_type.
func NewJournal(cfg models.MStorageConfig, log *logger.Logger) (interfaces.IJournal, error) {
	var journal interfaces.IJournal
	switch cfg.DBType {
	case "", "none":
		return NoopJournal{}, nil
	case "sqlite":
		journal = NewSQLiteJournal(cfg, log)
	case "postgres":
		pg, err := NewPostgresJournal(cfg, log)
		if err != nil {
			return nil, err
		}
		journal = pg
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	if err := journal.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s journal: %w", cfg.DBType, err)
	}
	return journal, nil
}
