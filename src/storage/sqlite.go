package storage

import (
	"database/sql"

	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteJournal struct {
	sqlJournal
	Path string
}

// -----------------------------------------------------------------------------

func NewSQLiteJournal(cfg models.MStorageConfig, log *logger.Logger) *SQLiteJournal {
	return &SQLiteJournal{
		Path: cfg.DBPath,
		sqlJournal: sqlJournal{
			Logger:        log,
			RetentionDays: cfg.RetentionDays,
			table:         func(name string) string { return name },
			createTypes: columnTypes{
				Integer: "INTEGER",
				Real:    "REAL",
				Text:    "TEXT",
				Serial:  "INTEGER PRIMARY KEY AUTOINCREMENT",
			},
		},
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteJournal) Initialize() error {
	db, err := sql.Open("sqlite", d.Path)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	// One writer at a time; the journal is low volume.
	db.SetMaxOpenConns(1)
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}
