package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

// PostgresJournal keeps its tables in a schema named after the executable.
type PostgresJournal struct {
	sqlJournal
	DSN    string
	Schema string
}

// -----------------------------------------------------------------------------

func NewPostgresJournal(cfg models.MStorageConfig, log *logger.Logger) (*PostgresJournal, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	d := &PostgresJournal{
		DSN:    cfg.DBConnectionString,
		Schema: name,
	}
	d.sqlJournal = sqlJournal{
		Logger:        log,
		RetentionDays: cfg.RetentionDays,
		numbered:      true,
		table:         func(table string) string { return fmt.Sprintf(`"%s"."%s"`, d.Schema, table) },
		createTypes: columnTypes{
			Integer: "BIGINT",
			Real:    "DOUBLE PRECISION",
			Text:    "TEXT",
			Serial:  "BIGSERIAL PRIMARY KEY",
		},
	}
	return d, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresJournal) Initialize() error {
	db, err := sql.Open("postgres", d.DSN)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresJournal initialized successfully (Schema: %s)", d.Schema)
	return nil
}
