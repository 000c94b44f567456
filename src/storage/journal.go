package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

// -----------------------------------------------------------------------------

// sqlJournal holds the statements shared by the SQLite and Postgres
// journals. Queries are written with ? placeholders and rebound per dialect.
type sqlJournal struct {
	DB            *sql.DB
	Logger        *logger.Logger
	RetentionDays int

	table       func(name string) string
	numbered    bool
	createTypes columnTypes
}

type columnTypes struct {
	Integer string
	Real    string
	Text    string
	Serial  string
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) rebind(query string) string {
	if !j.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) createTables() error {
	t := j.createTypes
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s,
				user_id %s NOT NULL,
				login %s NOT NULL,
				balance %s,
				equity %s,
				margin %s,
				margin_free %s,
				profit %s,
				leverage %s,
				currency %s,
				recorded_at %s NOT NULL
			);
		`, j.table("account_snapshots"), t.Serial, t.Text, t.Integer, t.Real, t.Real, t.Real, t.Real, t.Real, t.Integer, t.Text, t.Integer),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s,
				ticket %s NOT NULL,
				user_id %s NOT NULL,
				symbol %s,
				side %s,
				volume %s,
				price %s,
				status %s,
				recorded_at %s NOT NULL
			);
		`, j.table("orders"), t.Serial, t.Integer, t.Text, t.Text, t.Text, t.Real, t.Real, t.Text, t.Integer),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id %s,
				user_id %s NOT NULL,
				kind %s NOT NULL,
				value %s,
				threshold %s,
				balance %s,
				equity %s,
				profit %s,
				margin %s,
				recorded_at %s NOT NULL
			);
		`, j.table("risk_events"), t.Serial, t.Text, t.Text, t.Real, t.Real, t.Real, t.Real, t.Real, t.Real, t.Integer),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS orders_user_idx ON %s (user_id, recorded_at)`, j.table("orders")),
	}

	for _, stmt := range statements {
		if _, err := j.DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create journal tables: %w", err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) SaveSnapshot(ctx context.Context, userID string, login int64, s models.MAccountSnapshot) error {
	query := j.rebind(fmt.Sprintf(`
		INSERT INTO %s (user_id, login, balance, equity, margin, margin_free, profit, leverage, currency, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.table("account_snapshots")))

	_, err := j.DB.ExecContext(ctx, query, userID, login, s.Balance, s.Equity, s.Margin, s.MarginFree, s.Profit, s.Leverage, s.Currency, time.Now().UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) SaveOrder(ctx context.Context, o models.MOrderRecord) error {
	query := j.rebind(fmt.Sprintf(`
		INSERT INTO %s (ticket, user_id, symbol, side, volume, price, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.table("orders")))

	_, err := j.DB.ExecContext(ctx, query, o.Ticket, o.UserID, o.Symbol, o.Side, o.Volume, o.Price, o.Status, o.Timestamp.UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) SaveRiskEvent(ctx context.Context, e models.MRiskEvent) error {
	query := j.rebind(fmt.Sprintf(`
		INSERT INTO %s (user_id, kind, value, threshold, balance, equity, profit, margin, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.table("risk_events")))

	_, err := j.DB.ExecContext(ctx, query, e.UserID, e.Kind, e.Value, e.Threshold, e.Balance, e.Equity, e.Profit, e.Margin, e.At.UTC().UnixMilli())
	return err
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) RecentOrders(ctx context.Context, userID string, limit int) ([]models.MOrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := j.rebind(fmt.Sprintf(`
		SELECT ticket, user_id, symbol, side, volume, price, status, recorded_at
		FROM %s
		WHERE user_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, j.table("orders")))

	rows, err := j.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MOrderRecord
	for rows.Next() {
		var (
			o          models.MOrderRecord
			recordedAt int64
		)
		if err := rows.Scan(&o.Ticket, &o.UserID, &o.Symbol, &o.Side, &o.Volume, &o.Price, &o.Status, &recordedAt); err != nil {
			return nil, err
		}
		o.Timestamp = time.UnixMilli(recordedAt).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) CleanupOldData(ctx context.Context) error {
	if j.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -j.RetentionDays).UnixMilli()

	j.Logger.Info("Cleaning up journal records older than %d days", j.RetentionDays)
	for _, name := range []string{"account_snapshots", "orders", "risk_events"} {
		query := j.rebind(fmt.Sprintf("DELETE FROM %s WHERE recorded_at < ?", j.table(name)))
		if _, err := j.DB.ExecContext(ctx, query, cutoff); err != nil {
			j.Logger.Error("Cleanup %s error: %v", name, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (j *sqlJournal) Close() error {
	if j.DB != nil {
		return j.DB.Close()
	}
	return nil
}
