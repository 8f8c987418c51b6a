// Package history archives fetched hourly usage in a local SQLite database
// and persists the cumulative metric state that survives restarts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nzgrid/mercury-usage-exporter/internal/derive"
	"github.com/nzgrid/mercury-usage-exporter/internal/mercury"
)

// DB wraps the database connection
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and initializes the schema
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hourly_usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour TEXT NOT NULL,
		day TEXT NOT NULL,
		consumption REAL NOT NULL,
		cost REAL NOT NULL,
		fetched_at TEXT NOT NULL,
		UNIQUE(hour)
	);
	CREATE INDEX IF NOT EXISTS idx_hourly_usage_day ON hourly_usage(day);

	CREATE TABLE IF NOT EXISTS cumulative_state (
		metric TEXT PRIMARY KEY,
		total REAL NOT NULL,
		last_processed_date TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// InsertHourly archives a fetched series, ignoring hours already stored.
// Entries without a parseable calendar date are skipped.
func (db *DB) InsertHourly(entries []mercury.HourlyEntry) error {
	query := `
	INSERT OR IGNORE INTO hourly_usage (hour, day, consumption, cost, fetched_at)
	VALUES (?, ?, ?, ?, ?)
	`

	fetchedAt := time.Now().UTC().Format(time.RFC3339)
	for _, e := range entries {
		if len(e.Date) < 10 {
			continue
		}
		day := e.Date[:10]
		if _, err := db.conn.Exec(query, e.Date, day, e.Consumption, e.Cost, fetchedAt); err != nil {
			return fmt.Errorf("inserting hourly usage: %w", err)
		}
	}

	return nil
}

// DaySummary aggregates one archived calendar day
type DaySummary struct {
	Day         string
	Consumption float64
	Cost        float64
	Hours       int
}

// ListDays returns archived days, newest first, up to limit (0 = all)
func (db *DB) ListDays(limit int) ([]DaySummary, error) {
	query := `
	SELECT day, SUM(consumption), SUM(cost), COUNT(*)
	FROM hourly_usage
	GROUP BY day
	ORDER BY day DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archived days: %w", err)
	}
	defer rows.Close()

	var results []DaySummary
	for rows.Next() {
		var d DaySummary
		if err := rows.Scan(&d.Day, &d.Consumption, &d.Cost, &d.Hours); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		results = append(results, d)
	}

	return results, rows.Err()
}

// LoadCumulative restores the persisted state for a metric. A missing row
// yields the zero state; malformed values are discarded by derive.Restore.
func (db *DB) LoadCumulative(metric string) (derive.CumulativeState, error) {
	row := db.conn.QueryRow(`SELECT total, last_processed_date FROM cumulative_state WHERE metric = ?`, metric)

	var total float64
	var lastDate string
	err := row.Scan(&total, &lastDate)
	if err == sql.ErrNoRows {
		return derive.CumulativeState{}, nil
	}
	if err != nil {
		return derive.CumulativeState{}, fmt.Errorf("querying cumulative state: %w", err)
	}

	return derive.Restore(total, lastDate), nil
}

// SaveCumulative persists the state for a metric
func (db *DB) SaveCumulative(metric string, st derive.CumulativeState) error {
	query := `
	INSERT INTO cumulative_state (metric, total, last_processed_date, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(metric) DO UPDATE SET
		total = excluded.total,
		last_processed_date = excluded.last_processed_date,
		updated_at = excluded.updated_at
	`

	updatedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.conn.Exec(query, metric, st.Value, st.LastProcessedDate, updatedAt); err != nil {
		return fmt.Errorf("saving cumulative state: %w", err)
	}

	return nil
}
