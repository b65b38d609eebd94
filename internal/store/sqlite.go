package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/household"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements HistoryStore on a SQLite database.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the history database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.dbPath }

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveHour implements HistoryStore.
func (s *SQLiteStore) SaveHour(ctx context.Context, r household.HourRecord) error {
	if r.DayID == "" {
		return fmt.Errorf("day ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO days (id, day, started) VALUES (?, ?, ?)`,
		r.DayID, r.Day, formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to insert day: %w", err)
	}
	if err := insertHour(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func insertHour(ctx context.Context, tx *sql.Tx, r household.HourRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO hours (day_id, hour, cost, avg_pmv, bill, whatif_temperature, whatif_pmv)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.DayID, r.Hour, r.Cost, r.AvgPMV, r.Bill, r.WhatIf.Temperature, r.WhatIf.PMV)
	if err != nil {
		return fmt.Errorf("failed to insert hour %d: %w", r.Hour, err)
	}
	return nil
}

// SaveDay implements HistoryStore.
func (s *SQLiteStore) SaveDay(ctx context.Context, d household.DaySummary) error {
	if d.DayID == "" {
		return fmt.Errorf("day ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO days (id, day, started, ended, bill, budget, avg_discomfort, end_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day = excluded.day,
			started = excluded.started,
			ended = excluded.ended,
			bill = excluded.bill,
			budget = excluded.budget,
			avg_discomfort = excluded.avg_discomfort,
			end_reason = excluded.end_reason`,
		d.DayID, d.Day, formatTime(d.Started), formatTime(d.Ended),
		d.Bill, d.Budget, d.AvgDiscomfort, d.EndReason)
	if err != nil {
		return fmt.Errorf("failed to upsert day: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hours WHERE day_id = ?`, d.DayID); err != nil {
		return fmt.Errorf("failed to clear hours: %w", err)
	}
	for _, h := range d.Hours {
		h.DayID = d.DayID
		if err := insertHour(ctx, tx, h); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM waste WHERE day_id = ?`, d.DayID); err != nil {
		return fmt.Errorf("failed to clear waste: %w", err)
	}
	for room, score := range d.Waste {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO waste (day_id, room, score) VALUES (?, ?, ?)`,
			d.DayID, room, score); err != nil {
			return fmt.Errorf("failed to insert waste for %s: %w", room, err)
		}
	}

	return tx.Commit()
}

const dayColumns = `id, day, started, ended, bill, budget, avg_discomfort, end_reason`

func scanDay(row interface{ Scan(...any) error }) (household.DaySummary, error) {
	var (
		d             household.DaySummary
		started       string
		ended, reason sql.NullString
	)
	if err := row.Scan(&d.DayID, &d.Day, &started, &ended, &d.Bill, &d.Budget, &d.AvgDiscomfort, &reason); err != nil {
		return d, err
	}
	d.Started = parseTime(started)
	if ended.Valid {
		d.Ended = parseTime(ended.String)
	}
	d.EndReason = reason.String
	d.BudgetLeft = d.Budget - d.Bill
	return d, nil
}

// Days implements HistoryStore.
func (s *SQLiteStore) Days(ctx context.Context, limit int) ([]household.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dayColumns+` FROM days ORDER BY started DESC, day DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	var days []household.DaySummary
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// The single connection is free again; load waste per day.
	for i := range days {
		w, err := s.loadWaste(ctx, days[i].DayID)
		if err != nil {
			return nil, err
		}
		days[i].Waste = w
	}
	return days, nil
}

// Day implements HistoryStore.
func (s *SQLiteStore) Day(ctx context.Context, ref string) (*household.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row *sql.Row
	if n, ok := parseRef(ref); ok {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+dayColumns+` FROM days WHERE day = ? ORDER BY started DESC LIMIT 1`, n)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+dayColumns+` FROM days WHERE id = ?`, ref)
	}
	d, err := scanDay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrDayNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load day: %w", err)
	}

	if d.Hours, err = s.loadHours(ctx, d); err != nil {
		return nil, err
	}
	if d.Waste, err = s.loadWaste(ctx, d.DayID); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) loadHours(ctx context.Context, d household.DaySummary) ([]household.HourRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hour, cost, avg_pmv, bill, whatif_temperature, whatif_pmv
		FROM hours WHERE day_id = ? ORDER BY hour`, d.DayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hours: %w", err)
	}
	defer rows.Close()

	var out []household.HourRecord
	for rows.Next() {
		r := household.HourRecord{DayID: d.DayID, Day: d.Day}
		var wt, wp sql.NullFloat64
		if err := rows.Scan(&r.Hour, &r.Cost, &r.AvgPMV, &r.Bill, &wt, &wp); err != nil {
			return nil, fmt.Errorf("failed to scan hour: %w", err)
		}
		r.WhatIf = comfort.WhatIf{Temperature: wt.Float64, PMV: wp.Float64, Saved: r.Cost}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadWaste(ctx context.Context, dayID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room, score FROM waste WHERE day_id = ?`, dayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query waste: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var room string
		var score float64
		if err := rows.Scan(&room, &score); err != nil {
			return nil, fmt.Errorf("failed to scan waste: %w", err)
		}
		out[room] = score
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
