// Package store keeps the household's history: one row per simulated day,
// its hourly cost log, and the waste score per room.
package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"

	"github.com/adubusi/AI-Family/internal/household"
	"github.com/adubusi/AI-Family/internal/logging"
)

// ErrDayNotFound is returned when no stored day matches a reference.
var ErrDayNotFound = errors.New("day not found")

// HistoryStore persists day summaries and hourly records.
type HistoryStore interface {
	// SaveHour records one hourly log entry. The day row is created on
	// first use so hours can arrive before the summary.
	SaveHour(ctx context.Context, r household.HourRecord) error

	// SaveDay stores a finished day, replacing its hours and waste.
	SaveDay(ctx context.Context, s household.DaySummary) error

	// Days lists stored days, newest first. Hours are not loaded.
	// A limit of zero or less returns every day.
	Days(ctx context.Context, limit int) ([]household.DaySummary, error)

	// Day loads one day with its hours. ref is a day id, or a day number
	// which selects the most recent day with that number.
	Day(ctx context.Context, ref string) (*household.DaySummary, error)

	Close() error
}

// parseRef splits a day reference into a day number or an id.
func parseRef(ref string) (number int, isNumber bool) {
	n, err := strconv.Atoi(ref)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func sortHours(hs []household.HourRecord) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Hour < hs[j].Hour })
}

// Recorder feeds a monitor's records into a HistoryStore. Write failures are
// logged and dropped so the day keeps running.
type Recorder struct {
	store HistoryStore
	log   *slog.Logger
}

// NewRecorder returns a household.Listener that persists to s.
func NewRecorder(s HistoryStore, log *slog.Logger) *Recorder {
	return &Recorder{store: s, log: logging.OrDiscard(log)}
}

// OnHour implements household.Listener.
func (r *Recorder) OnHour(ctx context.Context, h household.HourRecord) {
	if err := r.store.SaveHour(ctx, h); err != nil {
		r.log.Warn("saving hour record", "day", h.Day, "hour", h.Hour, "error", err)
	}
}

// OnDay implements household.Listener.
func (r *Recorder) OnDay(ctx context.Context, s household.DaySummary) {
	if err := r.store.SaveDay(ctx, s); err != nil {
		r.log.Warn("saving day summary", "day", s.Day, "error", err)
	}
}
