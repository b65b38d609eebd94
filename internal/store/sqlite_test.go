package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adubusi/AI-Family/internal/comfort"
	"github.com/adubusi/AI-Family/internal/household"
)

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", DBFile)
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q", s.Path())
	}
	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore(\"\") should fail")
	}
}

// stores runs fn against each HistoryStore implementation.
func stores(t *testing.T, fn func(t *testing.T, s HistoryStore)) {
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), DBFile))
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewInMemoryStore())
	})
}

func hour(dayID string, day, h int, cost float64) household.HourRecord {
	return household.HourRecord{
		DayID: dayID, Day: day, Hour: h, Cost: cost, AvgPMV: -0.4, Bill: cost * float64(h+1),
		WhatIf: comfort.WhatIf{Temperature: 18.5, PMV: -1.1, Saved: cost},
	}
}

func summary(dayID string, day int, started time.Time, hours ...household.HourRecord) household.DaySummary {
	return household.DaySummary{
		DayID: dayID, Day: day,
		Started: started, Ended: started.Add(time.Minute),
		Bill: 12.5, Budget: 20, BudgetLeft: 7.5, AvgDiscomfort: 0.25,
		Waste:     map[string]float64{"LivingRoom": 0, "MasterRoom": 3.5, "KidsRoom": 1},
		Hours:     hours,
		EndReason: household.EndDayComplete,
	}
}

func TestHistory_SaveAndLoadDay(t *testing.T) {
	stores(t, func(t *testing.T, s HistoryStore) {
		ctx := context.Background()
		started := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

		// Hours arrive before the summary.
		if err := s.SaveHour(ctx, hour("d1", 1, 0, 0.3)); err != nil {
			t.Fatalf("SaveHour() error = %v", err)
		}
		if err := s.SaveHour(ctx, hour("d1", 1, 1, 0.9)); err != nil {
			t.Fatalf("SaveHour() error = %v", err)
		}

		sum := summary("d1", 1, started, hour("d1", 1, 1, 0.9), hour("d1", 1, 0, 0.3), hour("d1", 1, 2, 1.5))
		if err := s.SaveDay(ctx, sum); err != nil {
			t.Fatalf("SaveDay() error = %v", err)
		}

		got, err := s.Day(ctx, "d1")
		if err != nil {
			t.Fatalf("Day() error = %v", err)
		}
		if got.Bill != 12.5 || got.BudgetLeft != 7.5 || got.EndReason != household.EndDayComplete {
			t.Errorf("Day() = %+v", got)
		}
		if !got.Started.Equal(started) {
			t.Errorf("Started = %v, want %v", got.Started, started)
		}
		if len(got.Hours) != 3 {
			t.Fatalf("got %d hours, want 3", len(got.Hours))
		}
		for i, h := range got.Hours {
			if h.Hour != i {
				t.Errorf("hours out of order: %+v", got.Hours)
			}
		}
		if got.Hours[2].Cost != 1.5 || got.Hours[2].WhatIf.Saved != 1.5 || got.Hours[2].WhatIf.Temperature != 18.5 {
			t.Errorf("hour 2 = %+v", got.Hours[2])
		}
		if got.Waste["MasterRoom"] != 3.5 || len(got.Waste) != 3 {
			t.Errorf("Waste = %v", got.Waste)
		}
	})
}

func TestHistory_DaysNewestFirst(t *testing.T) {
	stores(t, func(t *testing.T, s HistoryStore) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

		// Two runs both start at day 1.
		for i, id := range []string{"a", "b", "c"} {
			day := i + 1
			if id == "c" {
				day = 1
			}
			if err := s.SaveDay(ctx, summary(id, day, base.Add(time.Duration(i)*time.Hour))); err != nil {
				t.Fatal(err)
			}
		}

		days, err := s.Days(ctx, 0)
		if err != nil {
			t.Fatalf("Days() error = %v", err)
		}
		if len(days) != 3 || days[0].DayID != "c" || days[2].DayID != "a" {
			t.Fatalf("Days() order = %+v", days)
		}
		if days[0].Hours != nil {
			t.Error("Days() should not load hours")
		}
		if days[1].Waste["MasterRoom"] != 3.5 {
			t.Errorf("Days() waste = %v", days[1].Waste)
		}

		limited, _ := s.Days(ctx, 2)
		if len(limited) != 2 {
			t.Errorf("Days(2) returned %d", len(limited))
		}

		// A day number picks the most recent run.
		d, err := s.Day(ctx, "1")
		if err != nil || d.DayID != "c" {
			t.Errorf("Day(\"1\") = %+v, %v; want c", d, err)
		}
	})
}

func TestHistory_Errors(t *testing.T) {
	stores(t, func(t *testing.T, s HistoryStore) {
		ctx := context.Background()
		if _, err := s.Day(ctx, "missing"); !errors.Is(err, ErrDayNotFound) {
			t.Errorf("Day(missing) = %v, want ErrDayNotFound", err)
		}
		if _, err := s.Day(ctx, "7"); !errors.Is(err, ErrDayNotFound) {
			t.Errorf("Day(7) = %v, want ErrDayNotFound", err)
		}
		if err := s.SaveHour(ctx, household.HourRecord{Hour: 1}); err == nil {
			t.Error("SaveHour without a day ID should fail")
		}
		if err := s.SaveDay(ctx, household.DaySummary{}); err == nil {
			t.Error("SaveDay without a day ID should fail")
		}
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DBFile)
	ctx := context.Background()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveDay(ctx, summary("keep", 4, time.Now(), hour("keep", 4, 5, 1))); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	d, err := s.Day(ctx, "keep")
	if err != nil || len(d.Hours) != 1 || d.Day != 4 {
		t.Errorf("Day(keep) after reopen = %+v, %v", d, err)
	}
}

// failingStore refuses hours and keeps days.
type failingStore struct{ *InMemoryStore }

func (*failingStore) SaveHour(context.Context, household.HourRecord) error {
	return errors.New("disk full")
}

func TestRecorder_ImplementsListener(t *testing.T) {
	mem := NewInMemoryStore()
	var l household.Listener = NewRecorder(mem, nil)
	ctx := context.Background()

	l.OnHour(ctx, hour("r", 1, 3, 0.6))
	l.OnDay(ctx, summary("r", 1, time.Now(), hour("r", 1, 3, 0.6)))
	d, err := mem.Day(ctx, "r")
	if err != nil || len(d.Hours) != 1 {
		t.Errorf("recorded day = %+v, %v", d, err)
	}

	// Failures are swallowed and later writes still land.
	fs := &failingStore{NewInMemoryStore()}
	rec := NewRecorder(fs, nil)
	rec.OnHour(ctx, hour("f", 1, 4, 0.6))
	rec.OnDay(ctx, summary("f", 1, time.Now()))
	if d, err := fs.Day(ctx, "f"); err != nil || d.Day != 1 {
		t.Errorf("day after a failed hour = %+v, %v", d, err)
	}
}
