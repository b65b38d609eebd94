package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/adubusi/AI-Family/internal/household"
)

// InMemoryStore implements HistoryStore for testing and for runs without a
// database.
type InMemoryStore struct {
	mu    sync.RWMutex
	days  map[string]*household.DaySummary
	hours map[string]map[int]household.HourRecord
}

// NewInMemoryStore creates a new in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		days:  make(map[string]*household.DaySummary),
		hours: make(map[string]map[int]household.HourRecord),
	}
}

// SaveHour implements HistoryStore.
func (s *InMemoryStore) SaveHour(ctx context.Context, r household.HourRecord) error {
	if r.DayID == "" {
		return fmt.Errorf("day ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.days[r.DayID]; !ok {
		s.days[r.DayID] = &household.DaySummary{DayID: r.DayID, Day: r.Day, Started: time.Now()}
	}
	if s.hours[r.DayID] == nil {
		s.hours[r.DayID] = make(map[int]household.HourRecord)
	}
	s.hours[r.DayID][r.Hour] = r
	return nil
}

// SaveDay implements HistoryStore.
func (s *InMemoryStore) SaveDay(ctx context.Context, d household.DaySummary) error {
	if d.DayID == "" {
		return fmt.Errorf("day ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	hs := make(map[int]household.HourRecord, len(d.Hours))
	for _, h := range d.Hours {
		h.DayID = d.DayID
		hs[h.Hour] = h
	}
	s.hours[d.DayID] = hs

	d.Hours = nil
	w := make(map[string]float64, len(d.Waste))
	for k, v := range d.Waste {
		w[k] = v
	}
	d.Waste = w
	s.days[d.DayID] = &d
	return nil
}

// Days implements HistoryStore.
func (s *InMemoryStore) Days(ctx context.Context, limit int) ([]household.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]household.DaySummary, 0, len(s.days))
	for _, d := range s.days {
		out = append(out, s.copyDay(d, false))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Started.Equal(out[j].Started) {
			return out[i].Started.After(out[j].Started)
		}
		return out[i].Day > out[j].Day
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Day implements HistoryStore.
func (s *InMemoryStore) Day(ctx context.Context, ref string) (*household.DaySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *household.DaySummary
	if n, ok := parseRef(ref); ok {
		for _, d := range s.days {
			if d.Day == n && (found == nil || d.Started.After(found.Started)) {
				found = d
			}
		}
	} else {
		found = s.days[ref]
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrDayNotFound, ref)
	}
	d := s.copyDay(found, true)
	return &d, nil
}

func (s *InMemoryStore) copyDay(d *household.DaySummary, withHours bool) household.DaySummary {
	c := *d
	c.BudgetLeft = c.Budget - c.Bill
	c.Waste = make(map[string]float64, len(d.Waste))
	for k, v := range d.Waste {
		c.Waste[k] = v
	}
	c.Hours = nil
	if withHours {
		for _, h := range s.hours[d.DayID] {
			c.Hours = append(c.Hours, h)
		}
		sortHours(c.Hours)
	}
	return c
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
