package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitalscan/vitalscan/pkg/types"
)

// History is a thread-safe, newest-first list of measurement records.
//
// The list is append-only apart from Clear and the retention policy. With a
// zero retention and zero maxRecords it is unbounded.
type History struct {
	mu         sync.RWMutex
	records    []types.Record // newest first
	retention  time.Duration
	maxRecords int
	now        func() time.Time // injectable for deterministic tests
}

// New creates a History. A zero retention or maxRecords disables that limit.
func New(retention time.Duration, maxRecords int) *History {
	return &History{
		retention:  retention,
		maxRecords: maxRecords,
		now:        time.Now,
	}
}

// Add wraps est in a Record with a fresh ID, prepends it and returns it.
func (h *History) Add(est types.Estimate) types.Record {
	rec := types.Record{
		ID:         uuid.NewString(),
		RecordedAt: h.now(),
		Estimate:   est,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]types.Record{rec}, h.records...)
	if h.maxRecords > 0 && len(h.records) > h.maxRecords {
		h.records = h.records[:h.maxRecords]
	}
	return rec
}

// Get returns the record with the given ID.
func (h *History) Get(id string) (types.Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.records {
		if r.ID == id {
			return r, true
		}
	}
	return types.Record{}, false
}

// List returns a copy of every record, newest first.
func (h *History) List() []types.Record {
	return h.Latest(0)
}

// Latest returns up to n of the newest records. n <= 0 returns all.
func (h *History) Latest(n int) []types.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]types.Record, n)
	copy(out, h.records[:n])
	return out
}

// Since returns records recorded at or after cutoff, newest first.
func (h *History) Since(cutoff time.Time) []types.Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.Record, 0, len(h.records))
	for _, r := range h.records {
		// Newest first: the first older record ends the run.
		if r.RecordedAt.Before(cutoff) {
			break
		}
		out = append(out, r)
	}
	return out
}

// Len returns the number of records held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Clear removes every record and returns how many were dropped.
func (h *History) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.records)
	h.records = nil
	return n
}

// Evict removes records older than now minus the retention period.
// It returns the number of records removed. A zero retention is a no-op.
func (h *History) Evict(now time.Time) int {
	if h.retention <= 0 {
		return 0
	}
	cutoff := now.Add(-h.retention)

	h.mu.Lock()
	defer h.mu.Unlock()
	keep := len(h.records)
	for i, r := range h.records {
		if !r.RecordedAt.After(cutoff) {
			keep = i
			break
		}
	}
	removed := len(h.records) - keep
	h.records = h.records[:keep:keep]
	return removed
}

// Run starts the background retention loop. It ticks at half the retention
// period (minimum 1 second) and blocks until ctx is cancelled. With no
// retention configured it returns immediately.
func (h *History) Run(ctx context.Context) {
	if h.retention <= 0 {
		return
	}
	interval := h.retention / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := h.Evict(now); n > 0 {
				slog.Debug("store: evicted expired records", "count", n)
			}
		}
	}
}

// PeriodStart returns the cutoff for a history filter period relative to now:
// today (local midnight), week, month, year, or all (the zero time).
func PeriodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "all", "":
		return time.Time{}, nil
	case "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), nil
	case "week":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "year":
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q", period)
	}
}
