// Package audit keeps the append-only record of every state-changing action.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"meshadmin.org/internal/ids"
	"meshadmin.org/internal/obs"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

var ErrInvalidInput = errors.New("audit: invalid input")

// Ledger records and reads back audit entries. Writes are best-effort by
// design: a mutation that already succeeded against the coordination server
// must not be undone or blocked because the audit store hiccuped.
type Ledger struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	lastTS time.Time
}

// NewLedger constructs a Ledger over the given store.
func NewLedger(store Store) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	return &Ledger{store: store, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Record appends one entry. It never returns an error: append failure is
// logged to the service logger and deliberately discarded here, the single
// place in the system where that happens.
func (l *Ledger) Record(ctx context.Context, entry Entry) {
	if err := l.append(ctx, entry); err != nil {
		obs.LogRequest(map[string]any{
			"ts":     l.now().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "audit_write_failed",
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}

// append assigns identity and a per-writer non-decreasing timestamp, then
// persists the entry.
func (l *Ledger) append(ctx context.Context, entry Entry) error {
	entry.Action = strings.TrimSpace(entry.Action)
	if entry.Action == "" {
		return fmt.Errorf("%w: action is required", ErrInvalidInput)
	}
	if strings.TrimSpace(entry.ResourceType) == "" {
		return fmt.Errorf("%w: resource_type is required", ErrInvalidInput)
	}
	entry.ID = ids.New()
	entry.OccurredAt = l.nextTimestamp()
	return l.store.Append(ctx, entry)
}

// nextTimestamp returns now, clamped so this writer's timestamps never go
// backwards under clock adjustment.
func (l *Ledger) nextTimestamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now()
	if ts.Before(l.lastTS) {
		ts = l.lastTS
	}
	l.lastTS = ts
	return ts
}

// Query returns one page of entries matching the filter, newest first.
func (l *Ledger) Query(ctx context.Context, filter Filter, limit, offset int) (QueryResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		return QueryResult{}, fmt.Errorf("%w: offset must be >= 0", ErrInvalidInput)
	}
	entries, total, err := l.store.Query(ctx, filter, limit, offset)
	if err != nil {
		return QueryResult{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return QueryResult{
		Entries: entries,
		Total:   total,
		HasMore: offset+len(entries) < total,
	}, nil
}

// Recent is the dashboard feed: the newest entries with no filter.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	result, err := l.Query(ctx, Filter{}, limit, 0)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}
