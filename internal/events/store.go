package events

import (
	"context"
	"errors"
	"time"

	"linkhub/internal/timeframe"
)

// ErrStoreNotConfigured is returned when the event store URL or key is missing.
var ErrStoreNotConfigured = errors.New("event store not configured")

// Store is the append-only event log. Implementations never update or
// delete events.
type Store interface {
	// Insert appends one event.
	Insert(ctx context.Context, event *Event) error
	// Query returns events within the range, newest first.
	Query(ctx context.Context, r DateRange) ([]Event, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// DateRange bounds a query. A nil bound is open on that side.
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// Normalized moves End to the last instant of its calendar day so a
// single-day range covers the whole day.
func (r DateRange) Normalized() DateRange {
	out := DateRange{Start: r.Start}
	if r.End != nil {
		end := timeframe.EndOfDay(*r.End)
		out.End = &end
	}
	return out
}

// Contains reports whether t falls inside the normalized range.
func (r DateRange) Contains(t time.Time) bool {
	n := r.Normalized()
	if n.Start != nil && t.Before(*n.Start) {
		return false
	}
	if n.End != nil && t.After(*n.End) {
		return false
	}
	return true
}

// IsUnbounded reports whether neither bound is set.
func (r DateRange) IsUnbounded() bool {
	return r.Start == nil && r.End == nil
}
