package testsupport

import (
	"context"
	"sort"
	"sync"

	"linkhub/internal/events"
)

// FakeStore is an in-memory events.Store. It records the ranges it was
// queried with and can be told to fail.
type FakeStore struct {
	mu        sync.Mutex
	events    []events.Event
	queries   []events.DateRange
	nextID    uint
	QueryErr  error
	InsertErr error
	PingErr   error
}

var _ events.Store = (*FakeStore)(nil)

// NewFakeStore returns a store seeded with evts.
func NewFakeStore(evts ...events.Event) *FakeStore {
	s := &FakeStore{}
	for _, e := range evts {
		s.add(e)
	}
	return s
}

func (s *FakeStore) add(e events.Event) {
	s.nextID++
	if e.ID == 0 {
		e.ID = s.nextID
	}
	s.events = append(s.events, e)
}

func (s *FakeStore) Insert(_ context.Context, e *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.add(*e)
	return nil
}

func (s *FakeStore) Query(_ context.Context, r events.DateRange) ([]events.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, r)
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	out := make([]events.Event, 0, len(s.events))
	for _, e := range s.events {
		if r.Contains(e.Timestamp) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *FakeStore) Ping(context.Context) error {
	return s.PingErr
}

// Events returns a copy of everything inserted or seeded.
func (s *FakeStore) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// Queries returns the ranges passed to Query, oldest first.
func (s *FakeStore) Queries() []events.DateRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.DateRange(nil), s.queries...)
}

// SetQueryErr changes the query failure under the store lock.
func (s *FakeStore) SetQueryErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.QueryErr = err
}
