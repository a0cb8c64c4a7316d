package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"linkhub/internal/events"
	"linkhub/internal/timeframe"
)

// State is a snapshot of the aggregator for the dashboard.
type State struct {
	Dataset     Dataset          `json:"data"`
	Range       events.DateRange `json:"date_range"`
	Preset      timeframe.Preset `json:"preset,omitempty"`
	LastUpdated *time.Time       `json:"last_updated"`
	Error       string           `json:"error,omitempty"`
	Loading     bool             `json:"loading"`
	Configured  bool             `json:"configured"`
}

// Aggregator fetches date-filtered slices of the event log and keeps the
// latest successful result. Concurrent fetches are not sequenced; the last
// one to finish wins.
type Aggregator struct {
	store  events.Store
	logger *slog.Logger
	loc    *time.Location
	clock  timeframe.TimeProvider

	mu          sync.RWMutex
	dateRange   events.DateRange
	preset      timeframe.Preset
	dataset     Dataset
	lastUpdated *time.Time
	lastErr     string
	inFlight    int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the dashboard timezone used for presets and hourly
// buckets.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithTimeProvider replaces the system clock.
func WithTimeProvider(p timeframe.TimeProvider) Option {
	return func(a *Aggregator) {
		if p != nil {
			a.clock = p
		}
	}
}

// NewAggregator builds an aggregator over store. A nil store is allowed and
// makes every fetch fail with events.ErrStoreNotConfigured.
func NewAggregator(store events.Store, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:   store,
		logger:  logger,
		loc:     time.Local,
		clock:   &timeframe.DefaultTimeProvider{},
		preset:  timeframe.PresetAll,
		dataset: NewDataset(nil, time.Now()),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location is the dashboard timezone.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Now reads the aggregator clock in the dashboard timezone.
func (a *Aggregator) Now() time.Time {
	return a.clock.Now(a.loc)
}

// Configured reports whether a store is attached.
func (a *Aggregator) Configured() bool {
	return a.store != nil
}

// Fetch queries the store with the active range and replaces the dataset
// on success. On failure the previous dataset stays in place and the error
// is recorded for the dashboard.
func (a *Aggregator) Fetch(ctx context.Context) (Dataset, error) {
	a.mu.Lock()
	r := a.dateRange
	a.inFlight++
	a.mu.Unlock()

	ds, err := a.fetch(ctx, r)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight--
	if err != nil {
		a.lastErr = err.Error()
		return a.dataset, err
	}
	now := a.Now()
	a.dataset = ds
	a.lastUpdated = &now
	a.lastErr = ""
	return ds, nil
}

func (a *Aggregator) fetch(ctx context.Context, r events.DateRange) (Dataset, error) {
	if a.store == nil {
		a.logger.Warn("Analytics fetch skipped: event store not configured")
		return Dataset{}, events.ErrStoreNotConfigured
	}

	rows, err := a.store.Query(ctx, r.Normalized())
	if err != nil {
		a.logger.Error("Analytics fetch failed", slog.Any("error", err))
		return Dataset{}, fmt.Errorf("failed to fetch analytics: %w", err)
	}

	ds := NewDataset(rows, a.Now())
	a.logger.Debug("Analytics fetched",
		slog.Int("rows", len(rows)),
		slog.Int("page_views", len(ds.PageViews)),
		slog.Int("link_clicks", len(ds.LinkClicks)),
		slog.Int("modal_events", len(ds.ModalEvents)))
	return ds, nil
}

// SetDateFilter replaces the range with explicit bounds and fetches.
func (a *Aggregator) SetDateFilter(ctx context.Context, start, end *time.Time) (Dataset, error) {
	if start != nil && end != nil && start.After(timeframe.EndOfDay(*end)) {
		return Dataset{}, errors.New("start date must not be after end date")
	}
	a.mu.Lock()
	a.dateRange = events.DateRange{Start: start, End: end}
	a.preset = ""
	a.mu.Unlock()
	return a.Fetch(ctx)
}

// SetPresetFilter resolves a preset against the current day and fetches.
func (a *Aggregator) SetPresetFilter(ctx context.Context, preset timeframe.Preset) (Dataset, error) {
	start, end, err := timeframe.Resolve(preset, a.Now())
	if err != nil {
		return Dataset{}, err
	}
	a.mu.Lock()
	a.dateRange = events.DateRange{Start: start, End: end}
	a.preset = preset
	a.mu.Unlock()
	return a.Fetch(ctx)
}

// DateRange returns the active range.
func (a *Aggregator) DateRange() events.DateRange {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dateRange
}

// State returns a snapshot of the current dataset and fetch status.
func (a *Aggregator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := State{
		Dataset:    a.dataset,
		Range:      a.dateRange,
		Preset:     a.preset,
		Error:      a.lastErr,
		Loading:    a.inFlight > 0,
		Configured: a.store != nil,
	}
	if a.lastUpdated != nil {
		t := *a.lastUpdated
		s.LastUpdated = &t
	}
	return s
}
