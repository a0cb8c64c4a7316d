// Package tracking records visitor interactions as analytics events. Every
// write is fire-and-forget: failures are logged and never reach the caller.
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"linkhub/internal/clientstate"
	"linkhub/internal/events"
)

// Outcome says what TrackEvent did with an event.
type Outcome int

const (
	// Queued means an insert was started.
	Queued Outcome = iota
	// Excluded means the visitor opted out of tracking.
	Excluded
	// LoggedOnly means no store is configured and the event was only logged.
	LoggedOnly
	// Rejected means the event name is not a known kind.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case Excluded:
		return "excluded"
	case LoggedOnly:
		return "logged"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Exclusion describes the signals that mark a visitor's own access.
type Exclusion struct {
	QueryParam  string
	CookieName  string
	CookieValue string
}

// DefaultExclusion matches ?exclude=true and a linkhub_exclude=true cookie.
var DefaultExclusion = Exclusion{
	QueryParam:  "exclude",
	CookieName:  "linkhub_exclude",
	CookieValue: "true",
}

// Visit is the client context of one interaction.
type Visit struct {
	URL              string
	Path             string
	Title            string
	Referrer         string
	UserAgent        string
	ScreenResolution string
	ViewportSize     string
	Language         string

	Query  url.Values
	Cookie func(name string) string
	State  clientstate.Store
}

type Recorder struct {
	store     events.Store
	logger    *slog.Logger
	exclusion Exclusion
	timeout   time.Duration
	clock     func() time.Time

	pending sync.WaitGroup
}

type Option func(*Recorder)

func WithExclusion(e Exclusion) Option {
	return func(r *Recorder) { r.exclusion = e }
}

// WithTimeout bounds each insert.
func WithTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.clock = now
		}
	}
}

// NewRecorder returns a recorder writing to store. A nil store turns every
// event into a log line.
func NewRecorder(store events.Store, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:     store,
		logger:    logger,
		exclusion: DefaultExclusion,
		timeout:   5 * time.Second,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Configured reports whether events reach a store.
func (r *Recorder) Configured() bool {
	return r.store != nil
}

// IsOwnAccess reports whether the visitor opted out. A query parameter
// opt-out is persisted so it sticks for later visits.
func (r *Recorder) IsOwnAccess(ctx context.Context, v *Visit) bool {
	if v.State != nil {
		flag, ok, err := v.State.Get(ctx, clientstate.ExcludeAnalytics)
		if err != nil {
			r.logger.Warn("Failed to read client state", slog.Any("error", err))
		} else if ok && flag == "true" {
			return true
		}
	}

	if r.exclusion.QueryParam != "" && v.Query.Get(r.exclusion.QueryParam) == "true" {
		if v.State != nil {
			if err := v.State.Set(ctx, clientstate.ExcludeAnalytics, "true"); err != nil {
				r.logger.Warn("Failed to persist analytics exclusion", slog.Any("error", err))
			}
		}
		return true
	}

	if r.exclusion.CookieName != "" && v.Cookie != nil {
		if v.Cookie(r.exclusion.CookieName) == r.exclusion.CookieValue {
			return true
		}
	}
	return false
}

// TrackEvent records one event without waiting for the write.
func (r *Recorder) TrackEvent(ctx context.Context, v *Visit, name events.EventName, data events.Data) Outcome {
	if _, err := events.ParseEventName(string(name)); err != nil {
		r.logger.Warn("Track rejected", slog.String("event_name", string(name)))
		return Rejected
	}

	if r.IsOwnAccess(ctx, v) {
		r.logger.Debug("Track skipped (own access)", slog.String("event_name", string(name)))
		return Excluded
	}

	if r.store == nil {
		r.logger.Info("Track", slog.String("event_name", string(name)), slog.Any("event_data", data))
		return LoggedOnly
	}

	event := r.newEvent(v, name, data)
	r.pending.Add(1)
	go r.insert(event)
	return Queued
}

func (r *Recorder) newEvent(v *Visit, name events.EventName, data events.Data) *events.Event {
	if data == nil {
		data = events.Data{}
	}
	e := &events.Event{
		Name:             name,
		Data:             data,
		Timestamp:        r.clock().UTC(),
		URL:              v.URL,
		Path:             v.Path,
		UserAgent:        v.UserAgent,
		ScreenResolution: v.ScreenResolution,
		ViewportSize:     v.ViewportSize,
		Language:         v.Language,
	}
	if v.Referrer != "" {
		ref := v.Referrer
		e.Referrer = &ref
	}
	return e
}

// insert runs detached from the request so a finished response does not
// cancel the write.
func (r *Recorder) insert(e *events.Event) {
	defer r.pending.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Analytics insert panicked", slog.Any("panic", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.store.Insert(ctx, e); err != nil {
		r.logger.Error("Analytics tracking failed",
			slog.String("event_name", string(e.Name)),
			slog.Any("error", err))
		return
	}
	r.logger.Debug("Analytics event stored", slog.String("event_name", string(e.Name)))
}

// Wait blocks until every started insert has finished.
func (r *Recorder) Wait() {
	r.pending.Wait()
}
