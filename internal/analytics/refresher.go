package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkhub/internal/events"
)

// DefaultRefreshInterval is used when Enable is given a non-positive
// interval.
const DefaultRefreshInterval = 30 * time.Second

// Fetcher is what the refresher re-runs.
type Fetcher interface {
	Fetch(ctx context.Context) (Dataset, error)
}

// Refresher re-fetches on a fixed interval. At most one ticker is armed;
// enabling again replaces it. Stopping only prevents future fetches, a
// fetch already running completes and updates the aggregator.
type Refresher struct {
	fetcher Fetcher
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	interval time.Duration
	loops    sync.WaitGroup
}

func NewRefresher(fetcher Fetcher, logger *slog.Logger) *Refresher {
	return &Refresher{
		fetcher: fetcher,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// Enable arms the ticker, cancelling any previous one first.
func (r *Refresher) Enable(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.interval = interval

	r.loops.Add(1)
	go r.loop(ctx, interval)
	r.logger.Info("Auto refresh enabled", slog.Duration("interval", interval))
}

// Disable stops scheduling fetches.
func (r *Refresher) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.interval = 0
	r.logger.Info("Auto refresh disabled")
}

// Enabled reports whether a ticker is armed.
func (r *Refresher) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// Interval is the armed interval, zero when disabled.
func (r *Refresher) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

// Wait blocks until every ticker loop has exited, including a fetch it was
// running. Call after Disable.
func (r *Refresher) Wait() {
	r.loops.Wait()
}

func (r *Refresher) loop(ctx context.Context, interval time.Duration) {
	defer r.loops.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			r.refresh()
		}
	}
}

func (r *Refresher) refresh() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Auto refresh panicked", slog.Any("panic", rec))
		}
	}()

	// Detached from the loop context so Disable does not abort a running fetch.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if _, err := r.fetcher.Fetch(ctx); err != nil && !errors.Is(err, events.ErrStoreNotConfigured) {
		r.logger.Warn("Auto refresh fetch failed", slog.Any("error", err))
	}
}
