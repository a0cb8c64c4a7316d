package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"linkhub/internal/analytics"
	"linkhub/internal/events"
	"linkhub/internal/settings"
)

const storeCheckInterval = 5 * time.Minute

// Scheduler owns the dashboard's background work: arming auto refresh from
// the persisted preference, warming the aggregator on boot, and watching
// the event store.
type Scheduler struct {
	settings   *settings.Store
	aggregator *analytics.Aggregator
	refresher  *analytics.Refresher
	store      events.Store
	defaults   settings.AutoRefresh
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	isRunning bool

	processingMutex sync.Mutex
	isProcessing    bool
}

// Options groups what the scheduler drives. Store may be nil when the
// event store is not configured.
type Options struct {
	Settings   *settings.Store
	Aggregator *analytics.Aggregator
	Refresher  *analytics.Refresher
	Store      events.Store
	Defaults   settings.AutoRefresh
}

func NewScheduler(opts Options, logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		settings:   opts.Settings,
		aggregator: opts.Aggregator,
		refresher:  opts.Refresher,
		store:      opts.Store,
		defaults:   opts.Defaults,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start arms auto refresh and launches the background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}
	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	pref, err := s.settings.AutoRefresh(s.defaults)
	if err != nil {
		s.logger.Warn("Failed to read auto refresh settings, using defaults", slog.Any("error", err))
	}
	if pref.Enabled {
		s.refresher.Enable(pref.Interval)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely("warm_dashboard", s.warmDashboard)
	}()

	if s.store != nil {
		s.startStoreCheckJob(storeCheckInterval)
	}

	s.logger.Info("Background jobs started", slog.Bool("auto_refresh", pref.Enabled))
	return nil
}

func (s *Scheduler) warmDashboard() error {
	if !s.aggregator.Configured() {
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	_, err := s.aggregator.Fetch(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Scheduler) startStoreCheckJob(interval time.Duration) {
	ticker := time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.executeJobSafely("store_check", s.checkStore)
			case <-s.ctx.Done():
				s.logger.Info("Store check job stopped")
				return
			}
		}
	}()
}

func (s *Scheduler) checkStore() error {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("Event store unreachable", slog.Any("error", err))
	}
	return nil
}

// SetAutoRefresh persists the preference and re-arms the refresher.
func (s *Scheduler) SetAutoRefresh(pref settings.AutoRefresh) error {
	if err := s.settings.SaveAutoRefresh(pref); err != nil {
		return err
	}
	if pref.Enabled {
		s.refresher.Enable(pref.Interval)
	} else {
		s.refresher.Disable()
	}
	return nil
}

// AutoRefresh reports the live refresher state.
func (s *Scheduler) AutoRefresh() settings.AutoRefresh {
	if !s.refresher.Enabled() {
		pref, err := s.settings.AutoRefresh(s.defaults)
		if err != nil {
			pref = s.defaults
		}
		return settings.AutoRefresh{Enabled: false, Interval: pref.Interval}
	}
	return settings.AutoRefresh{Enabled: true, Interval: s.refresher.Interval()}
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")

	s.cancel()
	s.refresher.Disable()
	s.refresher.Wait()
	s.wg.Wait()

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
