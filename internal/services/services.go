// Package services assembles the long-lived components shared by the HTTP
// handlers, the background jobs and the CLI.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"linkhub/internal/analytics"
	"linkhub/internal/auth"
	"linkhub/internal/clientstate"
	"linkhub/internal/config"
	"linkhub/internal/events"
	"linkhub/internal/jobs"
	"linkhub/internal/links"
	"linkhub/internal/pkg/async"
	"linkhub/internal/settings"
	"linkhub/internal/store"
	"linkhub/internal/tracking"
)

const dashboardWorkers = 4

type Services struct {
	Config     *config.Config
	Logger     *slog.Logger
	Links      *links.Catalogue
	Store      events.Store
	Recorder   *tracking.Recorder
	Aggregator *analytics.Aggregator
	Refresher  *analytics.Refresher
	Settings   *settings.Store
	Scheduler  *jobs.Scheduler
	Auth       *auth.Authenticator
	Clients    *clientstate.Provider
	Pool       *async.Pool
}

// New wires every component from cfg. db is the local sqlite database; it
// holds settings and, for the "local" store, the events themselves. An
// unconfigured event store is not an error.
func New(cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Services, error) {
	catalogue, err := links.Load(cfg.LinksFile)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg, db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}
	if st != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout())
		if err := store.Migrate(ctx, st); err != nil {
			logger.Warn("Failed to prepare event store table", slog.Any("error", err))
		}
		cancel()
		logger.Info("Event store ready", slog.String("backend", store.Describe(st)))
	}

	defaults := settings.AutoRefresh{
		Enabled:  cfg.AutoRefreshEnabled,
		Interval: cfg.AutoRefreshInterval(),
	}
	settingsStore := settings.NewStore(db, logger)
	if err := settingsStore.SetupDefaults(defaults); err != nil {
		return nil, err
	}

	recorder := tracking.NewRecorder(st, logger,
		tracking.WithExclusion(tracking.Exclusion{
			QueryParam:  cfg.ExcludeQueryParam,
			CookieName:  cfg.ExcludeCookieName,
			CookieValue: cfg.ExcludeCookieValue,
		}),
		tracking.WithTimeout(cfg.StoreTimeout()),
	)
	aggregator := analytics.NewAggregator(st, logger, analytics.WithLocation(loc))
	refresher := analytics.NewRefresher(aggregator, logger)

	scheduler := jobs.NewScheduler(jobs.Options{
		Settings:   settingsStore,
		Aggregator: aggregator,
		Refresher:  refresher,
		Store:      st,
		Defaults:   defaults,
	}, logger)

	var clients *clientstate.Provider
	if cfg.RedisAddr != "" {
		rdb := clientstate.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		clients = clientstate.NewProvider(rdb, cfg.AppName+"_", cfg.ClientStateTTL(), cfg.IsProduction()).WithLogger(logger)
	} else {
		clients = clientstate.NewProvider(nil, cfg.AppName+"_", cfg.ClientStateTTL(), cfg.IsProduction()).WithLogger(logger)
	}

	authenticator := auth.New(cfg.AdminPassword, cfg.AdminPasswordHash, logger)
	if !authenticator.Configured() {
		logger.Warn("No admin password configured; the dashboard is unreachable")
	}

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Links:      catalogue,
		Store:      st,
		Recorder:   recorder,
		Aggregator: aggregator,
		Refresher:  refresher,
		Settings:   settingsStore,
		Scheduler:  scheduler,
		Auth:       authenticator,
		Clients:    clients,
		Pool:       async.NewPool(dashboardWorkers),
	}, nil
}

// Visit describes the request's client. The page is the referring hub page
// when the browser sent one.
func (s *Services) Visit(c *fiber.Ctx) *tracking.Visit {
	query, _ := url.ParseQuery(string(c.Request().URI().QueryString()))

	v := &tracking.Visit{
		URL:       c.Get(fiber.HeaderReferer),
		Path:      "/",
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Language:  PreferredLanguage(c.Get(fiber.HeaderAcceptLanguage)),
		Query:     query,
		Cookie:    func(name string) string { return c.Cookies(name) },
		State:     s.Clients.For(c),
	}
	if v.URL == "" {
		v.URL = c.BaseURL() + "/"
	} else if u, err := url.Parse(v.URL); err == nil {
		if u.Path != "" {
			v.Path = u.Path
		}
		MergePageQuery(v.Query, u)
	}
	return v
}

// MergePageQuery adds the query parameters of the visited page to query.
// Parameters the request itself carries win.
func MergePageQuery(query url.Values, page *url.URL) {
	for key, values := range page.Query() {
		if _, ok := query[key]; !ok {
			query[key] = values
		}
	}
}

// PreferredLanguage returns the highest weighted tag of an Accept-Language
// header.
func PreferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

// Close waits for pending writes and releases the event store.
func (s *Services) Close() error {
	s.Recorder.Wait()
	return store.Close(s.Store)
}
