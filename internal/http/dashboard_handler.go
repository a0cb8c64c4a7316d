package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkhub/internal/analytics"
	"linkhub/internal/events"
	"linkhub/internal/pkg/async"
	"linkhub/internal/settings"
	"linkhub/internal/timeframe"
)

const recentActivityLimit = 20

type AutoRefreshState struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
}

type DashboardResponse struct {
	Configured     bool                      `json:"configured"`
	Error          string                    `json:"error,omitempty"`
	Loading        bool                      `json:"loading"`
	LastUpdated    *time.Time                `json:"last_updated"`
	DateRange      events.DateRange          `json:"date_range"`
	Preset         timeframe.Preset          `json:"preset,omitempty"`
	Timezone       string                    `json:"timezone"`
	AutoRefresh    AutoRefreshState          `json:"auto_refresh"`
	Summary        analytics.Summary         `json:"summary"`
	PopularLinks   []analytics.LinkCount     `json:"popular_links"`
	HourlyStats    []analytics.HourStat      `json:"hourly_stats"`
	DailyStats     []analytics.DayStat       `json:"daily_stats"`
	ReferrerStats  []analytics.SourceCount   `json:"referrer_stats"`
	ModalStats     analytics.ModalStats      `json:"modal_stats"`
	DeviceStats    analytics.DeviceStats     `json:"device_stats"`
	BrowserStats   []analytics.NamedCount    `json:"browser_stats"`
	OSStats        []analytics.NamedCount    `json:"os_stats"`
	UserBehavior   analytics.BehaviorStats   `json:"user_behavior"`
	LanguageStats  []analytics.LanguageCount `json:"language_stats"`
	CategoryStats  []analytics.NamedCount    `json:"category_stats"`
	RecentActivity []analytics.Activity      `json:"recent_activity"`
}

func autoRefreshState(a settings.AutoRefresh) AutoRefreshState {
	return AutoRefreshState{Enabled: a.Enabled, IntervalSeconds: a.IntervalSeconds()}
}

// buildDashboard computes every derived view of the current dataset.
func (h *Handlers) buildDashboard(ctx context.Context, state analytics.State) (*DashboardResponse, error) {
	ds := state.Dataset
	loc := h.svc.Aggregator.Location()
	now := h.svc.Aggregator.Now()

	tasks := []async.Task{
		{Name: "popularLinks", Execute: func() (interface{}, error) { return ds.PopularLinks(), nil }},
		{Name: "hourlyStats", Execute: func() (interface{}, error) { return ds.HourlyStats(loc), nil }},
		{Name: "dailyStats", Execute: func() (interface{}, error) { return ds.DailyStats(now), nil }},
		{Name: "referrerStats", Execute: func() (interface{}, error) { return ds.ReferrerStats(), nil }},
		{Name: "modalStats", Execute: func() (interface{}, error) { return ds.ModalStats(), nil }},
		{Name: "deviceStats", Execute: func() (interface{}, error) { return ds.DeviceStats(), nil }},
		{Name: "browserStats", Execute: func() (interface{}, error) { return ds.BrowserStats(), nil }},
		{Name: "osStats", Execute: func() (interface{}, error) { return ds.OSStats(), nil }},
		{Name: "userBehavior", Execute: func() (interface{}, error) { return ds.UserBehaviorStats(), nil }},
		{Name: "languageStats", Execute: func() (interface{}, error) { return ds.LanguageStats(), nil }},
		{Name: "categoryStats", Execute: func() (interface{}, error) { return ds.CategoryStats(), nil }},
		{Name: "recentActivity", Execute: func() (interface{}, error) { return ds.RecentActivity(recentActivityLimit), nil }},
	}

	results := h.svc.Pool.Execute(ctx, tasks)
	if len(results) != len(tasks) {
		return nil, fmt.Errorf("dashboard computation interrupted: %w", ctx.Err())
	}
	for name, result := range results {
		if result.Err != nil {
			return nil, fmt.Errorf("error computing %s: %w", name, result.Err)
		}
	}

	return &DashboardResponse{
		Configured:     state.Configured,
		Error:          state.Error,
		Loading:        state.Loading,
		LastUpdated:    state.LastUpdated,
		DateRange:      state.Range,
		Preset:         state.Preset,
		Timezone:       loc.String(),
		AutoRefresh:    autoRefreshState(h.svc.Scheduler.AutoRefresh()),
		Summary:        ds.Summary,
		PopularLinks:   results["popularLinks"].Data.([]analytics.LinkCount),
		HourlyStats:    results["hourlyStats"].Data.([]analytics.HourStat),
		DailyStats:     results["dailyStats"].Data.([]analytics.DayStat),
		ReferrerStats:  results["referrerStats"].Data.([]analytics.SourceCount),
		ModalStats:     results["modalStats"].Data.(analytics.ModalStats),
		DeviceStats:    results["deviceStats"].Data.(analytics.DeviceStats),
		BrowserStats:   results["browserStats"].Data.([]analytics.NamedCount),
		OSStats:        results["osStats"].Data.([]analytics.NamedCount),
		UserBehavior:   results["userBehavior"].Data.(analytics.BehaviorStats),
		LanguageStats:  results["languageStats"].Data.([]analytics.LanguageCount),
		CategoryStats:  results["categoryStats"].Data.([]analytics.NamedCount),
		RecentActivity: results["recentActivity"].Data.([]analytics.Activity),
	}, nil
}

func (h *Handlers) renderDashboard(ctx *cartridge.Context) error {
	resp, err := h.buildDashboard(ctx.UserContext(), h.svc.Aggregator.State())
	if err != nil {
		ctx.Logger.Error("Failed to build dashboard", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build dashboard",
			"code":  "DASHBOARD_ERROR",
		})
	}
	return ctx.JSON(resp)
}

// fetch runs a store round trip. Failures are kept on the aggregator and
// shown by the dashboard, so they only get logged here.
func (h *Handlers) fetch(ctx *cartridge.Context, run func(context.Context) (analytics.Dataset, error)) {
	if _, err := run(ctx.UserContext()); err != nil {
		ctx.Logger.Debug("Dashboard fetch failed", slog.Any("error", err))
	}
}

// DashboardAction returns the dashboard, fetching on first use.
func (h *Handlers) DashboardAction(ctx *cartridge.Context) error {
	state := h.svc.Aggregator.State()
	if state.Configured && state.LastUpdated == nil && state.Error == "" && !state.Loading {
		h.fetch(ctx, h.svc.Aggregator.Fetch)
	}
	return h.renderDashboard(ctx)
}

// RefreshAction refetches with the active range. It doubles as the retry
// action after an error.
func (h *Handlers) RefreshAction(ctx *cartridge.Context) error {
	h.fetch(ctx, h.svc.Aggregator.Fetch)
	return h.renderDashboard(ctx)
}

type rangeRequest struct {
	Preset string `json:"preset" form:"preset"`
	Start  string `json:"start" form:"start"`
	End    string `json:"end" form:"end"`
}

// RangeAction applies a preset or an explicit YYYY-MM-DD range and fetches.
func (h *Handlers) RangeAction(ctx *cartridge.Context) error {
	var req rangeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request",
			"code":  "INVALID_REQUEST",
		})
	}

	agg := h.svc.Aggregator
	if req.Preset != "" {
		preset, err := timeframe.ParsePreset(req.Preset)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "INVALID_PRESET",
			})
		}
		h.fetch(ctx, func(c context.Context) (analytics.Dataset, error) {
			return agg.SetPresetFilter(c, preset)
		})
		return h.renderDashboard(ctx)
	}

	start, end, err := timeframe.ParseRange(req.Start, req.End, agg.Location())
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "INVALID_RANGE",
		})
	}
	h.fetch(ctx, func(c context.Context) (analytics.Dataset, error) {
		return agg.SetDateFilter(c, start, end)
	})
	return h.renderDashboard(ctx)
}

type autoRefreshRequest struct {
	Enabled         bool `json:"enabled" form:"enabled"`
	IntervalSeconds int  `json:"interval_seconds" form:"interval_seconds"`
}

// AutoRefreshAction turns periodic refetching on or off. A zero interval
// keeps the current one.
func (h *Handlers) AutoRefreshAction(ctx *cartridge.Context) error {
	var req autoRefreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request",
			"code":  "INVALID_REQUEST",
		})
	}

	pref := h.svc.Scheduler.AutoRefresh()
	pref.Enabled = req.Enabled
	if req.IntervalSeconds != 0 {
		pref.Interval = time.Duration(req.IntervalSeconds) * time.Second
	}

	if err := h.svc.Scheduler.SetAutoRefresh(pref); err != nil {
		if errors.Is(err, settings.ErrInvalidInterval) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "INVALID_INTERVAL",
			})
		}
		ctx.Logger.Error("Failed to save auto refresh settings", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save settings",
			"code":  "SETTINGS_ERROR",
		})
	}

	return ctx.JSON(fiber.Map{"auto_refresh": autoRefreshState(pref)})
}
