package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkhub/internal/events"
	"linkhub/internal/services"
	"linkhub/internal/tracking"
)

const (
	msgEventAdded     = "Event added successfully"
	errInvalidRequest = "Invalid request"
)

// Handler serves the public tracking API.
type Handler struct {
	svc *services.Services
}

func NewHandler(svc *services.Services) *Handler {
	return &Handler{svc: svc}
}

type CreateEventParams struct {
	EventName        string      `json:"event_name"`
	EventData        events.Data `json:"event_data"`
	URL              string      `json:"url"`
	Path             string      `json:"path"`
	Title            string      `json:"title"`
	Referrer         string      `json:"referrer"`
	ScreenResolution string      `json:"screen_resolution"`
	ViewportSize     string      `json:"viewport_size"`
	Language         string      `json:"language"`
}

// visit merges the client-reported page context over what the request
// itself tells us.
func (h *Handler) visit(c *fiber.Ctx, p *CreateEventParams) *tracking.Visit {
	v := h.svc.Visit(c)
	if ua := c.Get("X-Forwarded-User-Agent"); ua != "" {
		v.UserAgent = ua
	}
	if p.URL != "" {
		v.URL = p.URL
		if u, err := url.Parse(p.URL); err == nil {
			services.MergePageQuery(v.Query, u)
		}
	}
	if p.Path != "" {
		v.Path = p.Path
	}
	if p.Language != "" {
		v.Language = p.Language
	}
	v.Title = p.Title
	v.Referrer = p.Referrer
	v.ScreenResolution = p.ScreenResolution
	v.ViewportSize = p.ViewportSize
	return v
}

func (h *Handler) record(ctx *cartridge.Context, params *CreateEventParams) (tracking.Outcome, error) {
	name, err := events.ParseEventName(params.EventName)
	if err != nil {
		return tracking.Rejected, err
	}
	visit := h.visit(ctx.Ctx, params)
	if name == events.EventPageView {
		return h.svc.Recorder.TrackPageView(ctx.UserContext(), visit, params.EventData), nil
	}
	return h.svc.Recorder.TrackEvent(ctx.UserContext(), visit, name, params.EventData), nil
}

// CreateEventAction records one interaction. The write happens in the
// background; "recorded" tells the client whether it was queued for the
// store or dropped (own access, no store).
func (h *Handler) CreateEventAction(ctx *cartridge.Context) error {
	var params CreateEventParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse event request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}

	outcome, err := h.record(ctx, &params)
	if errors.Is(err, events.ErrUnknownEvent) {
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNKNOWN_EVENT",
		})
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message":  msgEventAdded,
		"status":   http.StatusAccepted,
		"recorded": outcome == tracking.Queued,
		"outcome":  outcome.String(),
	})
}

// CreateEventBeaconAction handles navigator.sendBeacon requests, which
// arrive as text/plain and ignore the response, so it always answers 202.
func (h *Handler) CreateEventBeaconAction(ctx *cartridge.Context) error {
	var params CreateEventParams
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}
	if _, err := h.record(ctx, &params); err != nil {
		ctx.Logger.Debug("Rejected beacon event", slog.String("event_name", params.EventName))
	}
	return ctx.SendStatus(http.StatusAccepted)
}
