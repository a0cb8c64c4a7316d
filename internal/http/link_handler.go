package http

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkhub/internal/events"
	"linkhub/internal/tracking"
)

// LinkRedirectAction records the click and redirects to the link. Links
// with several destinations take the destination index in ?to=.
func (h *Handlers) LinkRedirectAction(ctx *cartridge.Context) error {
	link, ok := h.svc.Links.Find(ctx.Params("id"))
	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Link not found",
			"code":  "LINK_NOT_FOUND",
		})
	}

	index := -1
	if raw := ctx.Query("to"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid destination",
				"code":  "INVALID_DESTINATION",
			})
		}
		index = n
	}

	target, ok := link.Destination(index)
	if !ok {
		if index < 0 && link.HasModal() {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Link has several destinations",
				"code":  "DESTINATION_REQUIRED",
				"links": link.Targets,
			})
		}
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Destination not found",
			"code":  "DESTINATION_NOT_FOUND",
		})
	}

	visit := h.svc.Visit(ctx.Ctx)
	var outcome tracking.Outcome
	if index < 0 {
		outcome = h.svc.Recorder.TrackLinkClick(ctx.UserContext(), visit, link.Title, target.URL, events.Data{
			events.KeyCategory: link.Category,
			events.KeyLinkID:   link.ID,
		})
	} else {
		outcome = h.svc.Recorder.TrackModal(ctx.UserContext(), visit, tracking.ModalLinkClick, events.Data{
			events.KeyTitle:     link.Title,
			"type":              "links",
			events.KeyLinkTitle: target.Name,
			events.KeyLinkURL:   target.URL,
			events.KeyLinkID:    link.ID,
		})
	}
	ctx.Logger.Debug("Link redirect",
		slog.String("link", link.ID),
		slog.String("outcome", outcome.String()))

	return ctx.Redirect(target.URL, fiber.StatusFound)
}
