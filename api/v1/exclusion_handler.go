package v1

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkhub/internal/clientstate"
)

// GetExclusionAction reports whether this browser is excluded from
// analytics. Calling it with the exclusion query parameter opts in.
func (h *Handler) GetExclusionAction(ctx *cartridge.Context) error {
	visit := h.svc.Visit(ctx.Ctx)
	return ctx.JSON(fiber.Map{
		"excluded": h.svc.Recorder.IsOwnAccess(ctx.UserContext(), visit),
	})
}

// DeleteExclusionAction clears the persisted flag and the marker cookie.
func (h *Handler) DeleteExclusionAction(ctx *cartridge.Context) error {
	visit := h.svc.Visit(ctx.Ctx)
	if err := visit.State.Delete(ctx.UserContext(), clientstate.ExcludeAnalytics); err != nil {
		ctx.Logger.Error("Failed to clear exclusion flag", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear exclusion",
			"code":  "STATE_ERROR",
		})
	}
	ctx.ClearCookie(h.svc.Config.ExcludeCookieName)
	return ctx.JSON(fiber.Map{"excluded": false})
}
