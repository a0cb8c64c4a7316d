package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"linkhub/internal/auth"
)

type loginRequest struct {
	Password string `json:"password" form:"password"`
}

// AdminLoginAction starts an admin session.
func (h *Handlers) AdminLoginAction(ctx *cartridge.Context) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request",
			"code":  "INVALID_REQUEST",
		})
	}

	err := h.svc.Auth.Login(ctx.Ctx, h.session, req.Password)
	switch {
	case errors.Is(err, auth.ErrNotConfigured):
		return ctx.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Admin password not configured",
			"code":  "ADMIN_NOT_CONFIGURED",
		})
	case errors.Is(err, auth.ErrInvalidPassword):
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid password",
			"code":  "INVALID_PASSWORD",
		})
	case err != nil:
		ctx.Logger.Error("Admin login failed", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Login failed",
			"code":  "LOGIN_ERROR",
		})
	}
	return ctx.JSON(fiber.Map{"authenticated": true})
}

func (h *Handlers) AdminLogoutAction(ctx *cartridge.Context) error {
	h.svc.Auth.Logout(ctx.Ctx, h.session)
	return ctx.JSON(fiber.Map{"authenticated": false})
}

// AdminSessionAction reports whether the request carries an admin session.
func (h *Handlers) AdminSessionAction(ctx *cartridge.Context) error {
	return ctx.JSON(fiber.Map{
		"authenticated": h.svc.Auth.IsAuthenticated(ctx.Ctx, h.session),
		"configured":    h.svc.Auth.Configured(),
	})
}
