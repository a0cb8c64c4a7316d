package middleware

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSession bool

func (s staticSession) IsAuthenticated(*fiber.Ctx) bool { return bool(s) }
func (s staticSession) Login(*fiber.Ctx, uint) error    { return nil }
func (s staticSession) Logout(*fiber.Ctx)               {}

func TestRequireAdmin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name    string
		session staticSession
		want    int
	}{
		{"authenticated", true, fiber.StatusOK},
		{"anonymous", false, fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/admin/api/analytics", RequireAdmin(tt.session, logger), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/admin/api/analytics", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
