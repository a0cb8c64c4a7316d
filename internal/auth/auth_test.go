package auth

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeSession struct {
	loggedIn bool
	userID   uint
}

func (s *fakeSession) IsAuthenticated(*fiber.Ctx) bool { return s.loggedIn }

func (s *fakeSession) Login(_ *fiber.Ctx, id uint) error {
	s.loggedIn, s.userID = true, id
	return nil
}

func (s *fakeSession) Logout(*fiber.Ctx) { s.loggedIn = false }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerify(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		auth     *Authenticator
		password string
		want     bool
	}{
		{"plain match", New("hunter2", "", discard()), "hunter2", true},
		{"plain mismatch", New("hunter2", "", discard()), "hunter", false},
		{"hash match", New("", string(hash), discard()), "hunter2", true},
		{"hash mismatch", New("", string(hash), discard()), "nope", false},
		{"hash wins over plain", New("other", string(hash), discard()), "other", false},
		{"nothing configured", New("", "", discard()), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.auth.Verify(tt.password))
		})
	}
}

func TestLoginFlow(t *testing.T) {
	sess := &fakeSession{}
	a := New("hunter2", "", discard())

	app := fiber.New()
	var loginErr error
	app.Post("/login/:pw", func(c *fiber.Ctx) error {
		loginErr = a.Login(c, sess, c.Params("pw"))
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Post("/logout", func(c *fiber.Ctx) error {
		a.Logout(c, sess)
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		if a.IsAuthenticated(c, sess) {
			return c.SendStatus(fiber.StatusOK)
		}
		return c.SendStatus(fiber.StatusUnauthorized)
	})

	do := func(method, path string) int {
		resp, err := app.Test(httptest.NewRequest(method, path, nil))
		require.NoError(t, err)
		return resp.StatusCode
	}

	do("POST", "/login/wrong")
	assert.ErrorIs(t, loginErr, ErrInvalidPassword)
	assert.Equal(t, fiber.StatusUnauthorized, do("GET", "/me"))

	do("POST", "/login/hunter2")
	require.NoError(t, loginErr)
	assert.Equal(t, AdminUserID, sess.userID)
	assert.Equal(t, fiber.StatusOK, do("GET", "/me"))

	do("POST", "/logout")
	assert.Equal(t, fiber.StatusUnauthorized, do("GET", "/me"))
}

func TestLoginNotConfigured(t *testing.T) {
	sess := &fakeSession{}
	a := New("", "", discard())
	assert.False(t, a.Configured())

	app := fiber.New()
	var loginErr error
	app.Post("/login", func(c *fiber.Ctx) error {
		loginErr = a.Login(c, sess, "")
		return nil
	})
	_, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)

	assert.ErrorIs(t, loginErr, ErrNotConfigured)
	assert.False(t, sess.loggedIn)
}
