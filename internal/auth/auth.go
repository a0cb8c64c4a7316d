// Package auth gates the admin dashboard behind a single shared password.
package auth

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/crypto"
)

// AdminUserID is the session subject for the one admin.
const AdminUserID uint = 1

var (
	ErrNotConfigured   = errors.New("admin password not configured")
	ErrInvalidPassword = errors.New("invalid password")
)

// Session is the login state of a request.
type Session interface {
	IsAuthenticated(c *fiber.Ctx) bool
	Login(c *fiber.Ctx, userID uint) error
	Logout(c *fiber.Ctx)
}

type cartridgeSession struct {
	mgr *cartridge.SessionManager
}

// CartridgeSession adapts the signed-cookie session manager.
func CartridgeSession(mgr *cartridge.SessionManager) Session {
	return cartridgeSession{mgr: mgr}
}

func (s cartridgeSession) IsAuthenticated(c *fiber.Ctx) bool {
	return s.mgr.IsAuthenticated(c)
}

func (s cartridgeSession) Login(c *fiber.Ctx, userID uint) error {
	return s.mgr.SetSession(c, userID)
}

func (s cartridgeSession) Logout(c *fiber.Ctx) {
	s.mgr.ClearSession(c)
}

// Authenticator checks the admin password. A bcrypt hash takes precedence
// over a plain password when both are set.
type Authenticator struct {
	password string
	hash     string
	logger   *slog.Logger
}

func New(password, hash string, logger *slog.Logger) *Authenticator {
	return &Authenticator{password: password, hash: hash, logger: logger}
}

func (a *Authenticator) Configured() bool {
	return a.password != "" || a.hash != ""
}

// Verify compares password against the configured secret.
func (a *Authenticator) Verify(password string) bool {
	if a.hash != "" {
		return crypto.VerifyPassword(a.hash, password)
	}
	if a.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}

// Login starts an admin session when password matches.
func (a *Authenticator) Login(c *fiber.Ctx, s Session, password string) error {
	if !a.Configured() {
		a.logger.Warn("Admin login attempted but no admin password is configured")
		return ErrNotConfigured
	}
	if !a.Verify(password) {
		a.logger.Debug("Invalid admin password attempt", slog.String("ip", c.IP()))
		return ErrInvalidPassword
	}
	if err := s.Login(c, AdminUserID); err != nil {
		a.logger.Error("Failed to set session", slog.Any("error", err))
		return err
	}
	a.logger.Info("Admin logged in", slog.String("ip", c.IP()))
	return nil
}

func (a *Authenticator) Logout(c *fiber.Ctx, s Session) {
	s.Logout(c)
}

func (a *Authenticator) IsAuthenticated(c *fiber.Ctx, s Session) bool {
	return s.IsAuthenticated(c)
}
