// Package http holds the hub and admin dashboard handlers.
package http

import (
	"linkhub/internal/auth"
	"linkhub/internal/services"
)

// Handlers serves the hub and dashboard routes.
type Handlers struct {
	svc     *services.Services
	session auth.Session
}

func NewHandlers(svc *services.Services, session auth.Session) *Handlers {
	return &Handlers{svc: svc, session: session}
}
