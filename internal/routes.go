package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "linkhub/api/v1"
	"linkhub/internal/auth"
	"linkhub/internal/config"
	"linkhub/internal/http"
	"linkhub/internal/http/middleware"
	"linkhub/internal/services"
)

// publicCORSConfig returns the standard CORS configuration for public endpoints.
// The hub page may be served from a different origin than this API.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

// SetupSession configures the signed-cookie admin session on the server.
func SetupSession(srv *cartridge.Server, cfg *config.Config) {
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/admin/login",
	})
	srv.SetSession(sessionMgr)
}

// RouteMount returns the route mount function for svc.
func RouteMount(svc *services.Services) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		MountAppRoutes(srv, svc)
	}
}

// MountAppRoutes sets up the session and mounts every route.
func MountAppRoutes(srv *cartridge.Server, svc *services.Services) {
	cfg := svc.Config
	SetupSession(srv, cfg)
	session := auth.CartridgeSession(srv.Session())
	logger := srv.GetLogger()

	// Rate limiting would interfere with tests, so it only applies in production.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70/min per IP covers a visitor clicking through the hub.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Login brute force protection.
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Links are followed by top-level navigation from other sites.
	redirectConfig := &cartridge.RouteConfig{
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		EnableSecFetchSite: cartridge.Bool(false),
	}

	loginConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}

	adminAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			middleware.RequireAdmin(session, logger),
		},
	}

	h := http.NewHandlers(svc, session)
	api := v1.NewHandler(svc)
	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// === ROOT ROUTES ===
	srv.Get("/", h.HomeIndexAction, publicAPIConfig)
	srv.Get("/go/:id", h.LinkRedirectAction, redirectConfig)

	srv.Get("/_health", h.HealthIndexAction)
	srv.Head("/_health", h.HealthIndexAction)

	// === PUBLIC API ROUTES ===
	srv.Post("/x/api/v1/events", api.CreateEventAction, publicAPIConfig)
	srv.Options("/x/api/v1/events", preflight, publicAPIConfig)
	srv.Post("/x/api/v1/events/beacon", api.CreateEventBeaconAction, publicAPIConfig)
	srv.Options("/x/api/v1/events/beacon", preflight, publicAPIConfig)
	srv.Get("/x/api/v1/exclusion", api.GetExclusionAction, publicAPIConfig)
	srv.Delete("/x/api/v1/exclusion", api.DeleteExclusionAction, publicAPIConfig)
	srv.Options("/x/api/v1/exclusion", preflight, publicAPIConfig)

	// === AUTHENTICATION ROUTES ===
	srv.Post("/admin/login", h.AdminLoginAction, loginConfig)
	srv.Post("/admin/logout", h.AdminLogoutAction)
	srv.Get("/admin/session", h.AdminSessionAction)

	// === DASHBOARD API ROUTES ===
	srv.Get("/admin/api/analytics", h.DashboardAction, adminAPIConfig)
	srv.Post("/admin/api/analytics/range", h.RangeAction, adminAPIConfig)
	srv.Post("/admin/api/analytics/refresh", h.RefreshAction, adminAPIConfig)
	srv.Post("/admin/api/analytics/auto-refresh", h.AutoRefreshAction, adminAPIConfig)
}
