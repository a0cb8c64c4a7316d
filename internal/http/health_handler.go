package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	DBStatus    string    `json:"db_status"`
	StoreStatus string    `json:"store_status"`
}

// HealthIndexAction reports the local database and the event store. An
// unconfigured store does not degrade the status; recording falls back to
// logs in that case.
func (h *Handlers) HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		Status:      "ok",
		Timestamp:   time.Now(),
		DBStatus:    "ok",
		StoreStatus: "unconfigured",
	}

	db := ctx.DBManager.GetConnection()
	if db == nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else if sqlDB, err := db.DB(); err != nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database connection error", slog.Any("error", err))
	} else if err := sqlDB.Ping(); err != nil {
		health.DBStatus = "error"
		ctx.Logger.Error("Database ping failed", slog.Any("error", err))
	}

	if st := h.svc.Store; st != nil {
		pingCtx, cancel := context.WithTimeout(ctx.UserContext(), 3*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			health.StoreStatus = "error"
			ctx.Logger.Warn("Event store ping failed", slog.Any("error", err))
		} else {
			health.StoreStatus = "ok"
		}
	}

	if health.DBStatus != "ok" || health.StoreStatus == "error" {
		health.Status = "degraded"
	}
	return ctx.JSON(health)
}
