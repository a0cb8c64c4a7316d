// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/karloscodes/cartridge"

	"linkhub/internal/config"
	"linkhub/internal/database"
	"linkhub/internal/services"
)

// Application wraps cartridge.Application with linkhub-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Services  *services.Services
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config. The
// local database is migrated before the services start since settings live
// there.
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := dbManager.MigrateDatabase(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	svc, err := services.New(cfg, dbManager.GetConnection(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    RouteMount(svc),
		BackgroundWorkers: []cartridge.BackgroundWorker{svc.Scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Services:    svc,
	}, nil
}

// Shutdown stops the server and workers, then flushes pending event writes.
func (a *Application) Shutdown(ctx context.Context) error {
	err := a.Application.Shutdown(ctx)
	return errors.Join(err, a.Services.Close())
}
