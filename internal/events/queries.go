package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// GormStore keeps the event log in a gorm-managed table. It backs both the
// app's own SQLite database and MySQL.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
	write  func(fn func(tx *gorm.DB) error) error
}

// NewGormStore returns a store writing through plain transactions.
func NewGormStore(db *gorm.DB, logger *slog.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger,
		write: func(fn func(tx *gorm.DB) error) error {
			return db.Transaction(fn)
		},
	}
}

// NewSQLiteStore returns a store whose writes retry on SQLite busy errors.
func NewSQLiteStore(db *gorm.DB, logger *slog.Logger) *GormStore {
	s := &GormStore{db: db, logger: logger}
	s.write = func(fn func(tx *gorm.DB) error) error {
		return sqlite.PerformWrite(logger, db, fn)
	}
	return s
}

// Migrate creates the analytics table when missing.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&Event{})
}

func (s *GormStore) Insert(ctx context.Context, event *Event) error {
	event.Timestamp = event.Timestamp.UTC()
	err := s.write(func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(event).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *GormStore) Query(ctx context.Context, r DateRange) ([]Event, error) {
	r = r.Normalized()
	query := s.db.WithContext(ctx).Model(&Event{})
	if r.Start != nil {
		query = query.Where("timestamp >= ?", r.Start.UTC())
	}
	if r.End != nil {
		query = query.Where("timestamp <= ?", r.End.UTC())
	}

	var events []Event
	if err := query.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CountByName returns the number of stored events per kind.
func (s *GormStore) CountByName(ctx context.Context) (map[EventName]int64, error) {
	var rows []struct {
		EventName EventName
		Total     int64
	}
	err := s.db.WithContext(ctx).Model(&Event{}).
		Select("event_name, COUNT(*) AS total").
		Group("event_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	out := make(map[EventName]int64, len(rows))
	for _, row := range rows {
		out[row.EventName] = row.Total
	}
	return out, nil
}
