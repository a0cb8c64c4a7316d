package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

const (
	KeyAutoRefreshEnabled  = "auto_refresh_enabled"
	KeyAutoRefreshInterval = "auto_refresh_interval_seconds"
)

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

// AutoRefresh is the persisted dashboard refresh preference.
type AutoRefresh struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"-"`
}

func (a AutoRefresh) IntervalSeconds() int {
	return int(a.Interval / time.Second)
}

// Store reads settings through a short-lived cache; writes invalidate it.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	cache  *cache.Cache[string, string]
}

func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	s := &Store{db: db, logger: logger}
	s.cache = cache.NewCache[string, string](logger, 5*time.Minute, s.load)
	return s
}

func (s *Store) load(key string) (string, error) {
	var value string
	err := s.db.WithContext(context.Background()).
		Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).
		Scan(&value).Error
	return value, err
}

// SetupDefaults inserts the auto refresh settings unless they already exist.
func (s *Store) SetupDefaults(defaults AutoRefresh) error {
	rows := []Setting{
		{Key: KeyAutoRefreshEnabled, Value: strconv.FormatBool(defaults.Enabled)},
		{Key: KeyAutoRefreshInterval, Value: strconv.Itoa(defaults.IntervalSeconds())},
	}
	return sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, row := range rows {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, row.Key, row.Value, now, now).Error
			if err != nil {
				s.logger.Error("Failed to upsert setting", slog.String("key", row.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", row.Key, err)
			}
		}
		return nil
	})
}

// Get returns the stored value, or "" when the key is missing.
func (s *Store) Get(key string) (string, error) {
	v, err := s.cache.Get(key)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return v, nil
}

// Set creates or updates a setting.
func (s *Store) Set(key, value string) error {
	err := sqlite.PerformWrite(s.logger, s.db, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
		if err := tx.Create(&Setting{Key: key, Value: value}).Error; err != nil {
			return fmt.Errorf("failed to create setting: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// AutoRefresh reads the persisted preference, falling back field by field
// to def when a value is missing or unparsable.
func (s *Store) AutoRefresh(def AutoRefresh) (AutoRefresh, error) {
	out := def

	enabled, err := s.Get(KeyAutoRefreshEnabled)
	if err != nil {
		return def, err
	}
	if b, perr := strconv.ParseBool(enabled); perr == nil {
		out.Enabled = b
	}

	interval, err := s.Get(KeyAutoRefreshInterval)
	if err != nil {
		return def, err
	}
	if n, perr := strconv.Atoi(interval); perr == nil && n > 0 {
		out.Interval = time.Duration(n) * time.Second
	}
	return out, nil
}

var ErrInvalidInterval = errors.New("auto refresh interval must be at least one second")

func (s *Store) SaveAutoRefresh(a AutoRefresh) error {
	if a.Interval < time.Second {
		return ErrInvalidInterval
	}
	if err := s.Set(KeyAutoRefreshEnabled, strconv.FormatBool(a.Enabled)); err != nil {
		return err
	}
	return s.Set(KeyAutoRefreshInterval, strconv.Itoa(a.IntervalSeconds()))
}
