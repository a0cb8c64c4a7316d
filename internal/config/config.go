// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	CSRFContextKey             string   `mapstructure:"-"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`
	LinksFile             string `mapstructure:"linksfile"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Local database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Event store. Both values are required; without them recording falls
	// back to local logging and the dashboard reports a configuration error.
	StoreURL            string `mapstructure:"storeurl"`
	StoreKey            string `mapstructure:"storekey"`
	StoreTimeoutSeconds int    `mapstructure:"storetimeoutseconds"`

	// Admin mode
	AdminPassword     string `mapstructure:"adminpassword"`
	AdminPasswordHash string `mapstructure:"adminpasswordhash"`

	// Client state backend (cookies when RedisAddr is empty)
	RedisAddr            string `mapstructure:"redisaddr"`
	RedisPassword        string `mapstructure:"redispassword"`
	RedisDB              int    `mapstructure:"redisdb"`
	ClientStateTTLInDays int    `mapstructure:"clientstatettlindays"`

	// Dashboard
	Timezone                  string `mapstructure:"timezone"`
	AutoRefreshEnabled        bool   `mapstructure:"autorefreshenabled"`
	AutoRefreshIntervalSecond int    `mapstructure:"autorefreshintervalseconds"`

	// Self-access exclusion
	ExcludeQueryParam  string `mapstructure:"excludequeryparam"`
	ExcludeCookieName  string `mapstructure:"excludecookiename"`
	ExcludeCookieValue string `mapstructure:"excludecookievalue"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env is fine; real deployments use the environment.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("appname", "linkhub")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("linksfile", "")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("storeurl", "")
		v.SetDefault("storekey", "")
		v.SetDefault("storetimeoutseconds", 5)
		v.SetDefault("redisdb", 0)
		v.SetDefault("clientstatettlindays", 365)
		v.SetDefault("timezone", "Local")
		v.SetDefault("autorefreshenabled", false)
		v.SetDefault("autorefreshintervalseconds", 30)
		v.SetDefault("excludequeryparam", "exclude")
		v.SetDefault("excludecookiename", "linkhub_exclude")
		v.SetDefault("excludecookievalue", "true")

		v.BindEnv("appname", "LINKHUB_APP_NAME")
		v.BindEnv("appport", "LINKHUB_APP_PORT")
		v.BindEnv("environment", "LINKHUB_ENV")
		v.BindEnv("loglevel", "LINKHUB_LOG_LEVEL")
		v.BindEnv("privatekey", "LINKHUB_PRIVATE_KEY")
		v.BindEnv("loginsessiontimeoutseconds", "LINKHUB_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("storagepath", "LINKHUB_STORAGE_PATH")
		v.BindEnv("publicdir", "LINKHUB_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LINKHUB_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("linksfile", "LINKHUB_LINKS_FILE")
		v.BindEnv("logsdir", "LINKHUB_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LINKHUB_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LINKHUB_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LINKHUB_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "LINKHUB_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LINKHUB_DB_MAX_IDLE_CONNS")
		v.BindEnv("storeurl", "LINKHUB_STORE_URL")
		v.BindEnv("storekey", "LINKHUB_STORE_KEY")
		v.BindEnv("storetimeoutseconds", "LINKHUB_STORE_TIMEOUT_SECONDS")
		v.BindEnv("adminpassword", "LINKHUB_ADMIN_PASSWORD")
		v.BindEnv("adminpasswordhash", "LINKHUB_ADMIN_PASSWORD_HASH")
		v.BindEnv("redisaddr", "LINKHUB_REDIS_ADDR")
		v.BindEnv("redispassword", "LINKHUB_REDIS_PASSWORD")
		v.BindEnv("redisdb", "LINKHUB_REDIS_DB")
		v.BindEnv("clientstatettlindays", "LINKHUB_CLIENT_STATE_TTL_IN_DAYS")
		v.BindEnv("timezone", "LINKHUB_TIMEZONE")
		v.BindEnv("autorefreshenabled", "LINKHUB_AUTO_REFRESH_ENABLED")
		v.BindEnv("autorefreshintervalseconds", "LINKHUB_AUTO_REFRESH_INTERVAL_SECONDS")
		v.BindEnv("excludequeryparam", "LINKHUB_EXCLUDE_QUERY_PARAM")
		v.BindEnv("excludecookiename", "LINKHUB_EXCLUDE_COOKIE_NAME")
		v.BindEnv("excludecookievalue", "LINKHUB_EXCLUDE_COOKIE_VALUE")

		cfg = &Config{
			CSRFContextKey: "csrf",
		}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique LINKHUB_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.AutoRefreshIntervalSecond <= 0 {
		return fmt.Errorf("invalid auto refresh interval: %d", c.AutoRefreshIntervalSecond)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// StoreConfigured reports whether both event store settings are present.
func (c *Config) StoreConfigured() bool {
	return c.StoreURL != "" && c.StoreKey != ""
}

// StoreTimeout bounds a single store round trip.
func (c *Config) StoreTimeout() time.Duration {
	if c.StoreTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

// AutoRefreshInterval returns the default dashboard refresh interval.
func (c *Config) AutoRefreshInterval() time.Duration {
	return time.Duration(c.AutoRefreshIntervalSecond) * time.Second
}

// ClientStateTTL is how long persisted client flags survive.
func (c *Config) ClientStateTTL() time.Duration {
	return time.Duration(c.ClientStateTTLInDays) * 24 * time.Hour
}

// Location resolves the dashboard timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the session lifetime in seconds. linkhub has
// no visitor sessions, so this is the admin login lifetime as well.
func (c *Config) GetSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetLoginSessionTimeout returns the admin login cookie duration in seconds.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
