package testsupport

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"linkhub/internal"
	"linkhub/internal/config"
	"linkhub/internal/database"
	"linkhub/internal/events"
	"linkhub/internal/services"
)

// SessionCookieName is the expected cookie name for session cookies in tests.
// This should match the pattern used in routes.go: cfg.AppName + "_session"
const SessionCookieName = "linkhub_session"

// TestAdminPassword is the admin password configured by NewTestConfig.
const TestAdminPassword = "correct horse battery staple"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with linkhub's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

var _ cartridge.DBManager = (*TestDBManager)(nil)

// SetupTestDB creates a test database with all models migrated.
// Uses a named in-memory database with cache=shared so multiple connections
// see the same data. Subtests share their root test's database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// SetupTestDBManager creates a test DB manager using cartridge's testsupport
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	t.Helper()
	return NewTestDBManager(SetupTestDB(t)), GetLogger()
}

// CleanTables empties the given tables.
func CleanTables(db *gorm.DB, tables ...string) {
	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
		}
		return nil
	})
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// NewTestConfig returns a copy of the global config pointed at the local
// event store, with an admin password and a UTC dashboard.
func NewTestConfig() *config.Config {
	cfg := *config.GetConfig()
	cfg.Environment = config.Test
	cfg.StoreURL = "local"
	cfg.StoreKey = "test"
	cfg.AdminPassword = TestAdminPassword
	cfg.AdminPasswordHash = ""
	cfg.Timezone = "UTC"
	cfg.RedisAddr = ""
	cfg.LinksFile = ""
	return &cfg
}

// SeedEvents inserts events straight into the local event table.
func SeedEvents(t *testing.T, db *gorm.DB, evts ...events.Event) {
	t.Helper()
	for i := range evts {
		require.NoError(t, db.Create(&evts[i]).Error)
	}
}

// CreateMinimalTestApp creates a test Fiber app with all routes mounted on
// services built from cfg. A nil cfg uses NewTestConfig.
func CreateMinimalTestApp(t *testing.T, db *gorm.DB, cfg *config.Config) (*fiber.App, *services.Services) {
	t.Helper()

	if cfg == nil {
		cfg = NewTestConfig()
	}
	log := GetLogger()

	svc, err := services.New(cfg, db, log)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	srvCfg := cartridge.DefaultServerConfig()
	srvCfg.Config = cfg
	srvCfg.Logger = log
	srvCfg.DBManager = NewTestDBManager(db)
	// Enable SecFetchSite validation in tests to match production behavior
	srvCfg.EnableSecFetchSite = true
	srvCfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(srvCfg)
	require.NoError(t, err)

	internal.MountAppRoutes(srv, svc)
	return srv.App(), svc
}
