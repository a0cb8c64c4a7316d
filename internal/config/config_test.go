package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("LINKHUB_ENV", Test)
	t.Setenv("LINKHUB_STORE_URL", "")
	t.Setenv("LINKHUB_STORE_KEY", "")

	c := GetConfig()

	assert.Equal(t, "linkhub", c.AppName)
	assert.True(t, c.IsTest())
	assert.Equal(t, 30*time.Second, c.AutoRefreshInterval())
	assert.Equal(t, 5*time.Second, c.StoreTimeout())
	assert.Equal(t, "exclude", c.ExcludeQueryParam)
	assert.False(t, c.StoreConfigured())
	assert.Equal(t, 1, c.GetMaxOpenConns())
	assert.Contains(t, c.DatabaseName, "linkhub-test.db")
}

func TestGetConfigFromEnvironment(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("LINKHUB_ENV", Test)
	t.Setenv("LINKHUB_STORE_URL", "https://project.supabase.co")
	t.Setenv("LINKHUB_STORE_KEY", "anon-key")
	t.Setenv("LINKHUB_AUTO_REFRESH_INTERVAL_SECONDS", "45")
	t.Setenv("LINKHUB_TIMEZONE", "Asia/Tokyo")

	c := GetConfig()

	assert.True(t, c.StoreConfigured())
	assert.Equal(t, 45*time.Second, c.AutoRefreshInterval())
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestStoreConfiguredNeedsBothSettings(t *testing.T) {
	tests := []struct {
		name     string
		url, key string
		expected bool
	}{
		{"both", "local", "dev", true},
		{"missing key", "local", "", false},
		{"missing url", "", "dev", false},
		{"neither", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{StoreURL: tt.url, StoreKey: tt.key}
			assert.Equal(t, tt.expected, c.StoreConfigured())
		})
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	c := &Config{Environment: Test, AutoRefreshIntervalSecond: 30, Timezone: "Mars/Olympus"}
	assert.Error(t, c.validate())
}
