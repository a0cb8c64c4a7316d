// Package v1_test contains tests for the API v1 handlers
package v1_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"linkhub/internal/config"
	"linkhub/internal/events"
	"linkhub/internal/services"
	"linkhub/internal/testsupport"
)

func setupApp(t *testing.T, cfg *config.Config) (*fiber.App, *services.Services, *gorm.DB) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	testsupport.CleanTables(db, events.TableName, "settings")
	app, svc := testsupport.CreateMinimalTestApp(t, db, cfg)
	return app, svc, db
}

func browserRequest(method, target, contentType, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36")
	req.Header.Set("Origin", "https://hub.example.com")
	req.Header.Set("Referer", "https://hub.example.com/")
	req.Header.Set("Sec-Fetch-Site", "same-site")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body
}

func TestCreateEventAction(t *testing.T) {
	t.Run("queues a page view", func(t *testing.T) {
		app, svc, db := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{
			"event_name": "page_view",
			"title": "Studio links",
			"url": "https://hub.example.com/?utm_source=x",
			"path": "/",
			"referrer": "https://t.co/abc",
			"screen_resolution": "1920x1080",
			"viewport_size": "1280x720",
			"language": "ja-JP"
		}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "Event added successfully", body["message"])
		assert.Equal(t, float64(http.StatusAccepted), body["status"])
		assert.Equal(t, true, body["recorded"])
		assert.Equal(t, "queued", body["outcome"])

		svc.Recorder.Wait()
		var stored events.Event
		require.NoError(t, db.Where("event_name = ?", events.EventPageView).First(&stored).Error)
		assert.Equal(t, "/", stored.Path)
		assert.Equal(t, "ja-JP", stored.Language)
		assert.Equal(t, "1920x1080", stored.ScreenResolution)
		assert.Equal(t, "https://t.co/abc", stored.ReferrerValue())
		assert.Equal(t, "Studio links", stored.Data.String(events.KeyTitle, ""))
		assert.Contains(t, stored.UserAgent, "Chrome/120.0")
	})

	t.Run("stores custom event data", func(t *testing.T) {
		app, svc, db := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON,
			`{"event_name":"modal_open","event_data":{"title":"Game stores","type":"links"}}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		svc.Recorder.Wait()
		var stored events.Event
		require.NoError(t, db.Where("event_name = ?", events.EventModalOpen).First(&stored).Error)
		assert.Equal(t, "Game stores", stored.Data.String("title", ""))
	})

	t.Run("rejects unknown event names", func(t *testing.T) {
		app, _, _ := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{"event_name":"purchase"}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "UNKNOWN_EVENT", decodeBody(t, resp)["code"])
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		app, _, _ := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{"event_name":`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_REQUEST", decodeBody(t, resp)["code"])
	})

	t.Run("skips own access", func(t *testing.T) {
		app, svc, db := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{"event_name":"page_view"}`)
		req.AddCookie(&http.Cookie{Name: "linkhub_exclude", Value: "true"})
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, false, body["recorded"])
		assert.Equal(t, "excluded", body["outcome"])

		svc.Recorder.Wait()
		var count int64
		db.Model(&events.Event{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("skips visits to an excluded page", func(t *testing.T) {
		app, svc, db := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON,
			`{"event_name":"page_view","url":"https://hub.example.com/?exclude=true","path":"/"}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, false, body["recorded"])
		assert.Equal(t, "excluded", body["outcome"])

		var flag *http.Cookie
		for _, c := range resp.Cookies() {
			if c.Name == "linkhub_excludeAnalytics" {
				flag = c
			}
		}
		require.NotNil(t, flag, "opt-out should be persisted")
		assert.Equal(t, "true", flag.Value)

		req = browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON,
			`{"event_name":"link_click","url":"https://hub.example.com/"}`)
		req.AddCookie(&http.Cookie{Name: flag.Name, Value: flag.Value})
		resp, err = app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, "excluded", decodeBody(t, resp)["outcome"])

		svc.Recorder.Wait()
		var count int64
		db.Model(&events.Event{}).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("request query wins over the page query", func(t *testing.T) {
		app, _, _ := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events?exclude=false", fiber.MIMEApplicationJSON,
			`{"event_name":"page_view","url":"https://hub.example.com/?exclude=true"}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, "queued", decodeBody(t, resp)["outcome"])
	})

	t.Run("only logs without a store", func(t *testing.T) {
		cfg := testsupport.NewTestConfig()
		cfg.StoreURL = ""
		app, _, _ := setupApp(t, cfg)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{"event_name":"link_click"}`)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "logged", decodeBody(t, resp)["outcome"])
	})

	t.Run("rejects request without Sec-Fetch-Site header (server-to-server)", func(t *testing.T) {
		app, _, _ := setupApp(t, nil)

		req := browserRequest(fiber.MethodPost, "/x/api/v1/events", fiber.MIMEApplicationJSON, `{"event_name":"page_view"}`)
		req.Header.Del("Sec-Fetch-Site")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestCreateEventBeaconAction(t *testing.T) {
	app, svc, db := setupApp(t, nil)

	payloads := []string{
		`{"event_name":"modal_close","event_data":{"title":"Game stores"}}`,
		`{"event_name":"purchase"}`,
		`not json`,
	}
	for _, payload := range payloads {
		req := browserRequest(fiber.MethodPost, "/x/api/v1/events/beacon", fiber.MIMETextPlainCharsetUTF8, payload)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode, payload)
	}

	svc.Recorder.Wait()
	var count int64
	require.NoError(t, db.Model(&events.Event{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestExclusionActions(t *testing.T) {
	app, _, _ := setupApp(t, nil)

	req := browserRequest(fiber.MethodGet, "/x/api/v1/exclusion", "", "")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["excluded"])

	req = browserRequest(fiber.MethodGet, "/x/api/v1/exclusion?exclude=true", "", "")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, true, decodeBody(t, resp)["excluded"])

	var flag *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "linkhub_excludeAnalytics" {
			flag = c
		}
	}
	require.NotNil(t, flag, "opt-out should be persisted")

	req = browserRequest(fiber.MethodGet, "/x/api/v1/exclusion", "", "")
	req.AddCookie(&http.Cookie{Name: flag.Name, Value: flag.Value})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, true, decodeBody(t, resp)["excluded"])

	req = browserRequest(fiber.MethodDelete, "/x/api/v1/exclusion", "", "")
	req.AddCookie(&http.Cookie{Name: flag.Name, Value: flag.Value})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeBody(t, resp)["excluded"])

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == flag.Name && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "flag cookie should be cleared")
}
