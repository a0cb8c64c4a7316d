package tracking_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/internal/clientstate"
	"linkhub/internal/events"
	"linkhub/internal/testsupport"
	"linkhub/internal/tracking"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newVisit() *tracking.Visit {
	return &tracking.Visit{
		URL:              "https://links.example.com/?utm_source=x",
		Path:             "/",
		Title:            "Links",
		Referrer:         "https://t.co/abc",
		UserAgent:        "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
		ScreenResolution: "390x844",
		ViewportSize:     "390x664",
		Language:         "ja-JP",
		Query:            url.Values{},
		Cookie:           func(string) string { return "" },
		State:            clientstate.NewMemoryStore(),
	}
}

func newRecorder(store events.Store) *tracking.Recorder {
	return tracking.NewRecorder(store, testsupport.GetLogger(),
		tracking.WithClock(func() time.Time { return fixedNow }))
}

func TestIsOwnAccess(t *testing.T) {
	ctx := context.Background()
	r := newRecorder(testsupport.NewFakeStore())

	t.Run("plain visitor", func(t *testing.T) {
		assert.False(t, r.IsOwnAccess(ctx, newVisit()))
	})

	t.Run("persisted flag", func(t *testing.T) {
		v := newVisit()
		require.NoError(t, v.State.Set(ctx, clientstate.ExcludeAnalytics, "true"))
		assert.True(t, r.IsOwnAccess(ctx, v))
	})

	t.Run("query parameter is sticky", func(t *testing.T) {
		v := newVisit()
		v.Query.Set("exclude", "true")
		assert.True(t, r.IsOwnAccess(ctx, v))

		v.Query = url.Values{}
		assert.True(t, r.IsOwnAccess(ctx, v))
	})

	t.Run("query parameter must be true", func(t *testing.T) {
		v := newVisit()
		v.Query.Set("exclude", "1")
		assert.False(t, r.IsOwnAccess(ctx, v))
	})

	t.Run("marker cookie", func(t *testing.T) {
		v := newVisit()
		v.Cookie = func(name string) string {
			if name == "linkhub_exclude" {
				return "true"
			}
			return ""
		}
		assert.True(t, r.IsOwnAccess(ctx, v))
	})

	t.Run("custom exclusion", func(t *testing.T) {
		custom := tracking.NewRecorder(nil, testsupport.GetLogger(), tracking.WithExclusion(tracking.Exclusion{
			QueryParam: "notrack", CookieName: "me", CookieValue: "1",
		}))
		v := newVisit()
		v.Query.Set("exclude", "true")
		assert.False(t, custom.IsOwnAccess(ctx, v))

		v.Cookie = func(string) string { return "1" }
		assert.True(t, custom.IsOwnAccess(ctx, v))
	})

	t.Run("without client state", func(t *testing.T) {
		v := newVisit()
		v.State = nil
		v.Cookie = nil
		v.Query.Set("exclude", "true")
		assert.True(t, r.IsOwnAccess(ctx, v))
	})
}

func TestTrackEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a full record", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)

		out := r.TrackEvent(ctx, newVisit(), events.EventPageView, events.Data{"title": "Links"})
		r.Wait()

		assert.Equal(t, tracking.Queued, out)
		stored := store.Events()
		require.Len(t, stored, 1)
		e := stored[0]
		assert.Equal(t, events.EventPageView, e.Name)
		assert.Equal(t, fixedNow, e.Timestamp)
		assert.Equal(t, "https://links.example.com/?utm_source=x", e.URL)
		assert.Equal(t, "/", e.Path)
		require.NotNil(t, e.Referrer)
		assert.Equal(t, "https://t.co/abc", *e.Referrer)
		assert.Equal(t, "390x844", e.ScreenResolution)
		assert.Equal(t, "390x664", e.ViewportSize)
		assert.Equal(t, "ja-JP", e.Language)
	})

	t.Run("empty referrer is null", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		v := newVisit()
		v.Referrer = ""

		r.TrackEvent(ctx, v, events.EventPageView, nil)
		r.Wait()

		require.Len(t, store.Events(), 1)
		assert.Nil(t, store.Events()[0].Referrer)
		assert.NotNil(t, store.Events()[0].Data)
	})

	t.Run("own access writes nothing", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		v := newVisit()
		v.Query.Set("exclude", "true")

		assert.Equal(t, tracking.Excluded, r.TrackEvent(ctx, v, events.EventPageView, nil))
		r.Wait()
		assert.Empty(t, store.Events())
	})

	t.Run("unconfigured store only logs", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		r := tracking.NewRecorder(nil, logger)

		assert.False(t, r.Configured())
		assert.Equal(t, tracking.LoggedOnly, r.TrackEvent(ctx, newVisit(), events.EventLinkClick, events.Data{"link_title": "Shop"}))
		assert.Contains(t, buf.String(), "event_name=link_click")
	})

	t.Run("insert failure is swallowed", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		store.InsertErr = errors.New("permission denied for table analytics")
		var buf bytes.Buffer
		r := tracking.NewRecorder(store, slog.New(slog.NewTextHandler(&buf, nil)))

		assert.Equal(t, tracking.Queued, r.TrackEvent(ctx, newVisit(), events.EventPageView, nil))
		r.Wait()
		assert.True(t, strings.Contains(buf.String(), "permission denied"))
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		assert.Equal(t, tracking.Rejected, r.TrackEvent(ctx, newVisit(), events.EventName("purchase"), nil))
		r.Wait()
		assert.Empty(t, store.Events())
	})

	t.Run("write outlives the request context", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		reqCtx, cancel := context.WithCancel(ctx)

		r.TrackEvent(reqCtx, newVisit(), events.EventPageView, nil)
		cancel()
		r.Wait()
		assert.Len(t, store.Events(), 1)
	})
}

func TestTrackHelpers(t *testing.T) {
	ctx := context.Background()

	t.Run("page view", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		r.TrackPageView(ctx, newVisit(), events.Data{"title": "Override"})
		r.Wait()

		d := store.Events()[0].Data
		assert.Equal(t, "Override", d["title"])
		assert.Equal(t, "/", d["page_path"])
		assert.Equal(t, "https://links.example.com/?utm_source=x", d["page_url"])
	})

	t.Run("link click", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		r.TrackLinkClick(ctx, newVisit(), "Shop", "https://shop.example.com", events.Data{"category": "content", "link_id": "shop"})
		r.Wait()

		e := store.Events()[0]
		assert.Equal(t, events.EventLinkClick, e.Name)
		assert.Equal(t, events.Data{
			"link_title": "Shop",
			"link_url":   "https://shop.example.com",
			"page_path":  "/",
			"clicked_at": "2024-06-15T12:00:00Z",
			"category":   "content",
			"link_id":    "shop",
		}, e.Data)
	})

	t.Run("modal actions", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		data := events.Data{"title": "Works", "type": "gallery"}
		r.TrackModal(ctx, newVisit(), tracking.ModalOpen, data)
		r.TrackModal(ctx, newVisit(), tracking.ModalLinkClick, data)
		r.TrackModal(ctx, newVisit(), tracking.ModalClose, data)
		assert.Equal(t, tracking.Rejected, r.TrackModal(ctx, newVisit(), tracking.ModalAction("resize"), data))
		r.Wait()

		stored := store.Events()
		require.Len(t, stored, 3)
		names := []events.EventName{stored[0].Name, stored[1].Name, stored[2].Name}
		assert.ElementsMatch(t, []events.EventName{events.EventModalOpen, events.EventModalLinkClick, events.EventModalClose}, names)
		for _, e := range stored {
			assert.Equal(t, "Works", e.Data["modal_title"])
			assert.Equal(t, "gallery", e.Data["modal_type"])
			assert.Equal(t, "Works", e.Data["title"])
		}
	})

	t.Run("element click", func(t *testing.T) {
		store := testsupport.NewFakeStore()
		r := newRecorder(store)
		r.TrackClick(ctx, newVisit(), events.ElementClick{ElementType: "button", ElementText: strings.Repeat("a", 150)}, nil)
		r.Wait()

		d := store.Events()[0].Data
		assert.Equal(t, events.EventClick, store.Events()[0].Name)
		assert.Len(t, d["element_text"], 100)
		assert.Nil(t, d["element_id"])
		assert.Equal(t, "/", d["page_path"])
	})
}
