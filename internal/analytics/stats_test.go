package analytics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/internal/analytics"
	"linkhub/internal/events"
)

const (
	uaIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaIPad    = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	uaFirefox = "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func event(name events.EventName, ts time.Time, mutate ...func(*events.Event)) events.Event {
	e := events.Event{
		Name:             name,
		Timestamp:        ts,
		URL:              "https://links.example.com/",
		Path:             "/",
		UserAgent:        uaWindows,
		ScreenResolution: "1920x1080",
		ViewportSize:     "1920x960",
		Language:         "ja-JP",
		Data:             events.Data{},
	}
	for _, m := range mutate {
		m(&e)
	}
	return e
}

func linkClick(title string) events.Event {
	return event(events.EventLinkClick, now, func(e *events.Event) {
		if title != "" {
			e.Data = events.Data{"link_title": title}
		}
	})
}

func withUA(ua, screen, viewport string) func(*events.Event) {
	return func(e *events.Event) {
		e.UserAgent = ua
		e.ScreenResolution = screen
		e.ViewportSize = viewport
	}
}

func withReferrer(ref string) func(*events.Event) {
	return func(e *events.Event) {
		e.Referrer = &ref
	}
}

func TestPopularLinks(t *testing.T) {
	t.Run("ranks by count", func(t *testing.T) {
		ds := analytics.NewDataset([]events.Event{linkClick("A"), linkClick("A"), linkClick("B")}, now)
		assert.Equal(t, []analytics.LinkCount{{Title: "A", Count: 2}, {Title: "B", Count: 1}}, ds.PopularLinks())
	})

	t.Run("missing title falls back to unknown", func(t *testing.T) {
		ds := analytics.NewDataset([]events.Event{linkClick("")}, now)
		assert.Equal(t, []analytics.LinkCount{{Title: "unknown", Count: 1}}, ds.PopularLinks())
	})

	t.Run("caps at ten and stays sorted", func(t *testing.T) {
		var all []events.Event
		for i := 0; i < 15; i++ {
			title := string(rune('a' + i))
			for j := 0; j <= i; j++ {
				all = append(all, linkClick(title))
			}
		}
		ds := analytics.NewDataset(all, now)
		links := ds.PopularLinks()
		require.Len(t, links, 10)

		sum := 0
		for i, l := range links {
			sum += l.Count
			if i > 0 {
				assert.LessOrEqual(t, l.Count, links[i-1].Count)
			}
		}
		assert.LessOrEqual(t, sum, len(ds.LinkClicks))
		assert.Equal(t, "o", links[0].Title)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, analytics.NewDataset(nil, now).PopularLinks())
	})
}

func TestHourlyStats(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, time.Date(2024, 6, 15, 0, 30, 0, 0, time.UTC)),
		event(events.EventPageView, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)),
		event(events.EventPageView, time.Date(2024, 6, 14, 9, 59, 0, 0, time.UTC)),
		event(events.EventLinkClick, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)),
	}
	ds := analytics.NewDataset(all, now)

	t.Run("24 ordered buckets summing to page views", func(t *testing.T) {
		hours := ds.HourlyStats(time.UTC)
		require.Len(t, hours, 24)
		sum := 0
		for i, h := range hours {
			assert.Equal(t, i, h.Hour)
			sum += h.Views
		}
		assert.Equal(t, len(ds.PageViews), sum)
		assert.Equal(t, 1, hours[0].Views)
		assert.Equal(t, 2, hours[9].Views)
	})

	t.Run("uses the dashboard timezone", func(t *testing.T) {
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)
		hours := ds.HourlyStats(tokyo)
		assert.Equal(t, 1, hours[9].Views)
		assert.Equal(t, 2, hours[18].Views)
	})

	t.Run("empty dataset still has 24 buckets", func(t *testing.T) {
		assert.Len(t, analytics.NewDataset(nil, now).HourlyStats(time.UTC), 24)
	})
}

func TestDailyStats(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, now),
		event(events.EventPageView, now.Add(-time.Hour)),
		event(events.EventPageView, now.AddDate(0, 0, -6)),
		event(events.EventPageView, now.AddDate(0, 0, -7)),
		event(events.EventPageView, now.AddDate(0, 0, -40)),
	}
	days := analytics.NewDataset(all, now).DailyStats(now)

	require.Len(t, days, 7)
	assert.Equal(t, "2024-06-09", days[0].Date)
	assert.Equal(t, 1, days[0].Views)
	assert.Equal(t, "2024-06-15", days[6].Date)
	assert.Equal(t, 2, days[6].Views)
	for _, d := range days[1:6] {
		assert.Zero(t, d.Views, d.Date)
	}

	assert.Len(t, analytics.NewDataset(nil, now).DailyStats(now), 7)
}

func TestReferrerStats(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, now, withReferrer("https://www.google.com/search?q=x")),
		event(events.EventPageView, now, withReferrer("https://www.google.com/")),
		event(events.EventPageView, now),
		event(events.EventPageView, now, withReferrer("")),
		event(events.EventPageView, now, withReferrer("https://t.co/abc")),
	}
	stats := analytics.NewDataset(all, now).ReferrerStats()

	require.Len(t, stats, 3)
	assert.Equal(t, "www.google.com", stats[0].Source)
	assert.Equal(t, "Google", stats[0].Label)
	assert.Equal(t, 2, stats[0].Count)
	assert.Equal(t, "direct", stats[1].Source)
	assert.Equal(t, 2, stats[1].Count)
	assert.Equal(t, "t.co", stats[2].Source)
}

func TestModalStats(t *testing.T) {
	all := []events.Event{
		event(events.EventModalOpen, now),
		event(events.EventModalOpen, now),
		event(events.EventModalClose, now),
		event(events.EventModalLinkClick, now),
	}
	assert.Equal(t, analytics.ModalStats{Opens: 2, Closes: 1, LinkClicks: 1}, analytics.NewDataset(all, now).ModalStats())
}

func TestDeviceStats(t *testing.T) {
	t.Run("percentages add up", func(t *testing.T) {
		all := []events.Event{
			event(events.EventPageView, now, withUA(uaIPhone, "390x844", "390x664")),
			event(events.EventPageView, now, withUA(uaIPhone, "390x844", "390x664")),
			event(events.EventPageView, now, withUA(uaIPad, "1024x1366", "1024x1280")),
			event(events.EventPageView, now),
			event(events.EventPageView, now),
			event(events.EventPageView, now, withUA(uaWindows, "1920x1080", "700x900")),
		}
		s := analytics.NewDataset(all, now).DeviceStats()

		assert.Equal(t, 6, s.Total)
		assert.Equal(t, 3, s.Mobile.Count)
		assert.Equal(t, 1, s.Tablet.Count)
		assert.Equal(t, 2, s.Desktop.Count)
		assert.Equal(t, 50, s.Mobile.Percentage)
		total := s.Mobile.Percentage + s.Tablet.Percentage + s.Desktop.Percentage
		assert.InDelta(t, 100, total, 1)
	})

	t.Run("zero when empty", func(t *testing.T) {
		s := analytics.NewDataset(nil, now).DeviceStats()
		assert.Zero(t, s.Mobile.Percentage+s.Tablet.Percentage+s.Desktop.Percentage)
	})
}

func TestBrowserAndOSStats(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, now),
		event(events.EventPageView, now),
		event(events.EventPageView, now, withUA(uaIPhone, "390x844", "390x664")),
		event(events.EventPageView, now, withUA(uaFirefox, "2560x1440", "2560x1300")),
		event(events.EventPageView, now, withUA("curl/8.0", "", "")),
	}
	ds := analytics.NewDataset(all, now)

	browsers := ds.BrowserStats()
	require.Len(t, browsers, 4)
	assert.Equal(t, analytics.NamedCount{Name: "Chrome", Count: 2}, browsers[0])

	oss := ds.OSStats()
	require.Len(t, oss, 4)
	assert.Equal(t, analytics.NamedCount{Name: "Windows", Count: 2}, oss[0])
	names := []string{oss[1].Name, oss[2].Name, oss[3].Name}
	assert.ElementsMatch(t, []string{"macOS", "Linux", "Other"}, names)
}

func TestUserBehaviorStats(t *testing.T) {
	t.Run("sessions by client signature", func(t *testing.T) {
		phone := withUA(uaIPhone, "390x844", "390x664")
		all := []events.Event{
			// desktop session: 0s -> 90s, three events
			event(events.EventPageView, now),
			event(events.EventLinkClick, now.Add(30*time.Second)),
			event(events.EventModalOpen, now.Add(90*time.Second)),
			// phone session: single event, floored to 10s
			event(events.EventPageView, now, phone),
		}
		stats := analytics.NewDataset(all, now).UserBehaviorStats()

		assert.Equal(t, 2, stats.TotalSessions)
		assert.Equal(t, 50, stats.AvgSessionTime)
		assert.Equal(t, 50, stats.BounceRate)
		assert.Equal(t, 0, stats.ConversionRate)
	})

	t.Run("conversion rate is zero without opens", func(t *testing.T) {
		all := []events.Event{event(events.EventModalLinkClick, now)}
		assert.Equal(t, 0, analytics.NewDataset(all, now).UserBehaviorStats().ConversionRate)
	})

	t.Run("conversion rate rounds", func(t *testing.T) {
		all := []events.Event{
			event(events.EventModalOpen, now),
			event(events.EventModalOpen, now),
			event(events.EventModalOpen, now),
			event(events.EventModalLinkClick, now),
			event(events.EventModalLinkClick, now),
		}
		assert.Equal(t, 67, analytics.NewDataset(all, now).UserBehaviorStats().ConversionRate)
	})

	t.Run("empty dataset", func(t *testing.T) {
		assert.Equal(t, analytics.BehaviorStats{}, analytics.NewDataset(nil, now).UserBehaviorStats())
	})
}

func TestLanguageStats(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, now),
		event(events.EventPageView, now, func(e *events.Event) { e.Language = "ja" }),
		event(events.EventPageView, now, func(e *events.Event) { e.Language = "en-US" }),
		event(events.EventPageView, now, func(e *events.Event) { e.Language = "not a tag!" }),
	}
	langs := analytics.NewDataset(all, now).LanguageStats()

	require.Len(t, langs, 3)
	assert.Equal(t, "ja", langs[0].Code)
	assert.Equal(t, "Japanese", langs[0].Name)
	assert.Equal(t, 2, langs[0].Count)
	assert.Equal(t, "en", langs[1].Code)
	assert.Equal(t, "English", langs[1].Name)
	assert.Equal(t, "und", langs[2].Code)
}

func TestCategoryStats(t *testing.T) {
	all := []events.Event{
		event(events.EventLinkClick, now, func(e *events.Event) { e.Data = events.Data{"category": "content"} }),
		event(events.EventLinkClick, now, func(e *events.Event) { e.Data = events.Data{"category": "content"} }),
		event(events.EventLinkClick, now),
	}
	stats := analytics.NewDataset(all, now).CategoryStats()
	assert.Equal(t, []analytics.NamedCount{{Name: "content", Count: 2}, {Name: "uncategorized", Count: 1}}, stats)
}

func TestRecentActivity(t *testing.T) {
	var all []events.Event
	for i := 0; i < 25; i++ {
		all = append(all, event(events.EventPageView, now.Add(-time.Duration(i)*time.Minute), func(e *events.Event) {
			e.Data = events.Data{"title": "Home"}
		}))
	}
	ds := analytics.NewDataset(all, now)

	recent := ds.RecentActivity(20)
	require.Len(t, recent, 20)
	assert.Equal(t, "2024-06-15T12:00:00Z", recent[0].Timestamp)
	assert.Equal(t, "Home", recent[0].Title)
	assert.Equal(t, "Direct", recent[0].Source)
	assert.Equal(t, "Desktop", recent[0].Device)
	assert.NotEmpty(t, recent[0].Visitor)

	assert.Len(t, ds.RecentActivity(100), 25)
}

func TestNewDataset(t *testing.T) {
	all := []events.Event{
		event(events.EventPageView, now),
		event(events.EventPageView, now.AddDate(0, 0, -1)),
		event(events.EventPageView, now, func(e *events.Event) { e.Path = "/admin" }),
		event(events.EventLinkClick, now, func(e *events.Event) { e.URL = "http://localhost:3000/" }),
		event(events.EventLinkClick, now),
		event(events.EventModalOpen, now),
		event(events.EventModalClose, now),
		event(events.EventClick, now),
	}
	ds := analytics.NewDataset(all, now)

	assert.Len(t, ds.PageViews, 2)
	assert.Len(t, ds.LinkClicks, 1)
	assert.Len(t, ds.ModalEvents, 2)
	assert.Equal(t, analytics.Summary{
		TotalPageViews:  2,
		TotalLinkClicks: 1,
		TotalModalOpens: 1,
		TodayPageViews:  1,
	}, ds.Summary)
}
