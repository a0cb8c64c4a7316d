package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"linkhub/internal/events"
	"linkhub/internal/pkg/referrers"
	ua "linkhub/internal/pkg/user_agent"
	"linkhub/internal/timeframe"
	"linkhub/internal/visitors"
)

// counter counts keys and remembers the order they were first seen in, so
// ties keep the newest-first order of the dataset.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// ranked returns keys sorted by count, descending. limit <= 0 keeps all.
func (c *counter) ranked(limit int) []NamedCount {
	out := make([]NamedCount, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, NamedCount{Name: key, Count: c.counts[key]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// PopularLinks ranks link clicks by link title, top 10.
func (d Dataset) PopularLinks() []LinkCount {
	c := newCounter()
	for _, e := range d.LinkClicks {
		c.add(e.Data.String(events.KeyLinkTitle, DefaultLinkTitle))
	}
	ranked := c.ranked(TopN)
	out := make([]LinkCount, len(ranked))
	for i, r := range ranked {
		out[i] = LinkCount{Title: r.Name, Count: r.Count}
	}
	return out
}

// HourlyStats buckets page views by hour of day in loc. All 24 hours are
// returned in order.
func (d Dataset) HourlyStats(loc *time.Location) []HourStat {
	if loc == nil {
		loc = time.Local
	}
	var buckets [24]int
	for _, e := range d.PageViews {
		buckets[e.Timestamp.In(loc).Hour()]++
	}
	out := make([]HourStat, 24)
	for h := range buckets {
		out[h] = HourStat{Hour: h, Views: buckets[h]}
	}
	return out
}

// DailyStats buckets page views by UTC date over the seven days ending on
// now's UTC date, oldest first. It ignores the active date range.
func (d Dataset) DailyStats(now time.Time) []DayStat {
	byDate := make(map[string]int)
	for _, e := range d.PageViews {
		byDate[e.Timestamp.UTC().Format("2006-01-02")]++
	}
	days := timeframe.LastNDays(now, 7)
	out := make([]DayStat, len(days))
	for i, day := range days {
		out[i] = DayStat{Date: day, Views: byDate[day]}
	}
	return out
}

// ReferrerStats ranks page view referrers by source, top 10.
func (d Dataset) ReferrerStats() []SourceCount {
	c := newCounter()
	for _, e := range d.PageViews {
		c.add(referrers.Source(e.ReferrerValue()))
	}
	ranked := c.ranked(TopN)
	out := make([]SourceCount, len(ranked))
	for i, r := range ranked {
		out[i] = SourceCount{Source: r.Name, Label: referrers.Label(r.Name), Count: r.Count}
	}
	return out
}

// ModalStats counts modal opens, closes and in-modal link clicks.
func (d Dataset) ModalStats() ModalStats {
	var s ModalStats
	for _, e := range d.ModalEvents {
		switch e.Name {
		case events.EventModalOpen:
			s.Opens++
		case events.EventModalClose:
			s.Closes++
		case events.EventModalLinkClick:
			s.LinkClicks++
		}
	}
	return s
}

// DeviceStats classifies page views by device using the User-Agent and the
// reported viewport width.
func (d Dataset) DeviceStats() DeviceStats {
	var s DeviceStats
	for _, e := range d.PageViews {
		switch ua.Classify(e.UserAgent, e.ViewportSize).Device {
		case ua.DeviceMobile:
			s.Mobile.Count++
		case ua.DeviceTablet:
			s.Tablet.Count++
		default:
			s.Desktop.Count++
		}
	}
	s.Total = len(d.PageViews)
	s.Mobile.Percentage = percentage(s.Mobile.Count, s.Total)
	s.Desktop.Percentage = percentage(s.Desktop.Count, s.Total)
	s.Tablet.Percentage = percentage(s.Tablet.Count, s.Total)
	return s
}

// BrowserStats ranks page views by browser family.
func (d Dataset) BrowserStats() []NamedCount {
	c := newCounter()
	for _, e := range d.PageViews {
		c.add(ua.BrowserName(e.UserAgent))
	}
	return c.ranked(0)
}

// OSStats ranks page views by operating system.
func (d Dataset) OSStats() []NamedCount {
	c := newCounter()
	for _, e := range d.PageViews {
		c.add(ua.OSName(e.UserAgent))
	}
	return c.ranked(0)
}

// LanguageStats groups page views by base language ("ja-JP" and "ja" are
// both "ja"). Unparseable tags are counted as "und".
func (d Dataset) LanguageStats() []LanguageCount {
	c := newCounter()
	for _, e := range d.PageViews {
		c.add(baseLanguage(e.Language))
	}
	ranked := c.ranked(TopN)
	namer := display.English.Languages()
	out := make([]LanguageCount, len(ranked))
	for i, r := range ranked {
		name := "Unknown"
		if r.Name != "und" {
			if n := namer.Name(language.Make(r.Name)); n != "" {
				name = n
			}
		}
		out[i] = LanguageCount{Code: r.Name, Name: name, Count: r.Count}
	}
	return out
}

func baseLanguage(tag string) string {
	t, err := language.Parse(strings.TrimSpace(tag))
	if err != nil {
		return "und"
	}
	base, conf := t.Base()
	if conf == language.No {
		return "und"
	}
	return base.String()
}

// CategoryStats counts link clicks per catalogue category.
func (d Dataset) CategoryStats() []NamedCount {
	c := newCounter()
	for _, e := range d.LinkClicks {
		c.add(e.Data.String(events.KeyCategory, "uncategorized"))
	}
	return c.ranked(0)
}

// RecentActivity returns up to n of the newest page views.
func (d Dataset) RecentActivity(n int) []Activity {
	if n > len(d.PageViews) {
		n = len(d.PageViews)
	}
	titler := cases.Title(language.Und)
	out := make([]Activity, 0, n)
	for _, e := range d.PageViews[:n] {
		out = append(out, Activity{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Path:      e.Path,
			Title:     e.Data.String(events.KeyTitle, ""),
			Source:    referrers.Label(referrers.Source(e.ReferrerValue())),
			Device:    titler.String(ua.Classify(e.UserAgent, e.ViewportSize).Device),
			Visitor:   visitors.Alias(visitors.SessionKey(e.UserAgent, e.ScreenResolution)),
		})
	}
	return out
}
