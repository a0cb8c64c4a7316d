// Package analytics turns the raw event log into dashboard statistics.
//
// The package is organized into focused modules:
//   - dataset.go: fetched event slice, partitions and summary
//   - stats.go: rankings and histograms derived from a Dataset
//   - behavior.go: heuristic session metrics
//   - aggregator.go: fetch state, date range and error handling
//   - refresher.go: periodic re-fetch
//
// Every derived view is a pure function of a Dataset and is recomputed on
// each request.
package analytics

// DefaultLinkTitle labels link clicks recorded without a title.
const DefaultLinkTitle = "unknown"

// TopN is the length of ranked lists.
const TopN = 10

// LinkCount is one row of the popular links ranking.
type LinkCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// HourStat counts page views in one hour of the day.
type HourStat struct {
	Hour  int `json:"hour"`
	Views int `json:"views"`
}

// DayStat counts page views on one calendar date (YYYY-MM-DD).
type DayStat struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// SourceCount is one referrer bucket.
type SourceCount struct {
	Source string `json:"source"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// NamedCount is a generic label and count pair.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ModalStats counts modal interactions.
type ModalStats struct {
	Opens      int `json:"opens"`
	Closes     int `json:"closes"`
	LinkClicks int `json:"link_clicks"`
}

// DeviceShare is a device class count with its rounded share of the total.
type DeviceShare struct {
	Count      int `json:"count"`
	Percentage int `json:"percentage"`
}

// DeviceStats splits page views by device class.
type DeviceStats struct {
	Mobile  DeviceShare `json:"mobile"`
	Desktop DeviceShare `json:"desktop"`
	Tablet  DeviceShare `json:"tablet"`
	Total   int         `json:"total"`
}

// BehaviorStats summarizes heuristic sessions.
type BehaviorStats struct {
	AvgSessionTime int `json:"avg_session_time"`
	BounceRate     int `json:"bounce_rate"`
	ConversionRate int `json:"conversion_rate"`
	TotalSessions  int `json:"total_sessions"`
}

// LanguageCount groups page views by base language.
type LanguageCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Activity is one row of the recent page view feed.
type Activity struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Device    string `json:"device"`
	Visitor   string `json:"visitor"`
}
