package analytics

import (
	"time"

	"linkhub/internal/events"
)

// Summary holds the headline counters.
type Summary struct {
	TotalPageViews  int `json:"total_page_views"`
	TotalLinkClicks int `json:"total_link_clicks"`
	TotalModalOpens int `json:"total_modal_opens"`
	TodayPageViews  int `json:"today_page_views"`
}

// Dataset is one fetched slice of the event log, split by kind. Events keep
// the store's newest-first order.
type Dataset struct {
	PageViews   []events.Event `json:"page_views"`
	LinkClicks  []events.Event `json:"link_clicks"`
	ModalEvents []events.Event `json:"modal_events"`
	Summary     Summary        `json:"summary"`
}

// NewDataset drops internal events, partitions the rest and computes the
// summary. "Today" is the UTC date of now.
func NewDataset(all []events.Event, now time.Time) Dataset {
	ds := Dataset{
		PageViews:   []events.Event{},
		LinkClicks:  []events.Event{},
		ModalEvents: []events.Event{},
	}

	for _, e := range events.WithoutInternal(all) {
		switch e.Name.Partition() {
		case events.PartitionPageViews:
			ds.PageViews = append(ds.PageViews, e)
		case events.PartitionLinkClicks:
			ds.LinkClicks = append(ds.LinkClicks, e)
		case events.PartitionModal:
			ds.ModalEvents = append(ds.ModalEvents, e)
		case events.PartitionNone:
		}
	}

	today := now.UTC().Format("2006-01-02")
	ds.Summary.TotalPageViews = len(ds.PageViews)
	ds.Summary.TotalLinkClicks = len(ds.LinkClicks)
	for _, e := range ds.ModalEvents {
		if e.Name == events.EventModalOpen {
			ds.Summary.TotalModalOpens++
		}
	}
	for _, e := range ds.PageViews {
		if e.Timestamp.UTC().Format("2006-01-02") == today {
			ds.Summary.TodayPageViews++
		}
	}
	return ds
}

// Len is the number of charted events.
func (d Dataset) Len() int {
	return len(d.PageViews) + len(d.LinkClicks) + len(d.ModalEvents)
}

// all returns every charted event.
func (d Dataset) all() []events.Event {
	out := make([]events.Event, 0, d.Len())
	out = append(out, d.PageViews...)
	out = append(out, d.LinkClicks...)
	out = append(out, d.ModalEvents...)
	return out
}
