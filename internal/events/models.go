package events

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventName is the kind of a recorded interaction. The set is closed;
// ParseEventName rejects anything outside it.
type EventName string

const (
	EventPageView       EventName = "page_view"
	EventLinkClick      EventName = "link_click"
	EventModalOpen      EventName = "modal_open"
	EventModalClose     EventName = "modal_close"
	EventModalLinkClick EventName = "modal_link_click"
	EventClick          EventName = "click"
)

// ErrUnknownEvent is returned for event names outside the known set.
var ErrUnknownEvent = errors.New("unknown event name")

// ParseEventName validates a raw event name.
func ParseEventName(raw string) (EventName, error) {
	name := EventName(raw)
	switch name {
	case EventPageView, EventLinkClick, EventModalOpen, EventModalClose, EventModalLinkClick, EventClick:
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, raw)
}

// Partition groups event kinds the way the dashboard reads them.
type Partition int

const (
	PartitionNone Partition = iota
	PartitionPageViews
	PartitionLinkClicks
	PartitionModal
)

// Partition returns the dashboard partition an event kind belongs to.
// Generic element clicks are stored but not charted.
func (n EventName) Partition() Partition {
	switch n {
	case EventPageView:
		return PartitionPageViews
	case EventLinkClick:
		return PartitionLinkClicks
	case EventModalOpen, EventModalClose, EventModalLinkClick:
		return PartitionModal
	case EventClick:
		return PartitionNone
	}
	return PartitionNone
}

// Data is the free-form payload of an event, stored as JSON text.
type Data map[string]any

// Scan implements sql.Scanner.
func (d *Data) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal event data: unsupported type %T", value)
	}
	if len(raw) == 0 {
		*d = nil
		return nil
	}
	out := Data{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to unmarshal event data: %w", err)
	}
	*d = out
	return nil
}

// Value implements driver.Valuer.
func (d Data) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// String returns the value under key as a string, or def when it is
// missing, null or empty.
func (d Data) String(key, def string) string {
	v, ok := d[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if s == "" {
		return def
	}
	return s
}

// Merge returns a copy of d with extra applied on top.
func (d Data) Merge(extra Data) Data {
	out := make(Data, len(d)+len(extra))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// Event is one immutable record in the analytics log.
type Event struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id,omitempty"`
	Name             EventName `gorm:"column:event_name;index;not null" json:"event_name"`
	Data             Data      `gorm:"column:event_data;type:text" json:"event_data"`
	Timestamp        time.Time `gorm:"column:timestamp;index;not null" json:"timestamp"`
	URL              string    `gorm:"column:url" json:"url"`
	Path             string    `gorm:"column:path" json:"path"`
	Referrer         *string   `gorm:"column:referrer" json:"referrer"`
	UserAgent        string    `gorm:"column:user_agent" json:"user_agent"`
	ScreenResolution string    `gorm:"column:screen_resolution" json:"screen_resolution"`
	ViewportSize     string    `gorm:"column:viewport_size" json:"viewport_size"`
	Language         string    `gorm:"column:language" json:"language"`
}

// TableName pins the table name shared by every backend.
func (Event) TableName() string {
	return TableName
}

// TableName of the append-only event log.
const TableName = "analytics"

// ReferrerValue returns the referrer or "" when it was not captured.
func (e Event) ReferrerValue() string {
	if e.Referrer == nil {
		return ""
	}
	return *e.Referrer
}

// Columns lists the writable columns in insert order, for backends that
// build SQL by hand.
var Columns = []string{
	"event_name", "event_data", "timestamp", "url", "path", "referrer",
	"user_agent", "screen_resolution", "viewport_size", "language",
}
