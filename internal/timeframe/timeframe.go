package timeframe

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Preset is a named date range relative to the current day.
type Preset string

const (
	PresetToday      Preset = "today"
	PresetYesterday  Preset = "yesterday"
	PresetLast7Days  Preset = "last7days"
	PresetLast30Days Preset = "last30days"
	PresetAll        Preset = "all"
)

// ErrUnknownPreset is returned for names outside the preset list.
var ErrUnknownPreset = errors.New("unknown date preset")

// Presets lists the supported presets in display order.
var Presets = []Preset{PresetToday, PresetYesterday, PresetLast7Days, PresetLast30Days, PresetAll}

// ParsePreset accepts the canonical names plus the snake_case spellings
// used by older links (last_7_days, last_30_days, all_time).
func ParsePreset(raw string) (Preset, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "today":
		return PresetToday, nil
	case "yesterday":
		return PresetYesterday, nil
	case "last7days", "last_7_days":
		return PresetLast7Days, nil
	case "last30days", "last_30_days":
		return PresetLast30Days, nil
	case "all", "all_time":
		return PresetAll, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPreset, raw)
}

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider reads the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// FixedTimeProvider always returns the same instant. Useful in tests and
// for replaying a dashboard at a point in time.
type FixedTimeProvider struct {
	At time.Time
}

func (p *FixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.At.In(loc)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Resolve turns a preset into concrete bounds relative to now. Bounds are
// midnight-aligned in now's location; PresetAll yields two nil bounds.
func Resolve(preset Preset, now time.Time) (start, end *time.Time, err error) {
	midnight := StartOfDay(now)
	var from, to time.Time

	switch preset {
	case PresetToday:
		from, to = midnight, now
	case PresetYesterday:
		from = midnight.AddDate(0, 0, -1)
		to = EndOfDay(from)
	case PresetLast7Days:
		from, to = midnight.AddDate(0, 0, -7), now
	case PresetLast30Days:
		from, to = midnight.AddDate(0, 0, -30), now
	case PresetAll:
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownPreset, preset)
	}
	return &from, &to, nil
}

// ParseDate parses a YYYY-MM-DD date at midnight in loc. Empty input
// yields nil.
func ParseDate(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", value)
	}
	t = t.In(loc)
	return &t, nil
}

// ParseRange parses a pair of optional dates and rejects inverted bounds.
func ParseRange(from, to string, loc *time.Location) (start, end *time.Time, err error) {
	start, err = ParseDate(from, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid 'from' date: %w", err)
	}
	end, err = ParseDate(to, loc)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid 'to' date: %w", err)
	}
	if start != nil && end != nil && start.After(EndOfDay(*end)) {
		return nil, nil, fmt.Errorf("fromTime must be before toTime")
	}
	return start, end, nil
}

// LastNDays returns the UTC calendar dates (YYYY-MM-DD) of the n days
// ending on now's UTC date, oldest first.
func LastNDays(now time.Time, n int) []string {
	today := StartOfDay(now.UTC())
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, today.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	return days
}
