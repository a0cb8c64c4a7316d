package events

import "strings"

var internalMarkers = []string{"/admin", "localhost"}

// IsInternal reports whether a stored event came from an admin page or a
// local development host. Such events are hidden from the dashboard even
// when they were recorded.
func IsInternal(e Event) bool {
	for _, marker := range internalMarkers {
		if strings.Contains(e.Path, marker) || strings.Contains(e.URL, marker) {
			return true
		}
	}
	return false
}

// WithoutInternal drops internal events, keeping order.
func WithoutInternal(in []Event) []Event {
	out := make([]Event, 0, len(in))
	for _, e := range in {
		if !IsInternal(e) {
			out = append(out, e)
		}
	}
	return out
}
