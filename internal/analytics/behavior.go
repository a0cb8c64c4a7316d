package analytics

import (
	"math"
	"time"

	"linkhub/internal/visitors"
)

// MinSessionDuration is credited to every session, including single-event
// ones.
const MinSessionDuration = 10 * time.Second

type session struct {
	first, last time.Time
	events      int
}

// sessions groups charted events into heuristic sessions keyed by
// (user agent, screen resolution).
func (d Dataset) sessions() map[string]*session {
	sessions := make(map[string]*session)
	for _, e := range d.all() {
		key := visitors.SessionKey(e.UserAgent, e.ScreenResolution)
		s, ok := sessions[key]
		if !ok {
			sessions[key] = &session{first: e.Timestamp, last: e.Timestamp, events: 1}
			continue
		}
		s.events++
		if e.Timestamp.Before(s.first) {
			s.first = e.Timestamp
		}
		if e.Timestamp.After(s.last) {
			s.last = e.Timestamp
		}
	}
	return sessions
}

func (s *session) duration() time.Duration {
	d := s.last.Sub(s.first)
	if d < MinSessionDuration {
		return MinSessionDuration
	}
	return d
}

// UserBehaviorStats reports average session time in seconds, bounce rate
// (sessions with a single event) and conversion rate (in-modal link
// clicks per modal open), all rounded.
func (d Dataset) UserBehaviorStats() BehaviorStats {
	sessions := d.sessions()

	var stats BehaviorStats
	stats.TotalSessions = len(sessions)

	if len(sessions) > 0 {
		var total time.Duration
		bounces := 0
		for _, s := range sessions {
			total += s.duration()
			if s.events == 1 {
				bounces++
			}
		}
		stats.AvgSessionTime = int(math.Round(total.Seconds() / float64(len(sessions))))
		stats.BounceRate = percentage(bounces, len(sessions))
	}

	modal := d.ModalStats()
	stats.ConversionRate = percentage(modal.LinkClicks, modal.Opens)
	return stats
}
