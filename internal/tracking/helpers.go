package tracking

import (
	"context"
	"time"

	"linkhub/internal/events"
)

// ModalAction is the suffix of a modal event name.
type ModalAction string

const (
	ModalOpen      ModalAction = "open"
	ModalClose     ModalAction = "close"
	ModalLinkClick ModalAction = "link_click"
)

// TrackPageView records a page_view for the visit.
func (r *Recorder) TrackPageView(ctx context.Context, v *Visit, extra events.Data) Outcome {
	payload := events.PageView{
		Title:    v.Title,
		PagePath: v.Path,
		PageURL:  v.URL,
	}
	return r.TrackEvent(ctx, v, events.EventPageView, payload.ToData(extra))
}

// TrackLinkClick records a click on an outbound link.
func (r *Recorder) TrackLinkClick(ctx context.Context, v *Visit, title, target string, extra events.Data) Outcome {
	payload := events.LinkClick{
		LinkTitle: title,
		LinkURL:   target,
		PagePath:  v.Path,
		ClickedAt: r.clock().UTC().Format(time.RFC3339Nano),
	}
	return r.TrackEvent(ctx, v, events.EventLinkClick, payload.ToData(extra))
}

// TrackModal records modal_<action>. The "title" and "type" entries of data
// fill modal_title and modal_type; data is kept as well.
func (r *Recorder) TrackModal(ctx context.Context, v *Visit, action ModalAction, data events.Data) Outcome {
	payload := events.ModalEvent{
		ModalTitle: data.String("title", ""),
		ModalType:  data.String("type", ""),
	}
	return r.TrackEvent(ctx, v, events.EventName("modal_"+string(action)), payload.ToData(data))
}

// TrackClick records a generic element click.
func (r *Recorder) TrackClick(ctx context.Context, v *Visit, element events.ElementClick, extra events.Data) Outcome {
	if element.PagePath == "" {
		element.PagePath = v.Path
	}
	return r.TrackEvent(ctx, v, events.EventClick, element.ToData(extra))
}
