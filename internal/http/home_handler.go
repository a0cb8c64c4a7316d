package http

import (
	"github.com/karloscodes/cartridge"

	"linkhub/internal/links"
)

// HomeResponse is the hub page payload.
type HomeResponse struct {
	Categories []links.Group `json:"categories"`
	Tracking   bool          `json:"tracking"`
	Excluded   bool          `json:"excluded"`
}

// HomeIndexAction returns the visible link categories. Visiting with the
// exclusion query parameter opts the browser out of analytics.
func (h *Handlers) HomeIndexAction(ctx *cartridge.Context) error {
	visit := h.svc.Visit(ctx.Ctx)
	excluded := h.svc.Recorder.IsOwnAccess(ctx.UserContext(), visit)

	groups := h.svc.Links.Grouped()
	if groups == nil {
		groups = []links.Group{}
	}
	return ctx.JSON(HomeResponse{
		Categories: groups,
		Tracking:   h.svc.Recorder.Configured() && !excluded,
		Excluded:   excluded,
	})
}
