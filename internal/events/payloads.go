package events

import "unicode/utf8"

// Payload keys shared by the recorder and the dashboard.
const (
	KeyTitle        = "title"
	KeyPagePath     = "page_path"
	KeyPageURL      = "page_url"
	KeyLinkTitle    = "link_title"
	KeyLinkURL      = "link_url"
	KeyCategory     = "category"
	KeyLinkID       = "link_id"
	KeyClickedAt    = "clicked_at"
	KeyModalTitle   = "modal_title"
	KeyModalType    = "modal_type"
	KeyElementType  = "element_type"
	KeyElementText  = "element_text"
	KeyElementID    = "element_id"
	KeyElementClass = "element_class"
)

// maxElementText caps the captured text of a clicked element.
const maxElementText = 100

// PageView is the payload of a page_view event.
type PageView struct {
	Title    string
	PagePath string
	PageURL  string
}

func (p PageView) ToData(extra Data) Data {
	return Data{
		KeyTitle:    p.Title,
		KeyPagePath: p.PagePath,
		KeyPageURL:  p.PageURL,
	}.Merge(extra)
}

// LinkClick is the payload of a link_click event. Category and LinkID are
// optional and only written when set.
type LinkClick struct {
	LinkTitle string
	LinkURL   string
	Category  string
	LinkID    string
	PagePath  string
	ClickedAt string
}

func (l LinkClick) ToData(extra Data) Data {
	d := Data{
		KeyLinkTitle: l.LinkTitle,
		KeyLinkURL:   l.LinkURL,
		KeyPagePath:  l.PagePath,
		KeyClickedAt: l.ClickedAt,
	}
	if l.Category != "" {
		d[KeyCategory] = l.Category
	}
	if l.LinkID != "" {
		d[KeyLinkID] = l.LinkID
	}
	return d.Merge(extra)
}

// ModalEvent is the payload of modal_open, modal_close and modal_link_click.
type ModalEvent struct {
	ModalTitle string
	ModalType  string
}

func (m ModalEvent) ToData(extra Data) Data {
	return Data{
		KeyModalTitle: m.ModalTitle,
		KeyModalType:  m.ModalType,
	}.Merge(extra)
}

// ElementClick is the payload of a generic click event.
type ElementClick struct {
	ElementType  string
	ElementText  string
	ElementID    string
	ElementClass string
	PagePath     string
}

func (c ElementClick) ToData(extra Data) Data {
	d := Data{
		KeyElementType:  c.ElementType,
		KeyElementText:  truncateRunes(c.ElementText, maxElementText),
		KeyElementID:    nullable(c.ElementID),
		KeyElementClass: nullable(c.ElementClass),
		KeyPagePath:     c.PagePath,
	}
	return d.Merge(extra)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
