package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"time"

	"linkhub/internal/events"
	"linkhub/internal/links"
)

// Seeder writes plausible hub traffic into an event store so the
// dashboard has something to show in development.
type Seeder struct {
	Store      events.Store
	Links      *links.Catalogue
	Logger     *slog.Logger
	EventCount int
	BaseURL    string
	Days       int

	rand *rand.Rand
	now  func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(store events.Store, catalogue *links.Catalogue, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		Store:      store,
		Links:      catalogue,
		Logger:     logger,
		EventCount: eventCount,
		BaseURL:    "https://hub.example.com",
		Days:       30,
		rand:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:        time.Now,
	}
}

// WithSeed makes the generated traffic reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rand = rand.New(rand.NewPCG(seed, seed))
	return s
}

type visitor struct {
	userAgent  string
	referrer   string
	language   string
	screen     string
	viewport   string
	landingURL string
}

// Run generates visits until roughly EventCount events were written and
// returns the number actually stored.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	if s.Store == nil {
		return 0, events.ErrStoreNotConfigured
	}
	groups := s.Links.Grouped()
	if len(groups) == 0 {
		return 0, fmt.Errorf("catalogue has no visible links")
	}

	start := time.Now()
	s.Logger.Info("Starting event seeding...", slog.Int("eventCount", s.EventCount))

	written := 0
	for written < s.EventCount {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		n, err := s.visit(ctx, groups)
		written += n
		if err != nil {
			return written, err
		}
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("events", written),
		slog.Duration("elapsed", time.Since(start)))
	return written, nil
}

// visit writes one page view followed by whatever the visitor clicked.
func (s *Seeder) visit(ctx context.Context, groups []links.Group) (int, error) {
	v := s.newVisitor()
	at := s.now().UTC().Add(-time.Duration(s.rand.IntN(s.Days*24*60*60)) * time.Second)

	batch := []*events.Event{s.event(v, events.EventPageView, at, events.PageView{
		Title:    "Links",
		PagePath: "/",
		PageURL:  v.landingURL,
	}.ToData(nil))}

	// Most visitors click through to at least one link.
	clicks := 0
	if s.rand.Float64() < 0.7 {
		clicks = 1 + s.rand.IntN(2)
	}
	for i := 0; i < clicks; i++ {
		at = at.Add(time.Duration(s.rand.IntN(50)+5) * time.Second)
		group := groups[s.rand.IntN(len(groups))]
		link := group.Links[s.rand.IntN(len(group.Links))]
		if link.HasModal() {
			batch = append(batch, s.modalClicks(v, link, at)...)
			continue
		}
		batch = append(batch, s.event(v, events.EventLinkClick, at, events.LinkClick{
			LinkTitle: link.Title,
			LinkURL:   link.URL,
			PagePath:  "/",
			ClickedAt: at.Format(time.RFC3339Nano),
		}.ToData(events.Data{events.KeyCategory: link.Category, events.KeyLinkID: link.ID})))
	}

	for i, e := range batch {
		if err := s.Store.Insert(ctx, e); err != nil {
			return i, fmt.Errorf("failed to insert seeded event: %w", err)
		}
	}
	return len(batch), nil
}

// modalClicks opens the link's modal and either follows a destination or
// closes it again.
func (s *Seeder) modalClicks(v visitor, link links.Link, at time.Time) []*events.Event {
	modal := events.ModalEvent{ModalTitle: link.Title, ModalType: "links"}
	out := []*events.Event{s.event(v, events.EventModalOpen, at, modal.ToData(nil))}

	at = at.Add(time.Duration(s.rand.IntN(20)+2) * time.Second)
	if s.rand.Float64() < 0.25 {
		return append(out, s.event(v, events.EventModalClose, at, modal.ToData(nil)))
	}
	target := link.Targets[s.rand.IntN(len(link.Targets))]
	return append(out, s.event(v, events.EventModalLinkClick, at, modal.ToData(events.Data{
		events.KeyLinkTitle: target.Name,
		events.KeyLinkURL:   target.URL,
		events.KeyLinkID:    link.ID,
	})))
}

func (s *Seeder) event(v visitor, name events.EventName, at time.Time, data events.Data) *events.Event {
	e := &events.Event{
		Name:             name,
		Data:             data,
		Timestamp:        at,
		URL:              v.landingURL,
		Path:             "/",
		UserAgent:        v.userAgent,
		ScreenResolution: v.screen,
		ViewportSize:     v.viewport,
		Language:         v.language,
	}
	if v.referrer != "" {
		ref := v.referrer
		e.Referrer = &ref
	}
	return e
}

func (s *Seeder) newVisitor() visitor {
	devices := getDevices()
	d := devices[s.rand.IntN(len(devices))]
	referrers := getReferrers()
	languages := []string{"ja-JP", "ja-JP", "ja-JP", "en-US", "zh-CN", "ko-KR", "zh-TW"}
	return visitor{
		userAgent:  d.userAgent,
		screen:     d.screen,
		viewport:   d.viewport,
		referrer:   referrers[s.rand.IntN(len(referrers))],
		language:   languages[s.rand.IntN(len(languages))],
		landingURL: s.addUTMParams(s.BaseURL + "/"),
	}
}

type device struct {
	userAgent string
	screen    string
	viewport  string
}

// getDevices returns common browsers with a matching screen size
func getDevices() []device {
	return []device{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", "390x844", "390x664"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1", "430x932", "430x740"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36", "412x915", "412x780"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36", "1920x1080", "1903x947"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15", "1512x982", "1512x865"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0", "2560x1440", "2543x1301"},
		{"Mozilla/5.0 (iPad; CPU OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1", "820x1180", "820x1030"},
	}
}

// getReferrers returns where hub visitors usually come from
func getReferrers() []string {
	return []string{
		"", // Direct visit
		"",
		"https://t.co/",
		"https://x.com/",
		"https://www.pixiv.net/",
		"https://www.google.com/",
		"https://www.dlsite.com/",
		"https://ci-en.net/",
		"https://www.instagram.com/",
	}
}

// addUTMParams tags some landing URLs with campaign parameters
func (s *Seeder) addUTMParams(raw string) string {
	if s.rand.IntN(10) < 8 {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	params := u.Query()
	sources := []string{"x", "pixiv", "newsletter", "booth"}
	mediums := []string{"social", "email", "profile"}
	params.Set("utm_source", sources[s.rand.IntN(len(sources))])
	params.Set("utm_medium", mediums[s.rand.IntN(len(mediums))])
	u.RawQuery = params.Encode()
	return u.String()
}
