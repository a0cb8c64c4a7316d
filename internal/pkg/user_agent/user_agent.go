package user_agent

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device classes reported by the dashboard.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

// Browser and OS labels.
const (
	BrowserChrome  = "Chrome"
	BrowserFirefox = "Firefox"
	BrowserSafari  = "Safari"
	BrowserEdge    = "Edge"
	BrowserOpera   = "Opera"
	OSWindows      = "Windows"
	OSMacOS        = "macOS"
	OSLinux        = "Linux"
	OSAndroid      = "Android"
	OSiOS          = "iOS"
	Other          = "Other"
)

// Viewport widths separating the device classes.
const (
	MobileMaxWidth = 768
	TabletMaxWidth = 1024
)

type UserAgent struct {
	UserAgent string
	OS        string
	Browser   string
	Device    string
	Mobile    bool
	Tablet    bool
	Desktop   bool
	Bot       bool
}

//go:embed database/signatures.yml
var databaseFiles embed.FS

// SignatureEntry is one device signature from the embedded database.
type SignatureEntry struct {
	Name  string `yaml:"name"`
	Regex string `yaml:"regex"`
}

type signatureDatabase struct {
	Tablet []SignatureEntry `yaml:"tablet"`
	Mobile []SignatureEntry `yaml:"mobile"`
	Bots   []SignatureEntry `yaml:"bots"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Global parser instance
var (
	parser *SignatureParser
	once   sync.Once
)

// SignatureParser matches User-Agent strings against the embedded device
// signatures.
type SignatureParser struct {
	db         signatureDatabase
	regexCache *RegexCache
}

func getParser() *SignatureParser {
	once.Do(func() {
		p, err := NewSignatureParser()
		if err != nil {
			panic(fmt.Sprintf("user_agent: failed to load signature database: %v", err))
		}
		parser = p
	})
	return parser
}

// NewSignatureParser loads and validates the embedded signature database.
func NewSignatureParser() (*SignatureParser, error) {
	raw, err := databaseFiles.ReadFile("database/signatures.yml")
	if err != nil {
		return nil, err
	}
	p := &SignatureParser{regexCache: newRegexCache()}
	if err := yaml.Unmarshal(raw, &p.db); err != nil {
		return nil, fmt.Errorf("failed to parse signatures: %w", err)
	}
	for _, group := range [][]SignatureEntry{p.db.Tablet, p.db.Mobile, p.db.Bots} {
		for _, entry := range group {
			if _, err := p.regexCache.get(entry.Regex); err != nil {
				return nil, fmt.Errorf("invalid signature %q: %w", entry.Name, err)
			}
		}
	}
	return p, nil
}

func (p *SignatureParser) matchesAny(entries []SignatureEntry, userAgent string) bool {
	for _, entry := range entries {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		if regex.MatchString(userAgent) {
			return true
		}
	}
	return false
}

// ParseUserAgent classifies a User-Agent string without viewport hints.
func ParseUserAgent(userAgent string) UserAgent {
	return Classify(userAgent, "")
}

// Classify combines User-Agent signatures with the reported viewport
// ("WxH"). A tablet signature wins; otherwise a mobile signature or a width
// below MobileMaxWidth means mobile, and a width below TabletMaxWidth means
// tablet. An unparseable viewport is ignored.
func Classify(userAgent, viewport string) UserAgent {
	p := getParser()
	ua := UserAgent{
		UserAgent: userAgent,
		Browser:   BrowserName(userAgent),
		OS:        OSName(userAgent),
		Bot:       p.matchesAny(p.db.Bots, userAgent),
	}

	width, hasWidth := ViewportWidth(viewport)
	switch {
	case p.matchesAny(p.db.Tablet, userAgent):
		ua.Device = DeviceTablet
	case p.matchesAny(p.db.Mobile, userAgent):
		ua.Device = DeviceMobile
	case hasWidth && width < MobileMaxWidth:
		ua.Device = DeviceMobile
	case hasWidth && width < TabletMaxWidth:
		ua.Device = DeviceTablet
	default:
		ua.Device = DeviceDesktop
	}

	ua.Mobile = ua.Device == DeviceMobile
	ua.Tablet = ua.Device == DeviceTablet
	ua.Desktop = ua.Device == DeviceDesktop
	return ua
}

// BrowserName applies substring rules in priority order. Chromium Edge
// reports "Edg/" rather than "Edge", so it is counted as Chrome.
func BrowserName(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Chrome") && !strings.Contains(userAgent, "Edge"):
		return BrowserChrome
	case strings.Contains(userAgent, "Firefox"):
		return BrowserFirefox
	case strings.Contains(userAgent, "Safari") && !strings.Contains(userAgent, "Chrome"):
		return BrowserSafari
	case strings.Contains(userAgent, "Edge"):
		return BrowserEdge
	case strings.Contains(userAgent, "Opera"):
		return BrowserOpera
	}
	return Other
}

// OSName applies substring rules in priority order. iOS User-Agents carry
// "like Mac OS X" and Android ones carry "Linux", so the desktop labels
// match those first.
func OSName(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return OSWindows
	case strings.Contains(userAgent, "Mac OS"):
		return OSMacOS
	case strings.Contains(userAgent, "Linux"):
		return OSLinux
	case strings.Contains(userAgent, "Android"):
		return OSAndroid
	case strings.Contains(userAgent, "iPhone") || strings.Contains(userAgent, "iPad"):
		return OSiOS
	}
	return Other
}

// ViewportWidth parses the width out of a "WxH" string.
func ViewportWidth(viewport string) (int, bool) {
	w, _, ok := strings.Cut(strings.TrimSpace(viewport), "x")
	if !ok {
		return 0, false
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}
