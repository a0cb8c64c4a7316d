package referrers

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Direct is the bucket for visits without a referrer.
const Direct = "direct"

// maxRawSource caps referrers that are not URLs.
const maxRawSource = 30

// Source returns the bucket a page referrer is counted under: the host name
// when the referrer is an absolute URL, the raw value cut to 30 characters
// otherwise, and Direct when it is empty.
func Source(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return Direct
	}
	if u, err := url.Parse(referrer); err == nil && u.Scheme != "" && u.Hostname() != "" {
		return u.Hostname()
	}
	if utf8.RuneCountInString(referrer) > maxRawSource {
		return string([]rune(referrer)[:maxRawSource]) + "..."
	}
	return referrer
}

// Label returns the display name for a source bucket.
func Label(source string) string {
	if source == Direct {
		return "Direct"
	}
	if strings.Contains(source, " ") || strings.HasSuffix(source, "...") {
		return source
	}
	return FriendlyName(source)
}
