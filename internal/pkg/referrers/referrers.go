package referrers

import "strings"

// knownHosts maps the hosts hub visitors arrive from to display names. A
// host also matches any of its subdomains.
var knownHosts = map[string]string{
	// where the hub is linked from
	"x.com":         "X/Twitter",
	"twitter.com":   "X/Twitter",
	"t.co":          "X/Twitter",
	"bsky.app":      "Bluesky",
	"misskey.io":    "Misskey",
	"instagram.com": "Instagram",
	"threads.net":   "Threads",
	"facebook.com":  "Facebook",
	"youtube.com":   "YouTube",
	"youtu.be":      "YouTube",
	"tiktok.com":    "TikTok",
	"discord.com":   "Discord",
	"line.me":       "LINE",

	// creator platforms
	"pixiv.net":        "pixiv",
	"fanbox.cc":        "pixivFANBOX",
	"booth.pm":         "BOOTH",
	"note.com":         "note",
	"ci-en.net":        "Ci-en",
	"ci-en.dlsite.com": "Ci-en",
	"dlsite.com":       "DLsite",
	"fantia.jp":        "Fantia",
	"patreon.com":      "Patreon",
	"skeb.jp":          "Skeb",
	"linktr.ee":        "Linktree",
	"lit.link":         "lit.link",

	// search
	"google.com":         "Google",
	"google.co.jp":       "Google",
	"bing.com":           "Bing",
	"duckduckgo.com":     "DuckDuckGo",
	"yahoo.co.jp":        "Yahoo! JAPAN",
	"search.yahoo.co.jp": "Yahoo! JAPAN",
}

// FriendlyName returns the display name of a referrer host. Unknown hosts
// are shown without "www." and with a capital first letter.
func FriendlyName(hostname string) string {
	host := strings.TrimPrefix(strings.ToLower(hostname), "www.")

	// Walk up the labels so the most specific known host wins.
	for h := host; h != ""; {
		if name, ok := knownHosts[h]; ok {
			return name
		}
		_, parent, found := strings.Cut(h, ".")
		if !found {
			break
		}
		h = parent
	}

	if host == "" {
		return host
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
