// Package platform holds the closed set of supported media platforms and
// the per-platform knobs the rest of the service consults: request header
// profiles for upstream CDNs, extractor client personas, timeouts and
// server-side download policy. Dispatch is over this set, never over raw
// strings from the request path.
package platform

import (
	"net/url"
	"strings"
	"time"
)

// Name identifies one supported platform.
type Name string

const (
	YouTube   Name = "youtube"
	Instagram Name = "instagram"
	TikTok    Name = "tiktok"
	Twitter   Name = "twitter"
	Facebook  Name = "facebook"
	Reddit    Name = "reddit"
	Generic   Name = "generic"
)

// All lists every supported platform, Generic last.
var All = []Name{YouTube, Instagram, TikTok, Twitter, Facebook, Reddit, Generic}

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Profile carries the capabilities and hardening details for a platform.
type Profile struct {
	Name Name

	// Headers are sent on direct upstream fetches (probe, proxy, ffmpeg
	// inputs). CDNs for some platforms reject requests without them.
	Headers map[string]string

	// Personas are extractor player clients tried in order when a
	// download fails with the default client.
	Personas []string

	// ExtractTimeout bounds a metadata extraction; DownloadTimeout
	// bounds a full server-side download.
	ExtractTimeout  time.Duration
	DownloadTimeout time.Duration

	// ServerDownloads gates background download tasks. Platforms whose
	// direct URLs die quickly keep instant delivery only.
	ServerDownloads bool

	hosts []string
}

var profiles = map[Name]*Profile{
	YouTube: {
		Name: YouTube,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
		},
		Personas:        []string{"android_creator", "android_music", "web", "ios"},
		ExtractTimeout:  45 * time.Second,
		DownloadTimeout: 15 * time.Minute,
		ServerDownloads: true,
		hosts:           []string{"youtube.com", "youtu.be", "youtube-nocookie.com"},
	},
	Instagram: {
		Name: Instagram,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.instagram.com/",
			"Origin":          "https://www.instagram.com",
			"Sec-Fetch-Site":  "same-site",
			"Sec-Fetch-Mode":  "no-cors",
			"Sec-Fetch-Dest":  "video",
		},
		ExtractTimeout:  60 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		ServerDownloads: true,
		hosts:           []string{"instagram.com", "cdninstagram.com", "fbcdn.net"},
	},
	TikTok: {
		Name: TikTok,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.tiktok.com/",
			"Origin":          "https://www.tiktok.com",
		},
		ExtractTimeout:  60 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		ServerDownloads: true,
		hosts:           []string{"tiktok.com", "tiktokcdn.com"},
	},
	Twitter: {
		Name: Twitter,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://twitter.com/",
		},
		ExtractTimeout:  45 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		ServerDownloads: true,
		hosts:           []string{"twitter.com", "x.com", "twimg.com"},
	},
	Facebook: {
		Name: Facebook,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         "https://www.facebook.com/",
		},
		ExtractTimeout: 60 * time.Second,
		// Facebook direct URLs expire in minutes; background tasks would
		// mostly produce dead files, so only instant delivery is offered.
		ServerDownloads: false,
		hosts:           []string{"facebook.com", "fb.watch", "fbcdn.net"},
	},
	Reddit: {
		Name: Reddit,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
		},
		ExtractTimeout:  45 * time.Second,
		DownloadTimeout: 10 * time.Minute,
		ServerDownloads: true,
		hosts:           []string{"reddit.com", "redd.it", "v.redd.it"},
	},
	Generic: {
		Name: Generic,
		Headers: map[string]string{
			"User-Agent":      browserUA,
			"Accept-Language": "en-US,en;q=0.9",
		},
		ExtractTimeout:  60 * time.Second,
		DownloadTimeout: 15 * time.Minute,
		ServerDownloads: true,
	},
}

// ForName resolves a platform by its request-path name. Unknown names map
// to Generic so new platforms degrade instead of 404ing.
func ForName(name string) *Profile {
	if p, ok := profiles[Name(strings.ToLower(strings.TrimSpace(name)))]; ok {
		return p
	}
	return profiles[Generic]
}

// ForURL sniffs the platform from a media URL host.
func ForURL(rawURL string) *Profile {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return profiles[Generic]
	}
	host := strings.ToLower(u.Host)
	for _, p := range profiles {
		for _, h := range p.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return p
			}
		}
	}
	return profiles[Generic]
}

// HeaderBlock renders the profile headers in the CRLF-joined form the
// ffmpeg -headers flag expects.
func (p *Profile) HeaderBlock() string {
	if len(p.Headers) == 0 {
		return ""
	}
	var b strings.Builder
	for _, k := range headerOrder {
		if v, ok := p.Headers[k]; ok {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

// headerOrder keeps HeaderBlock deterministic.
var headerOrder = []string{
	"User-Agent", "Accept-Language", "Referer", "Origin",
	"Sec-Fetch-Site", "Sec-Fetch-Mode", "Sec-Fetch-Dest",
}
