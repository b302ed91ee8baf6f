package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	youtubeHosts     = map[string]bool{
		"youtube.com": true, "www.youtube.com": true, "m.youtube.com": true,
		"music.youtube.com": true, "youtube-nocookie.com": true,
		"www.youtube-nocookie.com": true,
	}
)

// CanonicalURL normalizes a user-supplied media reference. YouTube inputs
// in any of their spellings (youtu.be, /shorts/, /embed/, music., m., or
// a bare 11-character video id) collapse to the canonical watch URL so
// cache keys agree. A t= start offset survives normalization. Everything
// else passes through trimmed, as long as it is a fetchable http(s) URL.
func CanonicalURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrUnsupportedURL
	}

	if youtubeIDPattern.MatchString(input) {
		return "https://www.youtube.com/watch?v=" + input, nil
	}

	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return "", ErrUnsupportedURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedURL
	}

	host := strings.ToLower(u.Host)

	if host == "youtu.be" || host == "www.youtu.be" {
		id := strings.Trim(u.Path, "/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		return canonicalWatch(id, u.Query().Get("t"))
	}

	if youtubeHosts[host] {
		path := u.Path
		switch {
		case strings.HasPrefix(path, "/watch"):
			return canonicalWatch(u.Query().Get("v"), u.Query().Get("t"))
		case strings.HasPrefix(path, "/shorts/"):
			return canonicalWatch(pathSegment(path, "/shorts/"), u.Query().Get("t"))
		case strings.HasPrefix(path, "/embed/"):
			return canonicalWatch(pathSegment(path, "/embed/"), u.Query().Get("t"))
		case strings.HasPrefix(path, "/live/"):
			return canonicalWatch(pathSegment(path, "/live/"), u.Query().Get("t"))
		}
		// Channel and playlist URLs stay as given.
		return input, nil
	}

	return input, nil
}

func pathSegment(path, prefix string) string {
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func canonicalWatch(id, t string) (string, error) {
	if !youtubeIDPattern.MatchString(id) {
		return "", ErrUnsupportedURL
	}
	out := "https://www.youtube.com/watch?v=" + id
	if t != "" {
		out = fmt.Sprintf("%s&t=%s", out, url.QueryEscape(t))
	}
	return out, nil
}
