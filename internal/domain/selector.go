package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Selector names what the caller wants delivered: the literal "best",
// an explicit extractor format id, or a synthetic mp3 rendition with a
// target bitrate ("mp3_192", "MP3-64", bare "mp3").
type Selector struct {
	Raw        string
	MP3        bool
	MP3Bitrate int // kbit/s, clamped to [32,320]
}

const (
	SelectorBest = "best"

	mp3DefaultBitrate = 192
	mp3MinBitrate     = 32
	mp3MaxBitrate     = 320
)

var mp3Pattern = regexp.MustCompile(`(?i)^mp3(?:[_-](\d{2,3}))?$`)

// ParseSelector validates and normalizes a raw selector string. An empty
// string means "best". Anything that is not "best" or an mp3 selector is
// treated as an opaque format id to be matched against the listing.
func ParseSelector(raw string) (Selector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = SelectorBest
	}

	if m := mp3Pattern.FindStringSubmatch(raw); m != nil {
		bitrate := mp3DefaultBitrate
		if m[1] != "" {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				return Selector{}, ErrInvalidSelector
			}
			bitrate = v
		}
		if bitrate < mp3MinBitrate {
			bitrate = mp3MinBitrate
		}
		if bitrate > mp3MaxBitrate {
			bitrate = mp3MaxBitrate
		}
		return Selector{Raw: raw, MP3: true, MP3Bitrate: bitrate}, nil
	}

	// Format ids coming out of extractors are short tokens; reject
	// anything that looks like an injection attempt into subprocess args.
	if strings.ContainsAny(raw, " \t\n\"'`$;|&") {
		return Selector{}, ErrInvalidSelector
	}

	return Selector{Raw: raw}, nil
}

// Best reports whether the selector asks for automatic best selection.
func (s Selector) Best() bool {
	return !s.MP3 && strings.EqualFold(s.Raw, SelectorBest)
}

// FormatID returns the explicit format id, empty for best/mp3 selectors.
func (s Selector) FormatID() string {
	if s.MP3 || s.Best() {
		return ""
	}
	return s.Raw
}

func (s Selector) String() string { return s.Raw }
