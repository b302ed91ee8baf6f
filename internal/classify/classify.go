// Package classify turns a raw extractor format dump into an ordered,
// deduplicated listing. It is pure: no I/O, no clock, no process state.
package classify

import (
	"sort"

	"github.com/mediamux/streamgate/internal/domain"
)

// Listing is a format dump split by track composition. Progressive and
// VideoOnly are sorted by descending height, AudioOnly by descending
// audio bitrate, best candidates first in each bucket.
type Listing struct {
	Progressive []domain.FormatDescriptor
	VideoOnly   []domain.FormatDescriptor
	AudioOnly   []domain.FormatDescriptor
}

// Score ranks a video format for selection. H.264 dominates because it
// plays everywhere; within a codec, total bitrate, frame rate and an mp4
// container break ties.
func Score(f domain.FormatDescriptor) float64 {
	var s float64
	if f.IsAVC() {
		s += 1000
	}
	s += f.Bitrate
	s += 2 * f.FrameRate
	if f.Ext == "mp4" {
		s += 50
	}
	return s
}

// Split buckets and orders formats. Within the progressive and video-only
// buckets only the highest-scoring format per height survives, so callers
// see one entry per quality tier instead of every codec variant upstream
// happens to publish.
func Split(formats []domain.FormatDescriptor) Listing {
	var l Listing
	for _, f := range formats {
		if f.URL == "" {
			continue
		}
		switch {
		case f.Progressive():
			l.Progressive = append(l.Progressive, f)
		case f.VideoOnly():
			l.VideoOnly = append(l.VideoOnly, f)
		case f.AudioOnly():
			l.AudioOnly = append(l.AudioOnly, f)
		}
	}

	l.Progressive = dedupeByHeight(l.Progressive)
	l.VideoOnly = dedupeByHeight(l.VideoOnly)

	sort.SliceStable(l.AudioOnly, func(i, j int) bool {
		a, b := l.AudioOnly[i], l.AudioOnly[j]
		if a.ABR != b.ABR {
			return a.ABR > b.ABR
		}
		return a.FileSize > b.FileSize
	})

	return l
}

// dedupeByHeight keeps the best-scoring format per height, sorted by
// descending height.
func dedupeByHeight(formats []domain.FormatDescriptor) []domain.FormatDescriptor {
	best := make(map[int]domain.FormatDescriptor, len(formats))
	for _, f := range formats {
		cur, ok := best[f.Height]
		if !ok || Score(f) > Score(cur) {
			best[f.Height] = f
		}
	}

	out := make([]domain.FormatDescriptor, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height > out[j].Height
		}
		return Score(out[i]) > Score(out[j])
	})
	return out
}

// preferredHeights are the quality tiers automatic selection reaches for
// before falling back to whatever is tallest.
var preferredHeights = []int{720, 480, 360}

// BestProgressive picks the progressive format automatic selection
// delivers: the preferred tier if one exists, otherwise the
// highest-scoring progressive overall.
func (l Listing) BestProgressive() (domain.FormatDescriptor, bool) {
	for _, h := range preferredHeights {
		for _, f := range l.Progressive {
			if f.Height == h {
				return f, true
			}
		}
	}
	if len(l.Progressive) == 0 {
		return domain.FormatDescriptor{}, false
	}

	best := l.Progressive[0]
	for _, f := range l.Progressive[1:] {
		if Score(f) > Score(best) {
			best = f
		}
	}
	return best, true
}

// BestVideoOnly returns the top video-only format, used for merged
// delivery when nothing progressive fits.
func (l Listing) BestVideoOnly() (domain.FormatDescriptor, bool) {
	var best domain.FormatDescriptor
	found := false
	for _, f := range l.VideoOnly {
		if !found || Score(f) > Score(best) {
			best, found = f, true
		}
	}
	return best, found
}

// BestAudio returns the top audio-only format.
func (l Listing) BestAudio() (domain.FormatDescriptor, bool) {
	if len(l.AudioOnly) == 0 {
		return domain.FormatDescriptor{}, false
	}
	return l.AudioOnly[0], true
}

// Find looks up a format by id across all buckets, then across the raw
// slice order given, preferring exact matches in classified buckets.
func (l Listing) Find(formatID string) (domain.FormatDescriptor, bool) {
	for _, bucket := range [][]domain.FormatDescriptor{l.Progressive, l.VideoOnly, l.AudioOnly} {
		for _, f := range bucket {
			if f.FormatID == formatID {
				return f, true
			}
		}
	}
	return domain.FormatDescriptor{}, false
}
