package domain

import (
	"strings"
	"time"
)

// MediaKind classifies what an extraction produced.
type MediaKind string

const (
	KindVideo      MediaKind = "video"
	KindImage      MediaKind = "image"
	KindPlaylist   MediaKind = "playlist"
	KindCarousel   MediaKind = "carousel"
	KindCollection MediaKind = "collection"
)

// MediaItem is an immutable snapshot of one extracted media entity.
// Formats and URLs inside it are only valid for as long as the upstream
// CDN honors them; staleness is handled at resolution time, not here.
type MediaItem struct {
	ID              string
	Title           string
	Uploader        string
	DurationSeconds float64
	ThumbnailURL    string
	Kind            MediaKind
	WebpageURL      string
	Formats         []FormatDescriptor
	// BestURL is the extractor-nominated fallback stream, used when no
	// format in Formats survives selection.
	BestURL   string
	Extractor string
	FetchedAt time.Time
}

// MediaCollection is a flat listing of items from a playlist, channel or
// multi-image post. Items carry shallow metadata when extracted flat.
type MediaCollection struct {
	ID       string
	Title    string
	Uploader string
	Items    []MediaItem
}

// FormatDescriptor describes one concrete downloadable rendition.
type FormatDescriptor struct {
	FormatID   string
	Ext        string
	VideoCodec string
	AudioCodec string
	Width      int
	Height     int
	FrameRate  float64
	Bitrate    float64 // total bitrate in kbit/s as reported upstream
	ABR        float64 // audio bitrate in kbit/s, audio-only formats
	FileSize   int64
	Protocol   string
	URL        string
	Note       string
}

// directExts are containers a browser or player can consume without
// remuxing when delivered as a single progressive stream.
var directExts = map[string]bool{
	"mp4": true, "m4a": true, "webm": true, "mp3": true, "jpg": true, "png": true, "webp": true,
}

// HasVideo reports whether the format carries a video track.
func (f FormatDescriptor) HasVideo() bool {
	return f.VideoCodec != "" && f.VideoCodec != "none"
}

// HasAudio reports whether the format carries an audio track.
func (f FormatDescriptor) HasAudio() bool {
	return f.AudioCodec != "" && f.AudioCodec != "none"
}

// AudioOnly reports whether the format is an audio-only rendition.
func (f FormatDescriptor) AudioOnly() bool {
	return f.HasAudio() && !f.HasVideo()
}

// VideoOnly reports whether the format is a video-only rendition.
func (f FormatDescriptor) VideoOnly() bool {
	return f.HasVideo() && !f.HasAudio()
}

// Segmented reports whether the format is delivered via a segmented
// manifest rather than a single progressive HTTP resource.
func (f FormatDescriptor) Segmented() bool {
	p := f.Protocol
	return strings.Contains(p, "m3u8") || strings.Contains(p, "hls") || strings.Contains(p, "dash")
}

// Progressive reports whether the format is a single directly playable
// stream with both tracks. These can be redirected to or proxied without
// touching ffmpeg.
func (f FormatDescriptor) Progressive() bool {
	if !f.HasVideo() || !f.HasAudio() {
		return false
	}
	if !directExts[f.Ext] {
		return false
	}
	return !f.Segmented()
}

// IsAVC reports whether the video codec is H.264, the most broadly
// playable codec and the one selection favors.
func (f FormatDescriptor) IsAVC() bool {
	vc := f.VideoCodec
	return strings.HasPrefix(vc, "avc") || strings.HasPrefix(vc, "h264")
}
