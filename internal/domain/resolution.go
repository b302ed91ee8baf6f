package domain

// ResolutionKind says how the resolved media must be delivered.
type ResolutionKind int

const (
	// Direct means a single upstream URL that can be redirected to or
	// proxied byte for byte.
	Direct ResolutionKind = iota
	// MergeAV means separate video and audio streams that must be
	// remuxed into one container on the fly.
	MergeAV
	// TranscodeAudio means the audio stream must be re-encoded to mp3
	// at Bitrate kbit/s.
	TranscodeAudio
)

func (k ResolutionKind) String() string {
	switch k {
	case Direct:
		return "direct"
	case MergeAV:
		return "merge"
	case TranscodeAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of matching a selector against an extracted
// listing: concrete upstream URL(s) plus the delivery strategy.
type Resolution struct {
	Kind ResolutionKind

	// URL is the primary stream: the progressive stream for Direct, the
	// video stream for MergeAV, the audio stream for TranscodeAudio.
	URL string
	// AudioURL is set only for MergeAV.
	AudioURL string

	Format      FormatDescriptor
	AudioFormat FormatDescriptor

	// Bitrate is the mp3 target in kbit/s for TranscodeAudio.
	Bitrate int

	Item *MediaItem
}

// NeedsFFmpeg reports whether delivering this resolution spawns a
// subprocess.
func (r Resolution) NeedsFFmpeg() bool {
	return r.Kind == MergeAV || r.Kind == TranscodeAudio
}

// SuggestedExt returns the file extension a download of this resolution
// should carry.
func (r Resolution) SuggestedExt() string {
	switch r.Kind {
	case TranscodeAudio:
		return "mp3"
	case MergeAV:
		return "mp4"
	default:
		if r.Format.Ext != "" {
			return r.Format.Ext
		}
		return "mp4"
	}
}
