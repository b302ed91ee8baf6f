package ports

import (
	"context"
	"io"

	"github.com/mediamux/streamgate/internal/domain"
)

// StreamMuxer turns a non-direct resolution into a single byte stream on
// the fly. Implementations spawn a media subprocess scoped to ctx, so a
// cancelled context (client gone) tears the work down immediately.
type StreamMuxer interface {
	// MergeAV remuxes the resolution's video and audio streams into one
	// fragmented MP4 written to w. Audio is re-encoded only when its
	// codec cannot live in an MP4 container.
	MergeAV(ctx context.Context, res domain.Resolution, headers string, w io.Writer) error

	// TranscodeMP3 re-encodes the resolution's audio stream to mp3 at
	// res.Bitrate and writes it to w.
	TranscodeMP3(ctx context.Context, res domain.Resolution, headers string, w io.Writer) error

	// IsAvailable checks whether the media tool is installed.
	IsAvailable() bool
}
