// Package ffmpeg spawns the ffmpeg binary to remux or transcode
// upstream streams straight onto an HTTP response. Nothing touches disk;
// output goes to stdout and the process dies with the request context.
package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/ports"
)

// Muxer implements ports.StreamMuxer over the ffmpeg binary.
type Muxer struct {
	binPath    string
	configPath string
}

// NewMuxer creates a muxer; binOverride may be empty to use PATH.
func NewMuxer(binOverride string) *Muxer {
	return &Muxer{configPath: binOverride}
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "ffmpeg.exe"
	}
	return "ffmpeg"
}

func (m *Muxer) findBinary() string {
	if m.configPath != "" {
		if _, err := os.Stat(m.configPath); err == nil {
			return m.configPath
		}
	}
	if path, err := exec.LookPath(binaryName()); err == nil {
		return path
	}
	return ""
}

func (m *Muxer) BinaryPath() string {
	if m.binPath != "" {
		return m.binPath
	}
	m.binPath = m.findBinary()
	return m.binPath
}

func (m *Muxer) IsAvailable() bool {
	return m.BinaryPath() != ""
}

// networkInputArgs precede each -i and keep long streams alive across
// CDN hiccups.
func networkInputArgs(headers string) []string {
	args := []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
	}
	if headers != "" {
		args = append(args, "-headers", headers)
	}
	return args
}

// mp4AudioCodecs can live in an MP4 container without re-encoding.
var mp4AudioCodecs = []string{"mp4a", "aac", "mp3", "ac-3", "ec-3"}

func audioNeedsTranscode(f domain.FormatDescriptor) bool {
	codec := strings.ToLower(f.AudioCodec)
	for _, ok := range mp4AudioCodecs {
		if strings.HasPrefix(codec, ok) {
			return false
		}
	}
	return true
}

func (m *Muxer) MergeAV(ctx context.Context, res domain.Resolution, headers string, w io.Writer) error {
	binPath := m.BinaryPath()
	if binPath == "" {
		return domain.ErrFFmpegNotFound
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, networkInputArgs(headers)...)
	args = append(args, "-i", res.URL)
	args = append(args, networkInputArgs(headers)...)
	args = append(args, "-i", res.AudioURL)
	args = append(args,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
	)
	if audioNeedsTranscode(res.AudioFormat) {
		args = append(args, "-c:a", "aac", "-b:a", "192k")
	} else {
		args = append(args, "-c:a", "copy")
	}
	args = append(args,
		// Fragmented output: the container stays valid without a
		// seekable sink, which a socket is not.
		"-movflags", "+frag_keyframe+empty_moov",
		"-f", "mp4",
		"pipe:1",
	)

	return m.run(ctx, binPath, args, w)
}

func (m *Muxer) TranscodeMP3(ctx context.Context, res domain.Resolution, headers string, w io.Writer) error {
	binPath := m.BinaryPath()
	if binPath == "" {
		return domain.ErrFFmpegNotFound
	}

	bitrate := res.Bitrate
	if bitrate <= 0 {
		bitrate = 192
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, networkInputArgs(headers)...)
	args = append(args,
		"-i", res.URL,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", fmt.Sprintf("%dk", bitrate),
		"-f", "mp3",
		"pipe:1",
	)

	return m.run(ctx, binPath, args, w)
}

const stderrKeep = 2048

func (m *Muxer) run(ctx context.Context, binPath string, args []string, w io.Writer) error {
	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Stdout = w
	stderr := &tailBuffer{limit: stderrKeep}
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// Client hangup cancels ctx, which kills the process; that is a
	// normal end, not a failure to report upstream.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Writes failing mid-stream (broken pipe) also end here.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %s", domain.ErrSubprocessFailed, strings.TrimSpace(stderr.String()))
	}
	return fmt.Errorf("%w: %v", domain.ErrSubprocessFailed, err)
}

// tailBuffer retains the last limit bytes written, so a chatty process
// cannot balloon memory but the useful trailing error lines survive.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

var _ ports.StreamMuxer = (*Muxer)(nil)
