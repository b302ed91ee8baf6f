package ports

import (
	"context"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
)

// ExtractRequest parameterizes one metadata extraction.
type ExtractRequest struct {
	URL      string
	Platform *platform.Profile
	// Persona overrides the extractor player client, empty for default.
	Persona string
}

// FlatRequest parameterizes a shallow playlist listing.
type FlatRequest struct {
	URL      string
	Platform *platform.Profile
	// Limit caps how many entries are fetched, 0 for all.
	Limit int
}

// DownloadRequest parameterizes a server-side download to disk.
type DownloadRequest struct {
	URL      string
	Platform *platform.Profile
	Persona  string
	// FormatExpr is passed verbatim to the extractor's format selection
	// ("best[ext=mp4][height<=720]", "18", "bestaudio", ...).
	FormatExpr string
	// MP3 asks for audio extraction to mp3 at Bitrate kbit/s.
	MP3     bool
	Bitrate int
	DestDir string
	// BaseName names the output file before the extension.
	BaseName string
}

// DownloadProgress reports extractor progress lines during a download.
// percent is 0..100, speed a human figure like "2.41MiB/s", eta in
// seconds (negative when unknown).
type DownloadProgress func(percent float64, speed string, etaSeconds int)

// DownloadResult is what a finished server-side download left on disk.
type DownloadResult struct {
	FilePath string
	Item     *domain.MediaItem
}

// Extractor resolves media URLs into metadata and format listings, and
// performs full downloads, by driving an external extraction tool. The
// tool is an opaque collaborator: site logic lives there, not here.
type Extractor interface {
	// Extract fetches full metadata including the format listing.
	Extract(ctx context.Context, req ExtractRequest) (*domain.MediaItem, error)

	// ExtractFlat fetches a shallow listing of a playlist or profile
	// without resolving each entry.
	ExtractFlat(ctx context.Context, req FlatRequest) (*domain.MediaCollection, error)

	// Download fetches media to disk, reporting progress as the tool
	// emits it. The returned path points at the finished file.
	Download(ctx context.Context, req DownloadRequest, progress DownloadProgress) (*DownloadResult, error)

	// Binary management

	// IsAvailable checks whether the extraction tool is installed.
	IsAvailable() bool

	// BinaryPath returns the resolved tool path, empty when missing.
	BinaryPath() string

	// Version reports the installed tool version.
	Version(ctx context.Context) (string, error)
}
