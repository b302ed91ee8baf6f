package ytdlp

import (
	"time"

	"github.com/mediamux/streamgate/internal/domain"
)

// rawInfo mirrors the subset of yt-dlp's JSON dump the service consumes.
type rawInfo struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Uploader   string      `json:"uploader"`
	Duration   float64     `json:"duration"`
	Thumbnail  string      `json:"thumbnail"`
	WebpageURL string      `json:"webpage_url"`
	URL        string      `json:"url"`
	Ext        string      `json:"ext"`
	Type       string      `json:"_type"`
	Extractor  string      `json:"extractor_key"`
	Formats    []rawFormat `json:"formats"`

	// Populated on --flat-playlist entries.
	PlaylistID       string `json:"playlist_id"`
	PlaylistTitle    string `json:"playlist_title"`
	PlaylistUploader string `json:"playlist_uploader"`
}

type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	FPS            float64 `json:"fps"`
	TBR            float64 `json:"tbr"`
	ABR            float64 `json:"abr"`
	FileSize       int64   `json:"filesize"`
	FileSizeApprox int64   `json:"filesize_approx"`
	Protocol       string  `json:"protocol"`
	URL            string  `json:"url"`
	FormatNote     string  `json:"format_note"`
}

func (r rawInfo) toItem() domain.MediaItem {
	item := domain.MediaItem{
		ID:              r.ID,
		Title:           r.Title,
		Uploader:        r.Uploader,
		DurationSeconds: r.Duration,
		ThumbnailURL:    r.Thumbnail,
		Kind:            r.kind(),
		WebpageURL:      r.WebpageURL,
		Extractor:       r.Extractor,
		FetchedAt:       time.Now(),
	}

	for _, f := range r.Formats {
		size := f.FileSize
		if size == 0 {
			size = f.FileSizeApprox
		}
		item.Formats = append(item.Formats, domain.FormatDescriptor{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			VideoCodec: f.VCodec,
			AudioCodec: f.ACodec,
			Width:      f.Width,
			Height:     f.Height,
			FrameRate:  f.FPS,
			Bitrate:    f.TBR,
			ABR:        f.ABR,
			FileSize:   size,
			Protocol:   f.Protocol,
			URL:        f.URL,
			Note:       f.FormatNote,
		})
	}

	// Single-URL dumps (no formats array) carry the stream URL at the
	// top level; keep it as the nominated fallback either way.
	item.BestURL = r.URL

	return item
}

func (r rawInfo) kind() domain.MediaKind {
	switch r.Type {
	case "playlist", "multi_video":
		return domain.KindPlaylist
	}
	switch r.Ext {
	case "jpg", "jpeg", "png", "webp":
		return domain.KindImage
	}
	return domain.KindVideo
}
