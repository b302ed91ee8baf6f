package domain

import "errors"

var (
	// Extraction errors
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrAuthRequired        = errors.New("authentication required for this content")
	ErrTimeout             = errors.New("extraction timed out")
	ErrUnsupportedURL      = errors.New("unsupported or malformed media URL")
	ErrUpstreamUnavailable = errors.New("upstream media source unavailable")

	// Resolution errors
	ErrFormatNotFound    = errors.New("requested format not found")
	ErrInvalidSelector   = errors.New("invalid format selector")
	ErrResolutionExpired = errors.New("resolved media URL expired")
	ErrNoPlayableFormat  = errors.New("no playable format in listing")

	// Delivery errors
	ErrSubprocessFailed = errors.New("media subprocess failed")

	// Task errors
	ErrTaskNotFound  = errors.New("download task not found")
	ErrTaskFinished  = errors.New("download task already finished")
	ErrServerSideOff = errors.New("server-side download disabled for platform")

	// Cache errors
	ErrCacheMiss = errors.New("cache miss")

	// Signing errors
	ErrBadSignature = errors.New("invalid link signature")
	ErrLinkExpired  = errors.New("signed link expired")

	// Dependency errors
	ErrYtDlpNotFound  = errors.New("yt-dlp not found")
	ErrFFmpegNotFound = errors.New("ffmpeg not found")
)
