package httpapi

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediamux/streamgate/internal/classify"
	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/platform"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"ytdlp":  s.extractor.IsAvailable(),
		"ffmpeg": s.muxer.IsAvailable(),
	})
}

// formatRow is one selectable entry in the info response.
type formatRow struct {
	FormatID string  `json:"format_id"`
	Kind     string  `json:"kind"`
	Ext      string  `json:"ext"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Bitrate  float64 `json:"bitrate,omitempty"`
	FileSize int64   `json:"filesize,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// syntheticMP3Bitrates are offered on every item with audio; the actual
// transcode happens at delivery time.
var syntheticMP3Bitrates = []int{128, 192, 320}

func (s *Server) handleInfo(c *gin.Context) {
	prof := platform.ForName(c.Param("platform"))
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	if c.Query("flat") == "1" {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		coll, err := s.resolver.InfoFlat(c.Request.Context(), url, prof, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, renderCollection(coll))
		return
	}

	item, err := s.resolver.Info(c.Request.Context(), url, prof)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, renderItem(item))
}

func renderItem(item *domain.MediaItem) gin.H {
	listing := classify.Split(item.Formats)

	rows := make([]formatRow, 0, len(listing.Progressive)+4)
	for _, f := range listing.Progressive {
		rows = append(rows, formatRow{
			FormatID: f.FormatID, Kind: "progressive", Ext: f.Ext,
			Height: f.Height, FPS: f.FrameRate, Bitrate: f.Bitrate,
			FileSize: f.FileSize, Note: f.Note,
		})
	}
	for _, f := range listing.VideoOnly {
		rows = append(rows, formatRow{
			FormatID: f.FormatID, Kind: "video", Ext: f.Ext,
			Height: f.Height, FPS: f.FrameRate, Bitrate: f.Bitrate,
			FileSize: f.FileSize, Note: f.Note,
		})
	}
	if audio, ok := listing.BestAudio(); ok {
		rows = append(rows, formatRow{
			FormatID: audio.FormatID, Kind: "audio", Ext: audio.Ext,
			Bitrate: audio.ABR, FileSize: audio.FileSize, Note: audio.Note,
		})
		for _, kbps := range syntheticMP3Bitrates {
			rows = append(rows, formatRow{
				FormatID: fmt.Sprintf("mp3_%d", kbps), Kind: "mp3", Ext: "mp3",
				Bitrate: float64(kbps),
			})
		}
	}

	return gin.H{
		"id":        item.ID,
		"title":     item.Title,
		"uploader":  item.Uploader,
		"duration":  item.DurationSeconds,
		"thumbnail": item.ThumbnailURL,
		"kind":      item.Kind,
		"url":       item.WebpageURL,
		"formats":   rows,
	}
}

func renderCollection(coll *domain.MediaCollection) gin.H {
	items := make([]gin.H, 0, len(coll.Items))
	for _, it := range coll.Items {
		items = append(items, gin.H{
			"id":       it.ID,
			"title":    it.Title,
			"duration": it.DurationSeconds,
			"url":      it.WebpageURL,
			"kind":     it.Kind,
		})
	}
	return gin.H{
		"id":       coll.ID,
		"title":    coll.Title,
		"uploader": coll.Uploader,
		"count":    len(items),
		"items":    items,
	}
}

// handleDownload is the delivery state machine: redirect, proxy, merge
// or transcode depending on the resolution and the proxy flag.
func (s *Server) handleDownload(c *gin.Context) {
	prof := platform.ForName(c.Param("platform"))
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	s.deliver(c, prof, url, c.DefaultQuery("format_id", "best"), c.Query("filename"), c.Query("proxy") == "1")
}

func (s *Server) deliver(c *gin.Context, prof *platform.Profile, url, selector, filename string, forceProxy bool) {
	res, err := s.resolver.Resolve(c.Request.Context(), url, selector, prof)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if filename == "" {
		filename = defaultFilename(res)
	}

	switch res.Kind {
	case domain.Direct:
		if !forceProxy {
			c.Redirect(http.StatusFound, res.URL)
			return
		}
		if err := proxyStream(c, res.URL, prof.Headers, filename); err != nil {
			abortWithError(c, err)
		}

	case domain.MergeAV:
		c.Header("Content-Type", "video/mp4")
		c.Header("Content-Disposition", contentDisposition(filename))
		c.Status(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}
		if err := s.muxer.MergeAV(c.Request.Context(), res, prof.HeaderBlock(), c.Writer); err != nil {
			// Headers already went out; the client just sees a short body.
			log.Printf("[http] merge stream ended: %v", err)
		}

	case domain.TranscodeAudio:
		c.Header("Content-Type", "audio/mpeg")
		c.Header("Content-Disposition", contentDisposition(filename))
		c.Status(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}
		if err := s.muxer.TranscodeMP3(c.Request.Context(), res, prof.HeaderBlock(), c.Writer); err != nil {
			log.Printf("[http] transcode stream ended: %v", err)
		}
	}
}

func defaultFilename(res domain.Resolution) string {
	title := "media"
	if res.Item != nil && res.Item.Title != "" {
		title = res.Item.Title
	}
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, title)
	if len(title) > 120 {
		title = title[:120]
	}
	return title + "." + res.SuggestedExt()
}

// handleRedirect only ever answers with a Location; selectors that need
// a subprocess cannot be redirected to.
func (s *Server) handleRedirect(c *gin.Context) {
	prof := platform.ForName(c.Param("platform"))
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}
	selector := c.DefaultQuery("format_id", "best")
	if sel, err := domain.ParseSelector(selector); err == nil && sel.MP3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mp3 selectors cannot redirect"})
		return
	}

	res, err := s.resolver.Resolve(c.Request.Context(), url, selector, prof)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res.Kind != domain.Direct {
		c.JSON(http.StatusConflict, gin.H{"error": "format requires merging, use the download endpoint"})
		return
	}
	c.Redirect(http.StatusFound, res.URL)
}

type startTaskRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"format_id"`
}

func (s *Server) handleStartTask(c *gin.Context) {
	prof := platform.ForName(c.Param("platform"))

	var req startTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Form/query fallback for simple clients.
		req.URL = c.Query("url")
		req.FormatID = c.Query("format_id")
	}
	if req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	if req.FormatID == "" {
		req.FormatID = "best"
	}

	id, err := s.tasks.Start(req.URL, req.FormatID, prof)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"task_id": id})
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	task, err := s.tasks.Get(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	resp := gin.H{
		"id":       task.ID,
		"status":   task.Status,
		"percent":  task.Percent,
		"progress": task.Progress,
	}
	if task.ETASeconds > 0 {
		resp["eta_seconds"] = task.ETASeconds
	}
	if task.Err != "" {
		resp["error"] = task.Err
	}
	if task.Status == domain.TaskFinished {
		resp["filename"] = task.Filename
		resp["file_size"] = task.FileSize
		resp["download_url"] = "/download/" + task.Filename
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTaskCancel(c *gin.Context) {
	if err := s.tasks.Cancel(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

const (
	signDefaultTTL = 10 * time.Minute
	signMaxTTL     = 24 * time.Hour
)

func (s *Server) handleSign(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url parameter required"})
		return
	}

	ttl := signDefaultTTL
	if raw := c.Query("ttl"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ttl"})
			return
		}
		ttl = time.Duration(secs) * time.Second
		if ttl > signMaxTTL {
			ttl = signMaxTTL
		}
	}

	token, err := s.signer.Sign(signedLink{
		Platform: c.Param("platform"),
		URL:      url,
		FormatID: c.DefaultQuery("format_id", "best"),
		Filename: c.Query("filename"),
	}, ttl)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"signed_url": "/dl?token=" + token,
		"expires_in": int(ttl.Seconds()),
	})
}

// handleSignedDownload replays the download path from a verified token.
// Tokens are shared with third parties, so delivery always proxies
// rather than exposing raw CDN URLs.
func (s *Server) handleSignedDownload(c *gin.Context) {
	link, err := s.signer.Verify(c.Query("token"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.deliver(c, platform.ForName(link.Platform), link.URL, link.FormatID, link.Filename, true)
}

// handleServeFile serves finished task files from the download
// directory. Only bare filenames are accepted.
func (s *Server) handleServeFile(c *gin.Context) {
	name := c.Param("filename")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filename"})
		return
	}
	path := filepath.Join(s.downloadDir, name)
	c.Header("Content-Disposition", contentDisposition(name))
	c.File(path)
}
