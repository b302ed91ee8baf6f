// Package httpapi is the HTTP surface: thin gin handlers that parse
// parameters, call the application services and map domain errors onto
// status codes. No resolution or selection logic lives here.
package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mediamux/streamgate/internal/application"
	"github.com/mediamux/streamgate/internal/config"
	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/ports"
)

// Server wires the HTTP routes to the application services.
type Server struct {
	engine      *gin.Engine
	resolver    *application.ResolverService
	tasks       *application.TaskService
	muxer       ports.StreamMuxer
	extractor   ports.Extractor
	signer      *Signer
	downloadDir string
	listen      string
}

// NewServer builds the router. Release mode unless GIN_MODE overrides.
func NewServer(resolver *application.ResolverService, tasks *application.TaskService, muxer ports.StreamMuxer, extractor ports.Extractor, signer *Signer, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:      gin.New(),
		resolver:    resolver,
		tasks:       tasks,
		muxer:       muxer,
		extractor:   extractor,
		signer:      signer,
		downloadDir: cfg.Paths.DownloadDir,
		listen:      cfg.Server.Listen,
	}

	s.engine.Use(gin.Recovery(), logMiddleware(), corsMiddleware())

	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/dl", s.handleSignedDownload)
	s.engine.GET("/download/:filename", s.handleServeFile)
	s.engine.GET("/tasks/:id", s.handleTaskStatus)
	s.engine.DELETE("/tasks/:id", s.handleTaskCancel)

	api := s.engine.Group("/api", rateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	api.GET("/:platform/info", s.handleInfo)
	api.GET("/:platform/download", s.handleDownload)
	api.HEAD("/:platform/download", s.handleDownload)
	api.POST("/:platform/download", s.handleStartTask)
	api.GET("/:platform/redirect", s.handleRedirect)
	api.GET("/:platform/sign", s.handleSign)

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains with a grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.listen,
		Handler: s.engine,
		// No write timeout: streams run as long as the media lasts.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[http] listening on %s", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}

// httpStatus maps domain errors onto response codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidSelector),
		errors.Is(err, domain.ErrUnsupportedURL):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBadSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAuthRequired),
		errors.Is(err, domain.ErrServerSideOff):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrFormatNotFound),
		errors.Is(err, domain.ErrNoPlayableFormat),
		errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTaskFinished):
		return http.StatusConflict
	case errors.Is(err, domain.ErrResolutionExpired),
		errors.Is(err, domain.ErrLinkExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrExtractionFailed),
		errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrSubprocessFailed),
		errors.Is(err, domain.ErrYtDlpNotFound),
		errors.Is(err, domain.ErrFFmpegNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := httpStatus(err)
	if application.ErrIsRetryable(err) {
		c.Header("Retry-After", "30")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
