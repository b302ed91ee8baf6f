package cli

import (
	"context"
	"log"
	"time"

	"github.com/mediamux/streamgate/internal/adapters/cache"
	"github.com/mediamux/streamgate/internal/adapters/ffmpeg"
	"github.com/mediamux/streamgate/internal/adapters/probe"
	"github.com/mediamux/streamgate/internal/adapters/ytdlp"
	"github.com/mediamux/streamgate/internal/application"
	"github.com/mediamux/streamgate/internal/config"
	"github.com/mediamux/streamgate/internal/ports"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	Cache     ports.ResolutionCache
	Extractor *ytdlp.Extractor
	Muxer     *ffmpeg.Muxer

	Resolver *application.ResolverService
	Tasks    *application.TaskService

	redis *cache.Redis
}

// NewApp creates and wires up all dependencies
func NewApp() (*App, error) {
	// Load config
	cfg, err := config.LoadDefault()
	if err != nil {
		return nil, err
	}

	// Ensure directories exist
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	ttl, err := cfg.GetCacheTTL()
	if err != nil {
		ttl = 30 * time.Minute
	}
	queueTimeout, err := cfg.GetQueueTimeout()
	if err != nil {
		queueTimeout = 30 * time.Second
	}
	maxAge, err := cfg.GetTaskMaxAge()
	if err != nil {
		maxAge = time.Hour
	}

	// Create adapters
	var store ports.ResolutionCache
	local := cache.NewMemory(cfg.Cache.MaxItems, ttl)
	var rdb *cache.Redis
	if cfg.Cache.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = cache.NewRedis(ctx, cfg.Cache.RedisURL)
		cancel()
		if err != nil {
			log.Printf("redis unavailable, using memory cache only: %v", err)
			store = local
		} else {
			store = cache.NewTiered(rdb, local)
		}
	} else {
		store = local
	}

	extractor := ytdlp.NewExtractor(cfg.Paths.YtDlp, cfg.Paths.CookiesFile)
	muxer := ffmpeg.NewMuxer(cfg.Paths.FFmpeg)
	prober := probe.NewHeadProber(10 * time.Second)

	// Create services
	resolver := application.NewResolverService(extractor, store, prober, ttl, cfg.Extract.Slots, queueTimeout)
	tasks := application.NewTaskService(extractor, cfg.Paths.DownloadDir, cfg.Tasks.Workers, maxAge)

	return &App{
		Config:    cfg,
		Cache:     store,
		Extractor: extractor,
		Muxer:     muxer,
		Resolver:  resolver,
		Tasks:     tasks,
		redis:     rdb,
	}, nil
}

// Close releases background workers and connections.
func (a *App) Close() {
	a.Tasks.Close()
	if a.redis != nil {
		a.redis.Close()
	}
}

var globalApp *App

// GetApp returns the global app instance, creating it if needed
func GetApp() (*App, error) {
	if globalApp == nil {
		app, err := NewApp()
		if err != nil {
			return nil, err
		}
		globalApp = app
	}
	return globalApp, nil
}
