package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Extract ExtractConfig `yaml:"extract"`
	Paths   PathsConfig   `yaml:"paths"`
	Tasks   TasksConfig   `yaml:"tasks"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Listen string `yaml:"listen"`
	// SecretKey signs shareable download links. Generated per process
	// when empty, which invalidates links across restarts.
	SecretKey string  `yaml:"secret_key"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client
	RateBurst int     `yaml:"rate_burst"`
}

// CacheConfig holds resolution cache settings
type CacheConfig struct {
	TTL string `yaml:"ttl"`
	// RedisURL enables the shared cache tier ("redis://host:6379/0").
	// Empty means in-process memory only.
	RedisURL string `yaml:"redis_url"`
	MaxItems int    `yaml:"max_items"`
}

// ExtractConfig bounds concurrent extractions
type ExtractConfig struct {
	Slots        int    `yaml:"slots"`
	QueueTimeout string `yaml:"queue_timeout"`
}

// PathsConfig holds binary and directory overrides
type PathsConfig struct {
	YtDlp       string `yaml:"yt_dlp"`
	FFmpeg      string `yaml:"ffmpeg"`
	CookiesFile string `yaml:"cookies_file"`
	DownloadDir string `yaml:"download_dir"`
}

// TasksConfig holds background download task settings
type TasksConfig struct {
	MaxAge  string `yaml:"max_age"`
	Workers int    `yaml:"workers"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:    ":8080",
			RateLimit: 10,
			RateBurst: 20,
		},
		Cache: CacheConfig{
			TTL:      "30m",
			MaxItems: 2048,
		},
		Extract: ExtractConfig{
			Slots:        5,
			QueueTimeout: "30s",
		},
		Paths: PathsConfig{
			DownloadDir: filepath.Join(AppDir(), "downloads"),
		},
		Tasks: TasksConfig{
			MaxAge:  "1h",
			Workers: 2,
		},
	}
}

// AppDir returns the application directory (~/.streamgate)
func AppDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".streamgate"
	}
	return filepath.Join(home, ".streamgate")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(AppDir(), "config.yaml")
}

// EnsureDirs creates all required directories
func (c *Config) EnsureDirs() error {
	dirs := []string{AppDir(), c.Paths.DownloadDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Load reads config from file, returns default if not exists. A .env
// file in the working directory and process environment variables
// override file values, env winning over everything.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

// LoadDefault loads config from default path
func LoadDefault() (*Config, error) {
	return Load(ConfigPath())
}

// Save writes config to file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Listen, "STREAMGATE_LISTEN")
	setString(&c.Server.SecretKey, "STREAMGATE_SECRET_KEY")
	setFloat(&c.Server.RateLimit, "STREAMGATE_RATE_LIMIT")
	setInt(&c.Server.RateBurst, "STREAMGATE_RATE_BURST")
	setString(&c.Cache.TTL, "STREAMGATE_CACHE_TTL")
	setString(&c.Cache.RedisURL, "STREAMGATE_REDIS_URL")
	setInt(&c.Cache.MaxItems, "STREAMGATE_CACHE_MAX_ITEMS")
	setInt(&c.Extract.Slots, "STREAMGATE_EXTRACT_SLOTS")
	setString(&c.Paths.YtDlp, "STREAMGATE_YTDLP")
	setString(&c.Paths.FFmpeg, "STREAMGATE_FFMPEG")
	setString(&c.Paths.CookiesFile, "STREAMGATE_COOKIES_FILE")
	setString(&c.Paths.DownloadDir, "STREAMGATE_DOWNLOAD_DIR")
	setString(&c.Tasks.MaxAge, "STREAMGATE_TASK_MAX_AGE")
	setInt(&c.Tasks.Workers, "STREAMGATE_TASK_WORKERS")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// GetCacheTTL returns the cache TTL as a duration
func (c *Config) GetCacheTTL() (time.Duration, error) {
	return parseDuration(c.Cache.TTL, 30*time.Minute)
}

// GetQueueTimeout returns how long a request may wait for an extraction slot
func (c *Config) GetQueueTimeout() (time.Duration, error) {
	return parseDuration(c.Extract.QueueTimeout, 30*time.Second)
}

// GetTaskMaxAge returns how long finished task records are retained
func (c *Config) GetTaskMaxAge() (time.Duration, error) {
	return parseDuration(c.Tasks.MaxAge, time.Hour)
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %s", s)
	}
	return d, nil
}
