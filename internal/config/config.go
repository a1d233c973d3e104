package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded config can't be used.
var ErrInvalidConfig = errors.New("invalid config")

// ServerConfig is where and how the HTTP server listens.
type ServerConfig struct {
	Bind         string        `yaml:"bind"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr is the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Bind, s.Port)
}

// UIConfig picks the form revision and where its templates come from.
type UIConfig struct {
	// Revision is "classic", "themed" or "animated".
	Revision string `yaml:"revision"`
	Title    string `yaml:"title"`

	// DefaultTheme is used until the visitor toggles it: "light" or "dark".
	DefaultTheme string `yaml:"default_theme"`

	// TemplatesDir, when set, serves templates from disk instead of the
	// ones built into the binary.
	TemplatesDir string `yaml:"templates_dir"`

	// Reload watches TemplatesDir and drops cached templates when it
	// changes.
	Reload bool `yaml:"reload"`
}

// PredictionConfig points at the prediction service.
type PredictionConfig struct {
	Endpoint         string        `yaml:"endpoint"`
	Timeout          time.Duration `yaml:"timeout"`
	LoadModelOnStart bool          `yaml:"load_model_on_start"`
}

// PhotosConfig configures the background photo API. Photos are only
// fetched for themed revisions.
type PhotosConfig struct {
	APIURL    string        `yaml:"api_url"`
	AccessKey string        `yaml:"access_key"`
	Query     string        `yaml:"query"`
	Refresh   time.Duration `yaml:"refresh"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Enabled reports whether background photos can be fetched at all.
func (p PhotosConfig) Enabled() bool {
	return p.APIURL != "" && p.AccessKey != ""
}

// HistoryConfig configures the store of past submissions.
type HistoryConfig struct {
	// Path of the SQLite database. History is off when it's empty.
	Path string `yaml:"path"`

	// Recent is how many past predictions are shown next to the form.
	Recent int `yaml:"recent"`
}

// RateLimitConfig limits how often one client can submit the form.
type RateLimitConfig struct {
	// PerMinute is the number of submissions a single client can make per
	// minute. Zero disables rate limiting.
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the whole configuration of the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	UI         UIConfig         `yaml:"ui"`
	Prediction PredictionConfig `yaml:"prediction"`
	Photos     PhotosConfig     `yaml:"photos"`
	History    HistoryConfig    `yaml:"history"`
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`
	Log        LogConfig        `yaml:"log"`
}

// DefaultConfig returns the configuration used for anything a file or the
// environment doesn't set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		UI: UIConfig{
			Revision:     "animated",
			Title:        "Predict Impressions",
			DefaultTheme: "light",
		},
		Prediction: PredictionConfig{
			Endpoint: "http://localhost:5000",
			Timeout:  10 * time.Second,
		},
		Photos: PhotosConfig{
			APIURL:  "https://api.unsplash.com",
			Query:   "instagram",
			Refresh: 5 * time.Minute,
			Timeout: 5 * time.Second,
		},
		History: HistoryConfig{
			Recent: 5,
		},
		RateLimit: RateLimitConfig{
			PerMinute: 30,
			Burst:     5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and merges it over the defaults, then
// overlays environment variables. A missing file is not an error; the
// defaults and environment are used on their own.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	cfg.expandPaths()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFromBytes parses YAML config from bytes and merges it with defaults and
// the environment.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.expandPaths()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) expandPaths() {
	c.History.Path = expandHome(c.History.Path)
	c.UI.TemplatesDir = expandHome(c.UI.TemplatesDir)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}

// applyEnv overlays environment variables on top of config values.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"REACH_BIND":                &c.Server.Bind,
		"REACH_REVISION":            &c.UI.Revision,
		"REACH_TITLE":               &c.UI.Title,
		"REACH_DEFAULT_THEME":       &c.UI.DefaultTheme,
		"REACH_TEMPLATES_DIR":       &c.UI.TemplatesDir,
		"REACH_PREDICTION_ENDPOINT": &c.Prediction.Endpoint,
		"REACH_PHOTOS_API_URL":      &c.Photos.APIURL,
		"REACH_PHOTOS_ACCESS_KEY":   &c.Photos.AccessKey,
		"REACH_PHOTOS_QUERY":        &c.Photos.Query,
		"REACH_HISTORY_PATH":        &c.History.Path,
		"REACH_LOG_LEVEL":           &c.Log.Level,
		"REACH_LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	// the photo API's own variable name is honored too
	if v := os.Getenv("UNSPLASH_ACCESS_KEY"); v != "" && os.Getenv("REACH_PHOTOS_ACCESS_KEY") == "" {
		c.Photos.AccessKey = v
	}
	if v := os.Getenv("REACH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REACH_PORT=%q is not a number", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("REACH_PREDICTION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: REACH_PREDICTION_TIMEOUT=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Prediction.Timeout = d
	}
	return nil
}

// Validate reports the first problem that would stop the service from
// starting.
func (c *Config) Validate() error {
	switch c.UI.Revision {
	case "classic", "themed", "animated":
	default:
		return fmt.Errorf("%w: ui.revision must be classic, themed or animated, got %q", ErrInvalidConfig, c.UI.Revision)
	}
	switch c.UI.DefaultTheme {
	case "light", "dark":
	default:
		return fmt.Errorf("%w: ui.default_theme must be light or dark, got %q", ErrInvalidConfig, c.UI.DefaultTheme)
	}
	if c.UI.Reload && c.UI.TemplatesDir == "" {
		return fmt.Errorf("%w: ui.reload needs ui.templates_dir", ErrInvalidConfig)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Prediction.Endpoint == "" {
		return fmt.Errorf("%w: prediction.endpoint is required", ErrInvalidConfig)
	}
	if c.Prediction.Timeout <= 0 {
		return fmt.Errorf("%w: prediction.timeout must be positive", ErrInvalidConfig)
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("%w: ratelimit values cannot be negative", ErrInvalidConfig)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return level, nil
}

// NewLogger builds the process logger described by the config.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
