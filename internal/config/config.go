package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// FTPConfig points at the static file host serving uploaded business images.
type FTPConfig struct {
	Host          string        `env:"HOST"`
	Port          int           `env:"PORT" envDefault:"21"`
	User          string        `env:"USER"`
	Password      string        `env:"PASSWORD"`
	RemoteRoot    string        `env:"REMOTE_ROOT" envDefault:"/public_html/business-images"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Addr returns host:port for the FTP dialer.
func (c FTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CloudinaryConfig configures the alternative image store.
type CloudinaryConfig struct {
	URL    string `env:"URL"`
	Folder string `env:"FOLDER" envDefault:"business-images"`
}

// RedisConfig configures the listing cache. An empty address disables caching.
type RedisConfig struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"6h"`
}

// PlacesConfig configures the Google Places client.
type PlacesConfig struct {
	APIKey            string  `env:"API_KEY"`
	RequestsPerSecond float64 `env:"RPS" envDefault:"5"`
	PhotoMaxWidth     int64   `env:"PHOTO_MAX_WIDTH" envDefault:"800"`
	LanguageCode      string  `env:"LANGUAGE" envDefault:"en"`
}

// IngestConfig bounds the admin image ingestion pipeline.
type IngestConfig struct {
	DefaultConcurrency int    `env:"DEFAULT_CONCURRENCY" envDefault:"1"`
	MaxConcurrency     int    `env:"MAX_CONCURRENCY" envDefault:"10"`
	DefaultStrategy    string `env:"DEFAULT_STRATEGY" envDefault:"google"`
}

// Config aggregates application-wide configuration values.
type Config struct {
	AppEnv              string `env:"APP_ENV" envDefault:"development"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	Port                string `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL"`
	DatabaseSimple      bool   `env:"DATABASE_SIMPLE_PROTOCOL" envDefault:"false"`
	DatabaseConns       int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	DatabaseAutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"true"`
	JWTSecret           string `env:"JWT_SECRET" envDefault:"dev-secret"`
	ImageStore          string `env:"IMAGE_STORE" envDefault:"ftp"`
	AdminEmail          string `env:"ADMIN_EMAIL"`
	AdminPassword       string `env:"ADMIN_PASSWORD"`

	FTP        FTPConfig        `envPrefix:"FTP_"`
	Cloudinary CloudinaryConfig `envPrefix:"CLOUDINARY_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Places     PlacesConfig     `envPrefix:"GOOGLE_PLACES_"`
	Ingest     IngestConfig     `envPrefix:"INGEST_"`

	TokenTTLRaw         string `env:"JWT_TTL" envDefault:"24h"`
	RateLimitReportsRaw string `env:"RATE_LIMIT_REPORTS" envDefault:"10/min"`
	RateLimitBatchRaw   string `env:"RATE_LIMIT_BATCH" envDefault:"6/min"`

	TokenTTL         time.Duration
	RateLimitReports RateLimitConfig
	RateLimitBatch   RateLimitConfig
}

// Load reads configuration from environment variables and applies sane defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.TokenTTL = parseDuration(cfg.TokenTTLRaw)

	reports, err := parseRateLimit(cfg.RateLimitReportsRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REPORTS value: %w", err)
	}
	cfg.RateLimitReports = reports

	batch, err := parseRateLimit(cfg.RateLimitBatchRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BATCH value: %w", err)
	}
	cfg.RateLimitBatch = batch

	cfg.ImageStore = strings.ToLower(strings.TrimSpace(cfg.ImageStore))
	switch cfg.ImageStore {
	case "ftp", "cloudinary":
	default:
		return nil, fmt.Errorf("unsupported IMAGE_STORE %q (expected ftp or cloudinary)", cfg.ImageStore)
	}

	if cfg.Ingest.DefaultConcurrency <= 0 {
		cfg.Ingest.DefaultConcurrency = 1
	}
	if cfg.Ingest.MaxConcurrency < cfg.Ingest.DefaultConcurrency {
		cfg.Ingest.MaxConcurrency = cfg.Ingest.DefaultConcurrency
	}

	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func parseDuration(input string) time.Duration {
	d, err := time.ParseDuration(input)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
