// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, Telegram credentials,
// daily usage quotas, cache/retry tuning, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-supplier-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig defines the bot transport settings.
type TelegramConfig struct {
	Token       string        // TELEGRAM_TOKEN
	PollTimeout time.Duration // long-poll timeout per GetUpdates call
	Disabled    bool          // run without the Telegram poller (ops API only)
}

// AIConfig defines the recognition/enhancement provider settings.
type AIConfig struct {
	Provider         string // AI_PROVIDER (openai)
	APIKey           string // OPENAI_API_KEY
	RecognitionModel string // vision-capable model for photo recognition
	EnhancementModel string // text model for content enhancement
}

// ObjStoreConfig defines the image object-store endpoint.
type ObjStoreConfig struct {
	URL   string // OBJSTORE_URL (upload endpoint)
	Token string // OBJSTORE_TOKEN (bearer auth, optional)
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful shutdown budget
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath string // SQLite path

	// Telegram
	Telegram TelegramConfig

	// AI services
	AI AIConfig

	// Object store
	ObjStore ObjStoreConfig

	// Daily usage quotas
	UsageTimezone         string         // IANA name used for day boundaries
	UsageLocation         *time.Location // parsed from UsageTimezone during Load
	RecognitionDailyLimit int            // recognitions per user per day
	EnhancementDailyLimit int            // enhancements per user per day

	// Read cache
	CacheTTL time.Duration // how long Data Store reads stay fresh

	// Outbound retry policy
	RetryMaxAttempts int           // total tries per external call
	RetryBaseDelay   time.Duration // first delay; doubles each attempt

	// Photo upload flow
	MaxPhotosPerBatch int   // photos accepted per upload batch
	MaxPhotoBytes     int64 // per-photo size cap
	AutoEnhance       bool  // run enhancement after product save

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given request token is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "data/supplier.db"),

		// Telegram
		Telegram: TelegramConfig{
			Token:       getenv("TELEGRAM_TOKEN", ""),
			PollTimeout: getdur("TELEGRAM_POLL_TIMEOUT", 30*time.Second),
			Disabled:    getbool("TELEGRAM_DISABLED", false),
		},

		// AI services
		AI: AIConfig{
			Provider:         strings.ToLower(getenv("AI_PROVIDER", "openai")),
			APIKey:           getenv("OPENAI_API_KEY", ""),
			RecognitionModel: getenv("AI_RECOGNITION_MODEL", "gpt-4o-mini"),
			EnhancementModel: getenv("AI_ENHANCEMENT_MODEL", "gpt-4o-mini"),
		},

		// Object store
		ObjStore: ObjStoreConfig{
			URL:   getenv("OBJSTORE_URL", ""),
			Token: getenv("OBJSTORE_TOKEN", ""),
		},

		// Daily usage quotas
		UsageTimezone:         getenv("USAGE_TIMEZONE", "Europe/Moscow"),
		RecognitionDailyLimit: getint("RECOGNITION_DAILY_LIMIT", 10),
		EnhancementDailyLimit: getint("ENHANCEMENT_DAILY_LIMIT", 10),

		// Read cache
		CacheTTL: getdur("CACHE_TTL", 60*time.Second),

		// Outbound retry policy
		RetryMaxAttempts: getint("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   getdur("RETRY_BASE_DELAY", time.Second),

		// Photo upload flow
		MaxPhotosPerBatch: getint("MAX_PHOTOS_PER_BATCH", 10),
		MaxPhotoBytes:     int64(getint("MAX_PHOTO_BYTES", 10<<20)),
		AutoEnhance:       getbool("AUTO_ENHANCE", true),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-supplier-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if !cfg.Telegram.Disabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		return cfg, errors.New("TELEGRAM_TOKEN must be set unless TELEGRAM_DISABLED=true")
	}
	if cfg.Telegram.PollTimeout <= 0 {
		return cfg, errors.New("TELEGRAM_POLL_TIMEOUT must be > 0")
	}
	loc, err := time.LoadLocation(cfg.UsageTimezone)
	if err != nil {
		return cfg, errors.New("USAGE_TIMEZONE must be a valid IANA timezone name")
	}
	cfg.UsageLocation = loc
	if cfg.RecognitionDailyLimit < 1 || cfg.EnhancementDailyLimit < 1 {
		return cfg, errors.New("daily limits must be >= 1")
	}
	if cfg.CacheTTL <= 0 {
		return cfg, errors.New("CACHE_TTL must be > 0")
	}
	if cfg.RetryMaxAttempts < 1 {
		return cfg, errors.New("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.RetryBaseDelay <= 0 {
		return cfg, errors.New("RETRY_BASE_DELAY must be > 0")
	}
	if cfg.MaxPhotosPerBatch < 1 {
		return cfg, errors.New("MAX_PHOTOS_PER_BATCH must be >= 1")
	}
	if cfg.MaxPhotoBytes <= 0 {
		return cfg, errors.New("MAX_PHOTO_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
