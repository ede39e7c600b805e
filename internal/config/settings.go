package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment keys
const (
	EnvPort                 = "PORT"
	EnvBaseURL              = "BASE_URL"
	EnvCORSOrigin           = "CORS_ORIGIN"
	EnvDownloadDir          = "DOWNLOAD_DIR"
	EnvCleanupInterval      = "CLEANUP_INTERVAL"
	EnvFileMaxAge           = "FILE_MAX_AGE"
	EnvCleanupRecoveryDelay = "CLEANUP_RECOVERY_DELAY"
	EnvExtractionTimeout    = "EXTRACTION_TIMEOUT"
	EnvMaxParallel          = "MAX_PARALLEL_DOWNLOADS"
	EnvDownloadRetries      = "DOWNLOAD_RETRIES"
	EnvAllowedHosts         = "ALLOWED_HOSTS"
	EnvYTDLPPath            = "YTDLP_PATH"
	EnvYTDLPAutoInstall     = "YTDLP_AUTO_INSTALL"
	EnvRedisURL             = "REDIS_URL"
	EnvRateLimitRPS         = "RATE_LIMIT_RPS"
	EnvRateLimitBurst       = "RATE_LIMIT_BURST"
	EnvMetricsEnabled       = "METRICS_ENABLED"
	EnvLogLevel             = "LOG_LEVEL"
	EnvLogFormat            = "LOG_FORMAT"
)

// Default values
const (
	DefaultPort                 = 5000
	DefaultCORSOrigin           = "*"
	DefaultDownloadDir          = "./downloads"
	DefaultCleanupInterval      = time.Hour
	DefaultFileMaxAge           = 24 * time.Hour
	DefaultCleanupRecoveryDelay = 5 * time.Minute
	DefaultExtractionTimeout    = 10 * time.Minute
	DefaultMaxParallel          = 2
	DefaultDownloadRetries      = 1
	DefaultRateLimitBurst       = 5
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"

	MinMaxParallel = 1
	MaxMaxParallel = 10
)

// DefaultAllowedHosts lists the video hosts accepted by default
var DefaultAllowedHosts = []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}

// Settings holds the process-wide configuration. It is built once at startup
// and passed by value; nothing mutates it afterwards.
type Settings struct {
	Port                 int           `yaml:"port" validate:"min=1,max=65535"`
	BaseURL              string        `yaml:"base_url" validate:"required,url"`
	CORSOrigin           string        `yaml:"cors_origin" validate:"required"`
	DownloadDir          string        `yaml:"download_dir" validate:"required"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval" validate:"gt=0"`
	FileMaxAge           time.Duration `yaml:"file_max_age" validate:"gt=0"`
	CleanupRecoveryDelay time.Duration `yaml:"cleanup_recovery_delay" validate:"gt=0"`
	ExtractionTimeout    time.Duration `yaml:"extraction_timeout" validate:"gt=0"`
	MaxParallelDownloads int           `yaml:"max_parallel_downloads" validate:"min=1,max=10"`
	DownloadRetries      int           `yaml:"download_retries" validate:"min=0,max=5"`
	AllowedHosts         []string      `yaml:"allowed_hosts" validate:"min=1,dive,hostname"`
	YTDLPPath            string        `yaml:"ytdlp_path"`
	YTDLPAutoInstall     bool          `yaml:"ytdlp_auto_install"`
	RedisURL             string        `yaml:"redis_url" validate:"omitempty,url"`
	RateLimitRPS         float64       `yaml:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst       int           `yaml:"rate_limit_burst" validate:"gte=1"`
	MetricsEnabled       bool          `yaml:"metrics_enabled"`
	LogLevel             string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat            string        `yaml:"log_format" validate:"oneof=text json"`
}

// Defaults returns the settings used when nothing is configured
func Defaults() Settings {
	return Settings{
		Port:                 DefaultPort,
		CORSOrigin:           DefaultCORSOrigin,
		DownloadDir:          DefaultDownloadDir,
		CleanupInterval:      DefaultCleanupInterval,
		FileMaxAge:           DefaultFileMaxAge,
		CleanupRecoveryDelay: DefaultCleanupRecoveryDelay,
		ExtractionTimeout:    DefaultExtractionTimeout,
		MaxParallelDownloads: DefaultMaxParallel,
		DownloadRetries:      DefaultDownloadRetries,
		AllowedHosts:         append([]string(nil), DefaultAllowedHosts...),
		RateLimitBurst:       DefaultRateLimitBurst,
		MetricsEnabled:       true,
		LogLevel:             DefaultLogLevel,
		LogFormat:            DefaultLogFormat,
	}
}

// Load builds settings from defaults, an optional YAML file and the
// environment, in that order, and validates the result.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path != "" {
		// #nosec G304 -- config path is operator-provided.
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}

	if s.BaseURL == "" {
		s.BaseURL = fmt.Sprintf("http://localhost:%d", s.Port)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")
	s.AllowedHosts = normalizeHosts(s.AllowedHosts)

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks field constraints
func (s Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to
func (s Settings) ListenAddr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// RetentionIsSafe reports whether files outlive the longest extraction. The
// reaper does not track in-flight downloads, so a smaller max age can delete
// a file that is still being written or served.
func (s Settings) RetentionIsSafe() bool {
	return s.FileMaxAge > s.ExtractionTimeout
}

func (s *Settings) applyEnv() error {
	var err error
	if s.Port, err = intEnv(EnvPort, s.Port); err != nil {
		return err
	}
	s.BaseURL = stringEnv(EnvBaseURL, s.BaseURL)
	s.CORSOrigin = stringEnv(EnvCORSOrigin, s.CORSOrigin)
	s.DownloadDir = stringEnv(EnvDownloadDir, s.DownloadDir)
	if s.CleanupInterval, err = durationEnv(EnvCleanupInterval, s.CleanupInterval); err != nil {
		return err
	}
	if s.FileMaxAge, err = durationEnv(EnvFileMaxAge, s.FileMaxAge); err != nil {
		return err
	}
	if s.CleanupRecoveryDelay, err = durationEnv(EnvCleanupRecoveryDelay, s.CleanupRecoveryDelay); err != nil {
		return err
	}
	if s.ExtractionTimeout, err = durationEnv(EnvExtractionTimeout, s.ExtractionTimeout); err != nil {
		return err
	}
	if s.MaxParallelDownloads, err = intEnv(EnvMaxParallel, s.MaxParallelDownloads); err != nil {
		return err
	}
	if s.DownloadRetries, err = intEnv(EnvDownloadRetries, s.DownloadRetries); err != nil {
		return err
	}
	if raw := strings.TrimSpace(os.Getenv(EnvAllowedHosts)); raw != "" {
		s.AllowedHosts = strings.Split(raw, ",")
	}
	s.YTDLPPath = stringEnv(EnvYTDLPPath, s.YTDLPPath)
	if s.YTDLPAutoInstall, err = boolEnv(EnvYTDLPAutoInstall, s.YTDLPAutoInstall); err != nil {
		return err
	}
	s.RedisURL = stringEnv(EnvRedisURL, s.RedisURL)
	if raw := strings.TrimSpace(os.Getenv(EnvRateLimitRPS)); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvRateLimitRPS, err)
		}
		s.RateLimitRPS = v
	}
	if s.RateLimitBurst, err = intEnv(EnvRateLimitBurst, s.RateLimitBurst); err != nil {
		return err
	}
	if s.MetricsEnabled, err = boolEnv(EnvMetricsEnabled, s.MetricsEnabled); err != nil {
		return err
	}
	s.LogLevel = strings.ToLower(stringEnv(EnvLogLevel, s.LogLevel))
	s.LogFormat = strings.ToLower(stringEnv(EnvLogFormat, s.LogFormat))
	return nil
}

func stringEnv(key, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(key)); raw != "" {
		return raw
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

// durationEnv accepts Go durations ("90m") and plain seconds ("3600").
func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "www.")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
