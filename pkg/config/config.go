// Package config loads service settings from defaults, an optional YAML file,
// .env files and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/NERVsystems/osmsurvey/pkg/core"
)

// Config holds every tunable of the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Overpass OverpassConfig `yaml:"overpass"`
	Limits   LimitsConfig   `yaml:"limits"`
	Sessions SessionsConfig `yaml:"sessions"`
	CORS     CORSConfig     `yaml:"cors"`
	Auth     AuthConfig     `yaml:"auth"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig controls the HTTP API, MCP transports and metrics listener.
type ServerConfig struct {
	HTTPAddr         string        `yaml:"http_addr"`
	BaseURL          string        `yaml:"base_url"`
	EnableStdio      bool          `yaml:"enable_stdio"`
	EnableMonitoring bool          `yaml:"enable_monitoring"`
	MonitoringAddr   string        `yaml:"monitoring_addr"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
}

// OverpassConfig controls the upstream map-data client.
type OverpassConfig struct {
	URL               string        `yaml:"url"`
	UserAgent         string        `yaml:"user_agent"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LimitsConfig holds request validation ceilings and per-IP rate limits.
type LimitsConfig struct {
	MaxBBoxSpan       float64 `yaml:"max_bbox_span"`
	MaxFeatureTypes   int     `yaml:"max_feature_types"`
	MaxElements       int     `yaml:"max_elements"`
	QueryPerMinute    int     `yaml:"query_per_minute"`
	GeneratePerMinute int     `yaml:"generate_per_minute"`
	CSVPerMinute      int     `yaml:"csv_per_minute"`
	DownloadPerMinute int     `yaml:"download_per_minute"`
	InfoPerMinute     int     `yaml:"info_per_minute"`
}

// SessionsConfig controls where generated reports live and for how long.
type SessionsConfig struct {
	OutputDir   string        `yaml:"output_dir"`
	Retention   time.Duration `yaml:"retention"`
	MaxSessions int           `yaml:"max_sessions"`
}

// CORSConfig is the browser origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuthConfig enables bearer authentication when Token is set.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8000",
			BaseURL:         "http://localhost:8000",
			MonitoringAddr:  ":9090",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Overpass: OverpassConfig{
			URL:               "https://overpass-api.de/api/interpreter",
			UserAgent:         "osmsurvey/0.1.0",
			RequestsPerSecond: 1,
			Burst:             1,
			Timeout:           25 * time.Second,
		},
		Limits: LimitsConfig{
			MaxBBoxSpan:       0.1,
			MaxFeatureTypes:   20,
			MaxElements:       50000,
			QueryPerMinute:    20,
			GeneratePerMinute: 10,
			CSVPerMinute:      10,
			DownloadPerMinute: 30,
			InfoPerMinute:     60,
		},
		Sessions: SessionsConfig{
			OutputDir:   "api_outputs",
			Retention:   time.Hour,
			MaxSessions: 1000,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:8080",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:8080",
			},
		},
		LogLevel: "info",
	}
}

// Load builds a configuration from defaults, the YAML file at path (when
// non-empty), the given .env files and the process environment.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// LoadEnvFiles loads each existing file into the process environment.
// Variables already set are not overwritten, and missing files are skipped.
func LoadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables resolved through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("OSMSURVEY_HTTP_ADDR", &c.Server.HTTPAddr)
	str("OSMSURVEY_BASE_URL", &c.Server.BaseURL)
	boolean("OSMSURVEY_ENABLE_STDIO", &c.Server.EnableStdio)
	boolean("OSMSURVEY_ENABLE_MONITORING", &c.Server.EnableMonitoring)
	str("OSMSURVEY_MONITORING_ADDR", &c.Server.MonitoringAddr)

	str("OVERPASS_URL", &c.Overpass.URL)
	str("OSMSURVEY_USER_AGENT", &c.Overpass.UserAgent)
	float("OSMSURVEY_OVERPASS_RPS", &c.Overpass.RequestsPerSecond)
	num("OSMSURVEY_OVERPASS_BURST", &c.Overpass.Burst)
	duration("OSMSURVEY_OVERPASS_TIMEOUT", &c.Overpass.Timeout)

	float("OSMSURVEY_MAX_BBOX_SPAN", &c.Limits.MaxBBoxSpan)
	num("OSMSURVEY_MAX_FEATURE_TYPES", &c.Limits.MaxFeatureTypes)
	num("OSMSURVEY_MAX_ELEMENTS", &c.Limits.MaxElements)

	str("OSMSURVEY_OUTPUT_DIR", &c.Sessions.OutputDir)
	duration("OSMSURVEY_SESSION_RETENTION", &c.Sessions.Retention)
	num("OSMSURVEY_MAX_SESSIONS", &c.Sessions.MaxSessions)

	if v, ok := lookup("OSMSURVEY_CORS_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORS.AllowedOrigins = origins
	}

	str("OSMSURVEY_AUTH_TOKEN", &c.Auth.Token)
	str("OSMSURVEY_LOG_LEVEL", &c.LogLevel)

	return errors.Join(errs...)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}
	if c.Server.EnableMonitoring && c.Server.MonitoringAddr == "" {
		errs = append(errs, errors.New("server.monitoring_addr is required when monitoring is enabled"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if c.Overpass.URL == "" {
		errs = append(errs, errors.New("overpass.url is required"))
	}
	if c.Overpass.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("overpass.requests_per_second must be positive"))
	}
	if c.Overpass.Burst < 1 {
		errs = append(errs, errors.New("overpass.burst must be at least 1"))
	}
	if c.Overpass.Timeout <= 0 {
		errs = append(errs, errors.New("overpass.timeout must be positive"))
	}
	if c.Limits.MaxBBoxSpan <= 0 || c.Limits.MaxBBoxSpan > 180 {
		errs = append(errs, errors.New("limits.max_bbox_span must be in (0, 180]"))
	}
	if c.Limits.MaxFeatureTypes < 1 {
		errs = append(errs, errors.New("limits.max_feature_types must be at least 1"))
	}
	if c.Limits.MaxElements < 1 {
		errs = append(errs, errors.New("limits.max_elements must be at least 1"))
	}
	for name, v := range map[string]int{
		"query_per_minute":    c.Limits.QueryPerMinute,
		"generate_per_minute": c.Limits.GeneratePerMinute,
		"csv_per_minute":      c.Limits.CSVPerMinute,
		"download_per_minute": c.Limits.DownloadPerMinute,
		"info_per_minute":     c.Limits.InfoPerMinute,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("limits.%s must not be negative", name))
		}
	}
	if c.Sessions.OutputDir == "" {
		errs = append(errs, errors.New("sessions.output_dir is required"))
	}
	if c.Sessions.Retention <= 0 {
		errs = append(errs, errors.New("sessions.retention must be positive"))
	}
	if c.Sessions.MaxSessions < 1 {
		errs = append(errs, errors.New("sessions.max_sessions must be at least 1"))
	}
	if c.Auth.Token != "" {
		if err := core.ValidateAuthToken(c.Auth.Token); err != nil {
			errs = append(errs, fmt.Errorf("auth.token: %w", err))
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
