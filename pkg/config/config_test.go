package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osmsurvey.yaml")
	data := `
server:
  http_addr: ":9000"
overpass:
  url: http://overpass.local/api/interpreter
  timeout: 10s
limits:
  max_bbox_span: 0.05
sessions:
  retention: 30m
cors:
  allowed_origins: [https://survey.example.com]
log_level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	if err := cfg.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("http_addr = %s", cfg.Server.HTTPAddr)
	}
	if cfg.Overpass.URL != "http://overpass.local/api/interpreter" || cfg.Overpass.Timeout != 10*time.Second {
		t.Errorf("overpass = %+v", cfg.Overpass)
	}
	if cfg.Limits.MaxBBoxSpan != 0.05 || cfg.Limits.MaxFeatureTypes != 20 {
		t.Errorf("limits = %+v", cfg.Limits)
	}
	if cfg.Sessions.Retention != 30*time.Minute || cfg.Sessions.OutputDir != "api_outputs" {
		t.Errorf("sessions = %+v", cfg.Sessions)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://survey.example.com"}) {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %s", cfg.LogLevel)
	}
}

func TestLoadFileErrors(t *testing.T) {
	cfg := Default()
	if err := cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("server: [unclosed"), 0o644)
	if err := cfg.LoadFile(path); err == nil || !strings.Contains(err.Error(), "parsing config file") {
		t.Errorf("LoadFile() error = %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OVERPASS_URL":                "http://mirror/api/interpreter",
		"OSMSURVEY_HTTP_ADDR":         ":8081",
		"OSMSURVEY_OVERPASS_RPS":      "2.5",
		"OSMSURVEY_OVERPASS_BURST":    "3",
		"OSMSURVEY_SESSION_RETENTION": "2h",
		"OSMSURVEY_ENABLE_MONITORING": "true",
		"OSMSURVEY_CORS_ORIGINS":      "https://a.example, https://b.example,",
		"OSMSURVEY_AUTH_TOKEN":        "f9c2a71e0b3d4c58a6e1",
		"OSMSURVEY_MAX_ELEMENTS":      "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Overpass.URL != "http://mirror/api/interpreter" || cfg.Overpass.RequestsPerSecond != 2.5 || cfg.Overpass.Burst != 3 {
		t.Errorf("overpass = %+v", cfg.Overpass)
	}
	if cfg.Server.HTTPAddr != ":8081" || !cfg.Server.EnableMonitoring {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Sessions.Retention != 2*time.Hour {
		t.Errorf("retention = %v", cfg.Sessions.Retention)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Limits.MaxElements != 50000 {
		t.Errorf("empty variable should not override, max_elements = %d", cfg.Limits.MaxElements)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestApplyEnvParseErrors(t *testing.T) {
	env := map[string]string{
		"OSMSURVEY_OVERPASS_RPS":      "fast",
		"OSMSURVEY_SESSION_RETENTION": "forever",
	}
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, key := range []string{"OSMSURVEY_OVERPASS_RPS", "OSMSURVEY_SESSION_RETENTION"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.local")
	if err := os.WriteFile(path, []byte("OSMSURVEY_TEST_ENV_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("OSMSURVEY_TEST_ENV_VALUE") })

	if err := LoadEnvFiles(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if got := os.Getenv("OSMSURVEY_TEST_ENV_VALUE"); got != "from-file" {
		t.Errorf("env value = %q", got)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("OSMSURVEY_OUTPUT_DIR", filepath.Join(t.TempDir(), "out"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasSuffix(cfg.Sessions.OutputDir, "out") {
		t.Errorf("output_dir = %s", cfg.Sessions.OutputDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no overpass url", func(c *Config) { c.Overpass.URL = "" }, "overpass.url"},
		{"zero rps", func(c *Config) { c.Overpass.RequestsPerSecond = 0 }, "requests_per_second"},
		{"span", func(c *Config) { c.Limits.MaxBBoxSpan = -1 }, "max_bbox_span"},
		{"sessions", func(c *Config) { c.Sessions.MaxSessions = 0 }, "max_sessions"},
		{"weak token", func(c *Config) { c.Auth.Token = "secretsecretsecret" }, "auth.token"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative rate", func(c *Config) { c.Limits.CSVPerMinute = -1 }, "csv_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if l, err := ParseLevel("DEBUG"); err != nil || l.String() != "DEBUG" {
		t.Errorf("ParseLevel(DEBUG) = %v, %v", l, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error")
	}
}
