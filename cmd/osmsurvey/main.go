package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/NERVsystems/osmsurvey/pkg/config"
	"github.com/NERVsystems/osmsurvey/pkg/monitoring"
	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/server"
	"github.com/NERVsystems/osmsurvey/pkg/session"
	"github.com/NERVsystems/osmsurvey/pkg/survey"
	"github.com/NERVsystems/osmsurvey/pkg/tools"
	"github.com/NERVsystems/osmsurvey/pkg/tracing"
	ver "github.com/NERVsystems/osmsurvey/pkg/version"
)

var (
	configPath      string
	showVersionFlag bool
	debug           bool

	httpAddr    string
	httpBaseURL string
	enableStdio bool

	enableMonitoring bool
	monitoringAddr   string

	overpassURL   string
	overpassRPS   float64
	overpassBurst int
	userAgent     string

	outputDir string
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.BoolVar(&showVersionFlag, "version", false, "Display version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")

	flag.StringVar(&httpAddr, "http-addr", "", "HTTP API and MCP SSE listen address")
	flag.StringVar(&httpBaseURL, "base-url", "", "Public base URL used in download links and the SSE endpoint event")
	flag.BoolVar(&enableStdio, "enable-stdio", false, "Also serve MCP over stdin/stdout")

	flag.BoolVar(&enableMonitoring, "enable-monitoring", false, "Serve metrics and health on a separate listener")
	flag.StringVar(&monitoringAddr, "monitoring-addr", "", "Monitoring server address")

	flag.StringVar(&overpassURL, "overpass-url", "", "Overpass interpreter endpoint")
	flag.Float64Var(&overpassRPS, "overpass-rps", 0, "Overpass rate limit in requests per second")
	flag.IntVar(&overpassBurst, "overpass-burst", 0, "Overpass rate limit burst size")
	flag.StringVar(&userAgent, "user-agent", "", "User-Agent string for Overpass requests")

	flag.StringVar(&outputDir, "output-dir", "", "Directory generated report sessions are written to")
}

func main() {
	flag.Parse()

	if showVersionFlag {
		fmt.Println(ver.String())
		return
	}

	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logLevel, _ := config.ParseLevel(cfg.LogLevel)
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// applyFlags overlays flags that were set explicitly on the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.Server.HTTPAddr = httpAddr
		case "base-url":
			cfg.Server.BaseURL = httpBaseURL
		case "enable-stdio":
			cfg.Server.EnableStdio = enableStdio
		case "enable-monitoring":
			cfg.Server.EnableMonitoring = enableMonitoring
		case "monitoring-addr":
			cfg.Server.MonitoringAddr = monitoringAddr
		case "overpass-url":
			cfg.Overpass.URL = overpassURL
		case "overpass-rps":
			cfg.Overpass.RequestsPerSecond = overpassRPS
		case "overpass-burst":
			cfg.Overpass.Burst = overpassBurst
		case "user-agent":
			cfg.Overpass.UserAgent = userAgent
		case "output-dir":
			cfg.Sessions.OutputDir = outputDir
		}
	})
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, ver.BuildVersion)
	if err != nil {
		// tracing is optional
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv("OTLP_ENDPOINT"); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	logger.Info("starting OSM survey server",
		"version", ver.BuildVersion,
		"http_addr", cfg.Server.HTTPAddr,
		"base_url", cfg.Server.BaseURL,
		"overpass_url", cfg.Overpass.URL,
		"overpass_rps", cfg.Overpass.RequestsPerSecond,
		"overpass_burst", cfg.Overpass.Burst,
		"output_dir", cfg.Sessions.OutputDir,
		"stdio_enabled", cfg.Server.EnableStdio,
		"monitoring_enabled", cfg.Server.EnableMonitoring)

	monitoring.InstallOverpassHooks()
	client := osm.NewOverpassClient(cfg.Overpass.URL,
		osm.WithRateLimit(cfg.Overpass.RequestsPerSecond, cfg.Overpass.Burst),
		osm.WithUserAgent(cfg.Overpass.UserAgent),
		osm.WithTimeout(cfg.Overpass.Timeout),
		osm.WithLogger(logger),
	)

	store, err := session.NewStore(cfg.Sessions.OutputDir, session.Options{
		MaxSessions: cfg.Sessions.MaxSessions,
		Retention:   cfg.Sessions.Retention,
		Logger:      logger,
		OnCreate:    monitoring.SessionOpened,
		OnEvict:     monitoring.SessionClosed,
	})
	if err != nil {
		return err
	}
	defer store.Purge()

	svc := survey.NewService(client, survey.Options{
		Limits: survey.Limits{
			MaxBBoxSpan:     cfg.Limits.MaxBBoxSpan,
			MaxFeatureTypes: cfg.Limits.MaxFeatureTypes,
			MaxElements:     cfg.Limits.MaxElements,
		},
		Sessions: store,
		Logger:   logger,
	})

	registry := tools.NewRegistry(logger, svc, cfg.Server.BaseURL)
	mcp := server.NewServer(registry, logger)

	health := monitoring.NewHealthChecker(monitoring.ServiceName, ver.BuildVersion)
	defer health.Shutdown()
	health.SetTransportInfo(func() *monitoring.TransportInfo {
		return &monitoring.TransportInfo{
			HTTPAddr:    cfg.Server.HTTPAddr,
			MCPSSE:      true,
			MCPStdio:    cfg.Server.EnableStdio,
			Sessions:    store.Len(),
			OverpassURL: client.BaseURL(),
		}
	})
	overpassMonitor := monitoring.NewConnectionMonitor("overpass", health, client.CheckHealth, time.Minute)
	overpassMonitor.Start()
	defer overpassMonitor.Stop()

	api := server.NewAPI(svc, server.APIOptions{
		Limits: server.RouteLimits{
			Query:    cfg.Limits.QueryPerMinute,
			Generate: cfg.Limits.GeneratePerMinute,
			CSV:      cfg.Limits.CSVPerMinute,
			Download: cfg.Limits.DownloadPerMinute,
			Info:     cfg.Limits.InfoPerMinute,
		},
		Health: health,
		Logger: logger,
	})
	httpServer := server.NewHTTPServer(api, mcp, server.HTTPConfig{
		Addr:           cfg.Server.HTTPAddr,
		BaseURL:        cfg.Server.BaseURL,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthToken:      cfg.Auth.Token,
		ServeMetrics:   !cfg.Server.EnableMonitoring,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if cfg.Server.EnableMonitoring {
		monitoringServer := newMonitoringServer(cfg.Server.MonitoringAddr, health)
		g.Go(func() error {
			logger.Info("starting monitoring server", "addr", cfg.Server.MonitoringAddr)
			if err := monitoringServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("monitoring server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return monitoringServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.Server.EnableStdio {
		g.Go(func() error {
			if err := mcp.RunStdio(gctx); err != nil {
				// HTTP keeps serving when stdio fails
				logger.Error("stdio transport error", "error", err)
			}
			return nil
		})
	}

	logger.Info("server_ready",
		"transports", transports(cfg),
		"auth_required", cfg.Auth.Token != "")

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func newMonitoringServer(addr string, health *monitoring.HealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", health.HealthHandler())
	mux.HandleFunc("/ready", health.ReadinessHandler())
	mux.HandleFunc("/live", health.LivenessHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
}

func transports(cfg *config.Config) []string {
	t := []string{"http", "mcp_sse"}
	if cfg.Server.EnableStdio {
		t = append(t, "stdio")
	}
	return t
}
