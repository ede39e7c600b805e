package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ytget/yt-download-server/internal/catalog"
	"github.com/ytget/yt-download-server/internal/config"
	"github.com/ytget/yt-download-server/internal/download"
	"github.com/ytget/yt-download-server/internal/logging"
	"github.com/ytget/yt-download-server/internal/metrics"
	"github.com/ytget/yt-download-server/internal/platform"
	"github.com/ytget/yt-download-server/internal/reaper"
	"github.com/ytget/yt-download-server/internal/server"
	"github.com/ytget/yt-download-server/internal/store"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

const (
	AppName = "yt-download-server"

	EnvConfigFile = "CONFIG_FILE"

	ReadHeaderTimeout = 10 * time.Second
	IdleTimeout       = 120 * time.Second
	ShutdownTimeout   = 30 * time.Second
	InstallTimeout    = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flagSet := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv(EnvConfigFile), "path to a YAML config file")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("%s %s\n", AppName, version)
		return nil
	}

	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(settings.LogLevel, settings.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	logger.Info("starting", "app", AppName, "version", version, "addr", settings.ListenAddr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(settings.DownloadDir)
	if err != nil {
		return err
	}
	logger.Info("artifact store ready", "dir", st.Dir())

	if !settings.RetentionIsSafe() {
		logger.Warn("file max age does not exceed the extraction timeout; files may be reaped while still in use",
			"file_max_age", settings.FileMaxAge, "extraction_timeout", settings.ExtractionTimeout)
	}

	executable, err := resolveExtractor(ctx, settings, logger)
	if err != nil {
		return err
	}

	var m interface {
		metrics.DownloadMetrics
		metrics.ReaperMetrics
		metrics.HTTPMetrics
	} = metrics.Noop{}
	var metricsHandler http.Handler
	if settings.MetricsEnabled {
		prom := metrics.NewProm(metrics.Namespace)
		m, metricsHandler = prom, prom.Handler()
	}

	cat, err := openCatalog(settings, logger)
	if err != nil {
		return err
	}
	defer cat.Close()

	gateway := download.NewService(st, download.NewYTDLPExtractor(executable, logger), download.Options{
		AllowedHosts: settings.AllowedHosts,
		Timeout:      settings.ExtractionTimeout,
		Retries:      settings.DownloadRetries,
		MaxParallel:  settings.MaxParallelDownloads,
		Logger:       logger,
		Metrics:      m,
	})

	playlists := platform.NewPlaylistParserService(platform.NewHostAllowList(settings.AllowedHosts...))
	playlists.SetTimeout(settings.ExtractionTimeout)

	r := reaper.New(st, reaper.Policy{
		CleanupInterval: settings.CleanupInterval,
		MaxAge:          settings.FileMaxAge,
		RecoveryDelay:   settings.CleanupRecoveryDelay,
	}, reaper.Options{
		Logger:   logger,
		Metrics:  m,
		OnDelete: forgetArtifact(cat, logger),
	})
	r.Start(ctx)
	defer r.Stop()

	srv := server.New(server.Config{
		BaseURL:        settings.BaseURL,
		CORSOrigin:     settings.CORSOrigin,
		RateLimitRPS:   settings.RateLimitRPS,
		RateLimitBurst: settings.RateLimitBurst,
		MetricsHandler: metricsHandler,
	}, server.Deps{
		Downloads: gateway,
		Files:     st,
		Playlists: playlists,
		Catalog:   cat,
		Metrics:   m,
		Logger:    logger,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              settings.ListenAddr(),
		Handler:           srv,
		ReadHeaderTimeout: ReadHeaderTimeout,
		IdleTimeout:       IdleTimeout,
		// downloads are synchronous, so no write timeout
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr, "base_url", settings.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("stopped")
	return nil
}

// resolveExtractor returns the yt-dlp executable to use, installing it into
// the go-ytdlp cache when requested
func resolveExtractor(ctx context.Context, settings config.Settings, logger *slog.Logger) (string, error) {
	if settings.YTDLPPath != "" {
		return settings.YTDLPPath, nil
	}
	if !settings.YTDLPAutoInstall {
		return "", nil
	}

	installCtx, cancel := context.WithTimeout(ctx, InstallTimeout)
	defer cancel()
	executable, err := download.InstallYTDLP(installCtx)
	if err != nil {
		return "", err
	}
	logger.Info("yt-dlp installed", "executable", executable)
	return executable, nil
}

func openCatalog(settings config.Settings, logger *slog.Logger) (catalog.Catalog, error) {
	if settings.RedisURL == "" {
		return catalog.Noop{}, nil
	}
	cat, err := catalog.NewRedisCatalog(settings.RedisURL, settings.FileMaxAge)
	if err != nil {
		return nil, err
	}
	logger.Info("artifact catalog enabled", "backend", "redis")
	return cat, nil
}

// forgetArtifact drops the catalog entry of a reaped file
func forgetArtifact(cat catalog.Catalog, logger *slog.Logger) func(string) {
	return func(name string) {
		id, _, _ := strings.Cut(filepath.Base(name), ".")
		if !store.ValidID(id) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cat.Forget(ctx, id); err != nil {
			logger.Warn("failed to forget reaped artifact", "id", id, "error", err)
		}
	}
}
