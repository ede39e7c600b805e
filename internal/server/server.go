// Package server exposes the download gateway over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ytget/yt-download-server/internal/catalog"
	"github.com/ytget/yt-download-server/internal/download"
	"github.com/ytget/yt-download-server/internal/metrics"
	"github.com/ytget/yt-download-server/internal/model"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 64 << 10

// Resolver finds stored files by id
type Resolver interface {
	Resolve(id, extHint string) (string, error)
}

// PlaylistLister lists the videos of a playlist URL
type PlaylistLister interface {
	ParsePlaylist(ctx context.Context, url string) (*model.Playlist, error)
}

// Config holds the HTTP surface settings
type Config struct {
	BaseURL        string
	CORSOrigin     string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	MetricsHandler http.Handler // nil disables /metrics
}

// Deps are the components the handlers delegate to
type Deps struct {
	Downloads download.Downloader
	Files     Resolver
	Playlists PlaylistLister
	Catalog   catalog.Catalog
	Metrics   metrics.HTTPMetrics
	Logger    *slog.Logger
}

// Server routes requests to the gateway, the store and the catalog
type Server struct {
	cfg       Config
	downloads download.Downloader
	files     Resolver
	playlists PlaylistLister
	catalog   catalog.Catalog
	metrics   metrics.HTTPMetrics
	logger    *slog.Logger
	limiter   *rateLimiter
	router    chi.Router
}

// New builds the server and its routes
func New(cfg Config, deps Deps) *Server {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Noop{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	s := &Server{
		cfg:       cfg,
		downloads: deps.Downloads,
		files:     deps.Files,
		playlists: deps.Playlists,
		catalog:   deps.Catalog,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "server"),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORSOrigin))

	r.Get("/health", s.handleHealth)
	r.Get("/download/{file}", s.handleServeFile)
	if s.cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/download", s.handleDownload)
		r.Post("/video-info", s.handleVideoInfo)
		r.Post("/video-qualities", s.handleVideoQualities)
		r.Post("/playlist-items", s.handlePlaylistItems)
	})
	return r
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
