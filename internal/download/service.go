package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ytget/yt-download-server/internal/metrics"
	"github.com/ytget/yt-download-server/internal/model"
	"github.com/ytget/yt-download-server/internal/platform"
	"github.com/ytget/yt-download-server/internal/store"
)

// Defaults applied to zero Options fields
const (
	DefaultTimeout      = 10 * time.Minute
	DefaultRetryBackoff = 2 * time.Second
	DefaultMaxParallel  = 2
)

// Extraction modes reported to metrics
const (
	modeDownload  = "download"
	modeInfo      = "info"
	modeQualities = "qualities"
)

// Fallback titles for files whose source has no title
const (
	fallbackVideoTitle = "video"
	fallbackAudioTitle = "audio"
)

// Options configures the gateway
type Options struct {
	AllowedHosts []string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	MaxParallel  int
	Logger       *slog.Logger
	Metrics      metrics.DownloadMetrics
}

// Service handles extraction requests
type Service struct {
	store     *store.Store
	extractor Extractor
	hosts     platform.HostAllowList
	timeout   time.Duration
	retries   int
	backoff   time.Duration
	slots     *semaphore.Weighted
	inFlight  atomic.Int64
	logger    *slog.Logger
	metrics   metrics.DownloadMetrics
}

// NewService creates a new gateway over st and extractor
func NewService(st *store.Store, extractor Extractor, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}

	return &Service{
		store:     st,
		extractor: extractor,
		hosts:     platform.NewHostAllowList(opts.AllowedHosts...),
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		backoff:   opts.RetryBackoff,
		slots:     semaphore.NewWeighted(int64(opts.MaxParallel)),
		logger:    opts.Logger.With("component", "download"),
		metrics:   opts.Metrics,
	}
}

// Download fetches rawURL with the given format selector and returns the
// stored artifact. On any error no artifact is reported.
func (s *Service) Download(ctx context.Context, rawURL, format string) (*model.Artifact, error) {
	start := time.Now()

	u, err := s.hosts.Check(rawURL)
	if err != nil {
		s.observe(modeDownload, metrics.OutcomeInvalid, start)
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	selector, known := model.ParseFormatSelector(format)
	if !known {
		s.logger.Warn("unknown format selector, using default", "format", format, "selector", selector)
	}
	profile := ProfileFor(selector)

	// Waiting for a slot is abandoned when the client goes away; the
	// extraction itself is not.
	if err := s.slots.Acquire(ctx, 1); err != nil {
		s.observe(modeDownload, metrics.OutcomeFailed, start)
		return nil, fmt.Errorf("%w: waiting for a download slot: %v", ErrExtractionFailed, err)
	}
	s.metrics.SetDownloadsInFlight(int(s.inFlight.Add(1)))
	defer func() {
		s.metrics.SetDownloadsInFlight(int(s.inFlight.Add(-1)))
		s.slots.Release(1)
	}()

	id := s.store.AllocateID()
	log := s.logger.With("id", id, "url", u.String(), "selector", selector)
	log.Info("starting download")

	extractCtx, cancel := s.extractionContext(ctx)
	defer cancel()

	info, err := s.extractWithRetry(extractCtx, id, ExtractRequest{
		URL:            u.String(),
		Profile:        profile,
		OutputTemplate: s.store.OutputTemplate(id),
	}, log)
	if err != nil {
		s.observe(modeDownload, metrics.OutcomeFailed, start)
		log.Error("download failed", "error", err)
		s.discard(id, log)
		return nil, err
	}

	path, err := s.store.Resolve(id, profile.Ext)
	if err != nil {
		s.observe(modeDownload, metrics.OutcomeMissing, start)
		log.Error("downloaded file not found", "error", err)
		s.discard(id, log)
		return nil, fmt.Errorf("%w: %w", ErrArtifactMissing, err)
	}

	fi, err := os.Stat(path)
	if err != nil {
		s.observe(modeDownload, metrics.OutcomeMissing, start)
		return nil, fmt.Errorf("%w: %w", ErrArtifactMissing, err)
	}

	fallback := fallbackVideoTitle
	if selector.IsAudio() {
		fallback = fallbackAudioTitle
	}
	title := info.Title
	if title == "" {
		title = fallback
	}

	artifact := &model.Artifact{
		ID:        id,
		Path:      path,
		Title:     title,
		Selector:  selector,
		CreatedAt: fi.ModTime(),
		FileSize:  fi.Size(),
	}
	artifact.DisplayName = platform.DisplayFileName(title, artifact.Ext(), fallback)

	s.observe(modeDownload, metrics.OutcomeSuccess, start)
	log.Info("download completed", "file", artifact.FileName(), "size", artifact.FileSize, "duration", time.Since(start))
	return artifact, nil
}

// VideoInfo returns the public metadata of rawURL without downloading it
func (s *Service) VideoInfo(ctx context.Context, rawURL string) (*model.VideoInfo, error) {
	start := time.Now()
	info, err := s.metadata(ctx, modeInfo, rawURL, true)
	if err != nil {
		return nil, err
	}
	s.observe(modeInfo, metrics.OutcomeSuccess, start)
	return projectVideoInfo(info), nil
}

// Qualities returns the download qualities offered for rawURL
func (s *Service) Qualities(ctx context.Context, rawURL string) ([]model.Quality, error) {
	start := time.Now()
	info, err := s.metadata(ctx, modeQualities, rawURL, false)
	if err != nil {
		return nil, err
	}
	s.observe(modeQualities, metrics.OutcomeSuccess, start)
	return ProjectQualities(info.Formats), nil
}

func (s *Service) metadata(ctx context.Context, mode, rawURL string, flat bool) (*MediaInfo, error) {
	start := time.Now()

	u, err := s.hosts.Check(rawURL)
	if err != nil {
		s.observe(mode, metrics.OutcomeInvalid, start)
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	extractCtx, cancel := s.extractionContext(ctx)
	defer cancel()

	log := s.logger.With("url", u.String(), "mode", mode)
	info, err := s.extractWithRetry(extractCtx, "", ExtractRequest{URL: u.String(), Flat: flat}, log)
	if err != nil {
		s.observe(mode, metrics.OutcomeFailed, start)
		log.Error("metadata extraction failed", "error", err)
		return nil, err
	}
	return info, nil
}

// extractionContext keeps request values but not its cancellation, and
// bounds the call by the extraction timeout.
func (s *Service) extractionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

// extractWithRetry calls the extractor, retrying failed attempts with
// backoff. When id is set, files left under it by a failed attempt are
// removed before the next one. Every error it returns wraps
// ErrExtractionFailed.
func (s *Service) extractWithRetry(ctx context.Context, id string, req ExtractRequest, log *slog.Logger) (*MediaInfo, error) {
	var lastErr error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retryDelay(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ctx.Err())
			}
			if id != "" {
				s.discard(id, log)
			}
			log.Info("retrying extraction", "attempt", attempt+1)
		}

		info, err := s.extractor.Extract(ctx, req)
		if err == nil && info != nil {
			return info, nil
		}
		if err == nil {
			err = errNoMetadata
		}
		lastErr = err
		log.Warn("extraction attempt failed", "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: timed out after %s", ErrExtractionFailed, s.timeout)
			}
			return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, lastErr)
}

// discard removes leftovers of a failed download so the id never resolves
func (s *Service) discard(id string, log *slog.Logger) {
	n, err := s.store.Discard(id)
	if err != nil {
		log.Warn("failed to remove partial files", "error", err)
		return
	}
	if n > 0 {
		log.Debug("removed partial files", "count", n)
	}
}

func (s *Service) retryDelay(attempt int) time.Duration {
	return time.Duration(float64(s.backoff) * math.Pow(2, float64(attempt-1)))
}

func (s *Service) observe(mode, outcome string, start time.Time) {
	s.metrics.ObserveExtraction(mode, outcome, time.Since(start).Seconds())
}

func projectVideoInfo(info *MediaInfo) *model.VideoInfo {
	v := &model.VideoInfo{
		Title:     info.Title,
		Channel:   info.Channel,
		Duration:  model.FormatDuration(int(info.Duration)),
		Thumbnail: info.Thumbnail,
	}
	if v.Title == "" {
		v.Title = model.DefaultVideoTitle
	}
	if v.Channel == "" {
		v.Channel = model.DefaultChannelTitle
	}
	return v
}
