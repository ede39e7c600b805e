// Package reaper deletes stored files once they are older than the retention
// window. It runs as one background loop for the lifetime of the process.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytget/yt-download-server/internal/metrics"
	"github.com/ytget/yt-download-server/internal/model"
	"github.com/ytget/yt-download-server/internal/store"
)

// Files is the part of the artifact store the reaper needs
type Files interface {
	List(ctx context.Context) iter.Seq2[store.Entry, error]
	Delete(path string) (bool, error)
}

// Policy is the retention policy; it does not change after startup
type Policy struct {
	CleanupInterval time.Duration
	MaxAge          time.Duration
	RecoveryDelay   time.Duration
}

// Options carries the reaper's collaborators
type Options struct {
	Logger   *slog.Logger
	Metrics  metrics.ReaperMetrics
	OnDelete func(name string)
	Now      func() time.Time
}

// Report summarizes one sweep
type Report struct {
	Scanned int
	Deleted int
	Failed  int
	Skipped int
}

// Reaper periodically removes expired files
type Reaper struct {
	files    Files
	policy   Policy
	logger   *slog.Logger
	metrics  metrics.ReaperMetrics
	onDelete func(string)
	now      func() time.Time

	state atomic.Value // model.ReaperState

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a reaper over files
func New(files Files, policy Policy, opts Options) *Reaper {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := &Reaper{
		files:    files,
		policy:   policy,
		logger:   opts.Logger.With("component", "reaper"),
		metrics:  opts.Metrics,
		onDelete: opts.OnDelete,
		now:      opts.Now,
	}
	r.state.Store(model.ReaperStateSleeping)
	return r
}

// State returns the current loop state
func (r *Reaper) State() model.ReaperState {
	return r.state.Load().(model.ReaperState)
}

func (r *Reaper) setState(s model.ReaperState) {
	r.state.Store(s)
}

// Sweep runs one cleanup cycle. A file is deleted when its age is strictly
// greater than the max age. Per-file failures, unreadable entries included,
// are counted and do not stop the cycle; a directory listing failure aborts it.
func (r *Reaper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	start := time.Now()
	r.setState(model.ReaperStateScanning)
	defer r.setState(model.ReaperStateSleeping)

	now := r.now()
	for entry, err := range r.files.List(ctx) {
		if err != nil {
			if !errors.Is(err, store.ErrUnreadableEntry) {
				return report, fmt.Errorf("list files: %w", err)
			}
			report.Scanned++
			report.Failed++
			r.logger.Error("failed to inspect file", "file", entry.Name, "error", err)
			continue
		}
		report.Scanned++

		r.setState(model.ReaperStateEvaluating)
		if now.Sub(entry.ModTime) <= r.policy.MaxAge {
			r.setState(model.ReaperStateSkipping)
			report.Skipped++
			continue
		}

		r.setState(model.ReaperStateDeleting)
		removed, err := r.files.Delete(entry.Path)
		switch {
		case err != nil:
			report.Failed++
			r.logger.Error("failed to delete expired file", "file", entry.Name, "error", err)
		case removed:
			report.Deleted++
			r.logger.Info("deleted expired file", "file", entry.Name, "age", now.Sub(entry.ModTime).Round(time.Second))
			if r.onDelete != nil {
				r.onDelete(entry.Name)
			}
		default:
			// already gone
			report.Skipped++
		}
		r.setState(model.ReaperStateScanning)
	}

	r.metrics.ObserveSweep(report.Deleted, report.Failed, report.Skipped, time.Since(start).Seconds())
	if report.Deleted > 0 || report.Failed > 0 {
		r.logger.Info("cleanup completed", "deleted", report.Deleted, "failed", report.Failed, "scanned", report.Scanned)
	} else {
		r.logger.Debug("cleanup completed, nothing expired", "scanned", report.Scanned)
	}
	return report, nil
}

// Run sweeps immediately and then once per cleanup interval until ctx is
// cancelled. A failed or panicking sweep is retried after the recovery delay.
func (r *Reaper) Run(ctx context.Context) {
	defer r.setState(model.ReaperStateStopped)

	for {
		wait := r.policy.CleanupInterval
		if err := r.safeSweep(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.metrics.IncSweepErrors()
			r.logger.Error("cleanup cycle failed", "error", err, "retry_in", r.policy.RecoveryDelay)
			wait = r.policy.RecoveryDelay
		}

		r.setState(model.ReaperStateSleeping)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (r *Reaper) safeSweep(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during cleanup: %v", p)
		}
	}()
	_, err = r.Sweep(ctx)
	return err
}

// Start launches Run in a goroutine. Calling Start on a running reaper is a
// no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.logger.Info("reaper started",
		"interval", r.policy.CleanupInterval,
		"max_age", r.policy.MaxAge,
		"recovery_delay", r.policy.RecoveryDelay)

	go func() {
		defer close(done)
		r.Run(ctx)
	}()
}

// Stop cancels the loop and waits for it to return
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("reaper stopped")
}
