package download

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/yt-download-server/internal/logging"
	"github.com/ytget/yt-download-server/internal/model"
	"github.com/ytget/yt-download-server/internal/platform"
	"github.com/ytget/yt-download-server/internal/store"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeExtractor writes "<template with ext>" like yt-dlp would and returns
// canned metadata
type fakeExtractor struct {
	mu    sync.Mutex
	calls []ExtractRequest

	ext      string // extension of the written file; empty writes nothing
	partial  bool   // write an intermediate file before failing
	info     *MediaInfo
	err      error
	failures int // number of leading calls that fail
	delay    time.Duration
	block    bool

	active    atomic.Int32
	maxActive atomic.Int32
}

func (f *fakeExtractor) Extract(ctx context.Context, req ExtractRequest) (*MediaInfo, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	n := len(f.calls)
	f.mu.Unlock()

	cur := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxActive.Load()
		if cur <= prev || f.maxActive.CompareAndSwap(prev, cur) {
			break
		}
	}

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.partial && !req.MetadataOnly() {
		path := strings.Replace(req.OutputTemplate, store.OutputTemplateExt, "mp4.part", 1)
		if err := os.WriteFile(path, []byte("partial"), 0o644); err != nil {
			return nil, err
		}
	}
	if n <= f.failures {
		return nil, errors.New("transient failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.ext != "" && !req.MetadataOnly() {
		path := strings.Replace(req.OutputTemplate, store.OutputTemplateExt, f.ext, 1)
		if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
			return nil, err
		}
	}
	return f.info, nil
}

func (f *fakeExtractor) Calls() []ExtractRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExtractRequest(nil), f.calls...)
}

func newTestService(t *testing.T, ex Extractor, mutate func(*Options)) (*Service, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	opts := Options{
		AllowedHosts: []string{"youtube.com", "youtu.be"},
		Timeout:      5 * time.Second,
		Retries:      1,
		RetryBackoff: time.Millisecond,
		MaxParallel:  2,
		Logger:       logging.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewService(st, ex, opts), st
}

func storeFiles(t *testing.T, st *store.Store) []string {
	t.Helper()
	entries, err := os.ReadDir(st.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestDownloadStoresArtifact(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4", info: &MediaInfo{Title: "My Video: Part 1"}}
	svc, st := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "")
	require.NoError(t, err)

	assert.True(t, store.ValidID(artifact.ID))
	assert.Equal(t, st.Path(artifact.ID, "mp4"), artifact.Path)
	assert.Equal(t, artifact.ID+".mp4", artifact.FileName())
	assert.Equal(t, "My Video: Part 1", artifact.Title)
	assert.Equal(t, "My Video_ Part 1.mp4", artifact.DisplayName)
	assert.Equal(t, model.SelectorBest, artifact.Selector)
	assert.Equal(t, int64(5), artifact.FileSize)
	assert.False(t, artifact.CreatedAt.IsZero())

	calls := ex.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, st.OutputTemplate(artifact.ID), calls[0].OutputTemplate)
	assert.Equal(t, bestVideoFormat, calls[0].Profile.Format)
	assert.Equal(t, "mp4", calls[0].Profile.MergeFormat)
	assert.Equal(t, testURL, calls[0].URL)
}

func TestDownloadAudio(t *testing.T) {
	ex := &fakeExtractor{ext: "mp3", info: &MediaInfo{}}
	svc, _ := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "audio")
	require.NoError(t, err)

	assert.Equal(t, "mp3", artifact.Ext())
	assert.Equal(t, "audio", artifact.Title)
	assert.Equal(t, "audio.mp3", artifact.DisplayName)
	assert.True(t, ex.Calls()[0].Profile.ExtractAudio)
}

func TestDownloadResolvesUnexpectedExtension(t *testing.T) {
	ex := &fakeExtractor{ext: "mkv", info: &MediaInfo{Title: "clip"}}
	svc, _ := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "720p")
	require.NoError(t, err)

	assert.Equal(t, "mkv", artifact.Ext())
	assert.Equal(t, "clip.mkv", artifact.DisplayName)
	assert.Equal(t, model.Selector720p, artifact.Selector)
}

func TestDownloadUnknownSelectorFallsBackToBest(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4", info: &MediaInfo{Title: "x"}}
	svc, _ := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "8k-hdr")
	require.NoError(t, err)

	assert.Equal(t, model.SelectorBest, artifact.Selector)
	assert.Equal(t, model.SelectorBest, ex.Calls()[0].Profile.Selector)
}

func TestDownloadRejectsInvalidURLWithoutExtraction(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"not a url",
		"ftp://youtube.com/watch?v=x",
		"https://vimeo.com/123",
		"https://notyoutube.com/watch?v=x",
	} {
		t.Run(raw, func(t *testing.T) {
			ex := &fakeExtractor{ext: "mp4", info: &MediaInfo{}}
			svc, st := newTestService(t, ex, nil)

			_, err := svc.Download(context.Background(), raw, "best")
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, ex.Calls())
			assert.Empty(t, storeFiles(t, st))
		})
	}
}

func TestDownloadExtractionFailureLeavesNoFiles(t *testing.T) {
	ex := &fakeExtractor{partial: true, err: errors.New("HTTP Error 403")}
	svc, st := newTestService(t, ex, func(o *Options) { o.Retries = 2 })

	_, err := svc.Download(context.Background(), testURL, "best")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Len(t, ex.Calls(), 3)
	assert.Empty(t, storeFiles(t, st))
}

func TestDownloadRetriesTransientFailure(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4", failures: 1, info: &MediaInfo{Title: "ok"}}
	svc, _ := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "best")
	require.NoError(t, err)
	assert.Equal(t, "ok", artifact.Title)
	assert.Len(t, ex.Calls(), 2)
}

// leftoverExtractor leaves a different final-looking file on every failed
// attempt, as yt-dlp does when a later format in the fallback chain is picked
type leftoverExtractor struct {
	exts  []string
	calls int
}

func (l *leftoverExtractor) Extract(_ context.Context, req ExtractRequest) (*MediaInfo, error) {
	ext := l.exts[l.calls]
	l.calls++
	path := strings.Replace(req.OutputTemplate, store.OutputTemplateExt, ext, 1)
	if err := os.WriteFile(path, []byte(ext), 0o644); err != nil {
		return nil, err
	}
	if l.calls < len(l.exts) {
		return nil, errors.New("connection reset")
	}
	return &MediaInfo{Title: "clip"}, nil
}

func TestDownloadRetryClearsPreviousAttempt(t *testing.T) {
	ex := &leftoverExtractor{exts: []string{"webm", "mkv"}}
	svc, st := newTestService(t, ex, nil)

	artifact, err := svc.Download(context.Background(), testURL, "best")
	require.NoError(t, err)
	assert.Equal(t, 2, ex.calls)
	assert.Equal(t, "mkv", artifact.Ext())
	assert.Equal(t, []string{artifact.FileName()}, storeFiles(t, st))
}

func TestDownloadTimeout(t *testing.T) {
	ex := &fakeExtractor{block: true}
	svc, st := newTestService(t, ex, func(o *Options) {
		o.Timeout = 50 * time.Millisecond
		o.Retries = 3
	})

	start := time.Now()
	_, err := svc.Download(context.Background(), testURL, "best")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, ex.Calls(), 1)
	assert.Empty(t, storeFiles(t, st))
}

func TestDownloadMissingArtifact(t *testing.T) {
	ex := &fakeExtractor{info: &MediaInfo{Title: "ghost"}}
	svc, _ := newTestService(t, ex, nil)

	_, err := svc.Download(context.Background(), testURL, "best")
	assert.ErrorIs(t, err, ErrArtifactMissing)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDownloadWithoutMetadataFails(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4"}
	svc, st := newTestService(t, ex, func(o *Options) { o.Retries = 0 })

	_, err := svc.Download(context.Background(), testURL, "best")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Empty(t, storeFiles(t, st))
}

func TestDownloadSurvivesClientCancellation(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4", delay: 100 * time.Millisecond, info: &MediaInfo{Title: "t"}}
	svc, _ := newTestService(t, ex, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	artifact, err := svc.Download(ctx, testURL, "best")
	require.NoError(t, err)
	assert.FileExists(t, artifact.Path)
}

func TestDownloadConcurrentRequestsAreIsolated(t *testing.T) {
	ex := &fakeExtractor{ext: "mp4", delay: 20 * time.Millisecond, info: &MediaInfo{Title: "same title"}}
	svc, st := newTestService(t, ex, func(o *Options) { o.MaxParallel = 2 })

	const n = 8
	var wg sync.WaitGroup
	artifacts := make([]*model.Artifact, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			artifacts[i], errs[i] = svc.Download(context.Background(), testURL, "best")
		}(i)
	}
	wg.Wait()

	ids := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		ids[artifacts[i].ID] = struct{}{}
		assert.FileExists(t, artifacts[i].Path)
	}
	assert.Len(t, ids, n)
	assert.Len(t, storeFiles(t, st), n)
	assert.LessOrEqual(t, ex.maxActive.Load(), int32(2))
}

func TestDownloadSlotWaitHonoursContext(t *testing.T) {
	ex := &fakeExtractor{block: true}
	svc, _ := newTestService(t, ex, func(o *Options) {
		o.MaxParallel = 1
		o.Timeout = 300 * time.Millisecond
		o.Retries = 0
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Download(context.Background(), testURL, "best")
	}()
	require.Eventually(t, func() bool { return len(ex.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Download(ctx, testURL, "best")
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Len(t, ex.Calls(), 1)
	<-done
}

func TestVideoInfo(t *testing.T) {
	ex := &fakeExtractor{info: &MediaInfo{
		Title:     "A talk",
		Duration:  3725,
		Thumbnail: "https://i.ytimg.com/vi/x/hq.jpg",
	}}
	svc, st := newTestService(t, ex, nil)

	info, err := svc.VideoInfo(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, &model.VideoInfo{
		Title:     "A talk",
		Channel:   model.DefaultChannelTitle,
		Duration:  "01:02:05",
		Thumbnail: "https://i.ytimg.com/vi/x/hq.jpg",
	}, info)

	calls := ex.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].MetadataOnly())
	assert.True(t, calls[0].Flat)
	assert.Empty(t, storeFiles(t, st))
}

func TestVideoInfoDefaults(t *testing.T) {
	ex := &fakeExtractor{info: &MediaInfo{Duration: 59}}
	svc, _ := newTestService(t, ex, nil)

	info, err := svc.VideoInfo(context.Background(), testURL)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultVideoTitle, info.Title)
	assert.Equal(t, "00:59", info.Duration)
}

func TestVideoInfoErrors(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, nil)
	_, err := svc.VideoInfo(context.Background(), "https://example.com/v")
	assert.ErrorIs(t, err, ErrInvalidInput)

	svc, _ = newTestService(t, &fakeExtractor{err: errors.New("boom")}, nil)
	_, err = svc.VideoInfo(context.Background(), testURL)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestQualities(t *testing.T) {
	ex := &fakeExtractor{info: &MediaInfo{Formats: []MediaFormat{
		{Width: 1280, Height: 720, FileSize: 10 * 1024 * 1024},
		{Width: 1920, Height: 1080},
	}}}
	svc, _ := newTestService(t, ex, nil)

	qualities, err := svc.Qualities(context.Background(), testURL)
	require.NoError(t, err)
	require.Len(t, qualities, 3)
	assert.Equal(t, "best", qualities[0].ID)
	assert.Equal(t, "1920x1080", qualities[0].Resolution)
	assert.Equal(t, "1080p", qualities[1].ID)
	assert.Equal(t, "10.0MB", qualities[2].FileSize)
	assert.False(t, ex.Calls()[0].Flat)
	assert.True(t, ex.Calls()[0].MetadataOnly())
}

func TestDownloadInvalidInputKeepsCause(t *testing.T) {
	svc, _ := newTestService(t, &fakeExtractor{}, nil)

	_, err := svc.Download(context.Background(), "", "best")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, platform.ErrEmptyURL)

	_, err = svc.Download(context.Background(), "https://example.com/x", "best")
	assert.ErrorIs(t, err, platform.ErrHostNotAllowed)
}
