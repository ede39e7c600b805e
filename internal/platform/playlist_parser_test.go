package platform

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestParser(fetch playlistFetcher) *PlaylistParserService {
	p := NewPlaylistParserService(NewHostAllowList("youtube.com", "youtu.be"))
	p.fetch = fetch
	return p
}

func TestNewPlaylistParserService(t *testing.T) {
	service := NewPlaylistParserService(NewHostAllowList("youtube.com"))

	if service == nil {
		t.Fatal("service should not be nil")
	}
	if service.timeout != DefaultPlaylistParseTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultPlaylistParseTimeout, service.timeout)
	}
	if service.fetch == nil {
		t.Error("expected default fetcher")
	}
}

func TestPlaylistSetTimeout(t *testing.T) {
	service := NewPlaylistParserService(nil)
	service.SetTimeout(30 * time.Second)

	if service.timeout != 30*time.Second {
		t.Errorf("expected timeout %v, got %v", 30*time.Second, service.timeout)
	}
}

func TestParsePlaylist(t *testing.T) {
	var gotID string
	service := newTestParser(func(ctx context.Context, playlistID string) ([]playlistItem, error) {
		gotID = playlistID
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected fetch context to carry a deadline")
		}
		return []playlistItem{
			{VideoID: "aaa", Title: "Go Concurrency Patterns - Part 1"},
			{VideoID: "bbb", Title: "Go Concurrency Patterns - Part 2"},
		}, nil
	})

	playlist, err := service.ParsePlaylist(context.Background(),
		"https://www.youtube.com/watch?v=aaa&list=PL123&start_radio=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotID != "PL123" {
		t.Errorf("expected playlist id PL123, got %q", gotID)
	}
	if playlist.ID != "PL123" {
		t.Errorf("expected playlist.ID PL123, got %q", playlist.ID)
	}
	if playlist.TotalVideos() != 2 {
		t.Fatalf("expected 2 videos, got %d", playlist.TotalVideos())
	}
	if playlist.Videos[1].URL != "https://www.youtube.com/watch?v=bbb" {
		t.Errorf("unexpected video url %q", playlist.Videos[1].URL)
	}
	if playlist.Title != "Go Concurrency Patterns - Part Playlist" {
		t.Errorf("unexpected title %q", playlist.Title)
	}
}

func TestParsePlaylist_ErrorHandling(t *testing.T) {
	fetchErr := errors.New("boom")
	called := false
	service := newTestParser(func(ctx context.Context, playlistID string) ([]playlistItem, error) {
		called = true
		return nil, fetchErr
	})

	tests := []struct {
		name        string
		url         string
		expectedErr error
		expectFetch bool
	}{
		{"disallowed host", "https://example.com/playlist?list=PL1", ErrHostNotAllowed, false},
		{"missing list param", "https://www.youtube.com/watch?v=abc", ErrNotPlaylistURL, false},
		{"empty list param", "https://www.youtube.com/playlist?list=", ErrNotPlaylistURL, false},
		{"library failure", "https://www.youtube.com/playlist?list=PL1", ErrPlaylistFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			_, err := service.ParsePlaylist(context.Background(), tt.url)
			if !errors.Is(err, tt.expectedErr) {
				t.Fatalf("expected %v, got %v", tt.expectedErr, err)
			}
			if called != tt.expectFetch {
				t.Errorf("fetch called = %v, expected %v", called, tt.expectFetch)
			}
		})
	}
}
