package platform

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ytget/yt-download-server/internal/model"
)

// Timeout constants
const (
	DefaultPlaylistParseTimeout = 60 * time.Second
)

// URL parameters and templates
const (
	PlaylistURLParam        = "list"
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Playlist errors
var (
	ErrNotPlaylistURL  = errors.New("URL does not reference a playlist")
	ErrPlaylistFailure = errors.New("failed to list playlist")
)

// PlaylistParserService lists the videos of a YouTube playlist
type PlaylistParserService struct {
	hosts   HostAllowList
	timeout time.Duration
	fetch   playlistFetcher
}

// NewPlaylistParserService creates a new playlist parser service backed by the
// ytdlp library
func NewPlaylistParserService(hosts HostAllowList) *PlaylistParserService {
	return &PlaylistParserService{
		hosts:   hosts,
		timeout: DefaultPlaylistParseTimeout,
		fetch:   libraryPlaylistFetcher,
	}
}

// SetTimeout sets the timeout for playlist parsing
func (p *PlaylistParserService) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// ParsePlaylist validates a playlist URL and returns its videos. URL problems
// wrap the HostAllowList errors or ErrNotPlaylistURL; library failures wrap
// ErrPlaylistFailure.
func (p *PlaylistParserService) ParsePlaylist(ctx context.Context, rawURL string) (*model.Playlist, error) {
	u, err := p.hosts.Check(rawURL)
	if err != nil {
		return nil, err
	}

	playlistID := extractPlaylistID(u)
	if playlistID == "" {
		return nil, ErrNotPlaylistURL
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	items, err := p.fetch(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaylistFailure, err)
	}

	playlist := model.NewPlaylist(playlistID, u.String())
	titles := make([]string, 0, len(items))
	for _, it := range items {
		playlist.AddVideo(&model.PlaylistVideo{
			ID:    it.VideoID,
			Title: it.Title,
			URL:   fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
		titles = append(titles, it.Title)
	}
	playlist.Title = extractPlaylistTitle(titles)

	return playlist, nil
}

// extractPlaylistID extracts the playlist ID from various URL formats:
//   - https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&start_radio=1
//   - https://www.youtube.com/playlist?list=PLAYLIST_ID
func extractPlaylistID(u *url.URL) string {
	return strings.TrimSpace(u.Query().Get(PlaylistURLParam))
}
