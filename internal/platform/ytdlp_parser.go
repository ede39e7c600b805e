package platform

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	ytget "github.com/ytget/ytdlp/v2"
)

// Playlist title constants
const (
	DefaultPlaylistTitle = "Untitled Playlist"
	MinPrefixLength      = 10
	PlaylistSuffix       = " Playlist"
)

// playlistItem is the subset of a library playlist entry the service uses
type playlistItem struct {
	VideoID string
	Title   string
}

// playlistFetcher lists every item of a playlist by id
type playlistFetcher func(ctx context.Context, playlistID string) ([]playlistItem, error)

// libraryPlaylistFetcher resolves playlist items with the native ytdlp library,
// without spawning the yt-dlp binary
func libraryPlaylistFetcher(ctx context.Context, playlistID string) ([]playlistItem, error) {
	items, err := ytget.New().GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	out := make([]playlistItem, 0, len(items))
	for _, it := range items {
		if it.VideoID == "" {
			continue
		}
		out = append(out, playlistItem{VideoID: it.VideoID, Title: it.Title})
	}
	return out, nil
}

// extractPlaylistTitle derives a title from the common prefix of the first
// two video titles
func extractPlaylistTitle(titles []string) string {
	if len(titles) == 0 {
		return DefaultPlaylistTitle
	}
	if len(titles) > 1 {
		commonPrefix := strings.TrimRight(findCommonPrefix(titles[0], titles[1]), titleSeparators)
		if utf8.RuneCountInString(commonPrefix) > MinPrefixLength {
			return commonPrefix + PlaylistSuffix
		}
	}
	return titles[0] + PlaylistSuffix
}

// trailing characters dropped from a shared title prefix
const titleSeparators = " -|:#.,("

// findCommonPrefix returns the longest common prefix of two strings without
// splitting a multi-byte character
func findCommonPrefix(s1, s2 string) string {
	for i, r := range s1 {
		r2, _ := utf8.DecodeRuneInString(s2[min(i, len(s2)):])
		if i >= len(s2) || r != r2 {
			return s1[:i]
		}
	}
	if len(s2) < len(s1) {
		return s2
	}
	return s1
}
