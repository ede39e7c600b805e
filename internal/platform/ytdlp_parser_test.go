package platform

import "testing"

func TestFindCommonPrefix(t *testing.T) {
	tests := []struct {
		name     string
		s1       string
		s2       string
		expected string
	}{
		{"identical strings", "hello", "hello", "hello"},
		{"common prefix", "hello world", "hello there", "hello "},
		{"no common prefix", "abc", "xyz", ""},
		{"one empty", "", "abc", ""},
		{"shorter first", "abc", "abcdef", "abc"},
		{"shorter second", "abcdef", "abc", "abc"},
		{"multibyte divergence", "Canción ñ", "Canción ó", "Canción "},
		{"same first byte", "é", "è", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := findCommonPrefix(tt.s1, tt.s2)
			if result != tt.expected {
				t.Errorf("findCommonPrefix(%q, %q) = %q, expected %q", tt.s1, tt.s2, result, tt.expected)
			}
		})
	}
}

func TestExtractPlaylistTitle(t *testing.T) {
	tests := []struct {
		name     string
		titles   []string
		expected string
	}{
		{"no videos", nil, DefaultPlaylistTitle},
		{"single video", []string{"Lecture 1"}, "Lecture 1 Playlist"},
		{
			"long common prefix",
			[]string{"Go Concurrency Patterns - Part 1", "Go Concurrency Patterns - Part 2"},
			"Go Concurrency Patterns - Part Playlist",
		},
		{"short common prefix", []string{"Song A", "Song B"}, "Song A Playlist"},
		{
			"separator trimmed",
			[]string{"Lecciones de física: uno", "Lecciones de física: dos"},
			"Lecciones de física Playlist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractPlaylistTitle(tt.titles)
			if result != tt.expected {
				t.Errorf("extractPlaylistTitle() = %q, expected %q", result, tt.expected)
			}
		})
	}
}
