package model

import "strings"

// FormatSelector chooses the quality/codec preset of a download
type FormatSelector string

const (
	SelectorBest  FormatSelector = "best"
	Selector2160p FormatSelector = "2160p"
	Selector1080p FormatSelector = "1080p"
	Selector720p  FormatSelector = "720p"
	Selector480p  FormatSelector = "480p"
	Selector360p  FormatSelector = "360p"
	SelectorAudio FormatSelector = "audio"
)

// DefaultSelector is used when a request omits the format
const DefaultSelector = SelectorBest

// FormatSelectors returns all recognized selectors
func FormatSelectors() []FormatSelector {
	return []FormatSelector{
		SelectorBest,
		Selector2160p,
		Selector1080p,
		Selector720p,
		Selector480p,
		Selector360p,
		SelectorAudio,
	}
}

// ParseFormatSelector maps a request value to a selector. Unknown values fall
// back to best; known reports whether the value was recognized.
func ParseFormatSelector(value string) (selector FormatSelector, known bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return DefaultSelector, true
	}
	for _, s := range FormatSelectors() {
		if string(s) == value {
			return s, true
		}
	}
	return DefaultSelector, false
}

// String returns the string representation of FormatSelector
func (fs FormatSelector) String() string {
	return string(fs)
}

// IsAudio reports whether the selector produces an audio-only file
func (fs FormatSelector) IsAudio() bool {
	return fs == SelectorAudio
}
