package download

import (
	"fmt"

	"github.com/ytget/yt-download-server/internal/model"
)

// Profile is the engine configuration for one format selector
type Profile struct {
	Selector     model.FormatSelector
	Format       string
	MergeFormat  string // container for merged video+audio
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	Ext          string // extension expected after post-processing
}

const (
	mergeContainer   = "mp4"
	audioCodec       = "mp3"
	audioBitrate     = "192K"
	audioFormat      = "bestaudio/best"
	bestVideoFormat  = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	cappedFormatTmpl = "bestvideo[height<=%[1]d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%[1]d][ext=mp4]/best"
)

var selectorHeights = map[model.FormatSelector]int{
	model.Selector2160p: 2160,
	model.Selector1080p: 1080,
	model.Selector720p:  720,
	model.Selector480p:  480,
	model.Selector360p:  360,
}

// ProfileFor returns the profile of a selector; unknown selectors get the
// best profile
func ProfileFor(selector model.FormatSelector) Profile {
	switch selector {
	case model.SelectorAudio:
		return Profile{
			Selector:     model.SelectorAudio,
			Format:       audioFormat,
			ExtractAudio: true,
			AudioFormat:  audioCodec,
			AudioQuality: audioBitrate,
			Ext:          audioCodec,
		}
	case model.SelectorBest:
		return videoProfile(model.SelectorBest, bestVideoFormat)
	}
	if h, ok := selectorHeights[selector]; ok {
		return videoProfile(selector, fmt.Sprintf(cappedFormatTmpl, h))
	}
	return videoProfile(model.SelectorBest, bestVideoFormat)
}

func videoProfile(selector model.FormatSelector, format string) Profile {
	return Profile{
		Selector:    selector,
		Format:      format,
		MergeFormat: mergeContainer,
		Ext:         mergeContainer,
	}
}
