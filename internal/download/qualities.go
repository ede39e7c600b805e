package download

import (
	"fmt"
	"slices"
	"sort"

	"github.com/ytget/yt-download-server/internal/model"
)

// QualityTiers are the heights offered as download qualities, highest first
var QualityTiers = []int{2160, 1080, 720, 480, 360}

// ProjectQualities turns source formats into the list of offered qualities.
// Formats without a height or outside QualityTiers are dropped, duplicate
// resolutions keep their first occurrence, and a synthetic "best" entry
// copying the top quality is prepended. The result is empty when no tier is
// available.
func ProjectQualities(formats []MediaFormat) []model.Quality {
	type tier struct {
		height  int
		quality model.Quality
	}

	seen := make(map[string]struct{})
	var tiers []tier
	for _, f := range formats {
		if f.Height <= 0 || !slices.Contains(QualityTiers, f.Height) {
			continue
		}

		width := "?"
		if f.Width > 0 {
			width = fmt.Sprintf("%d", f.Width)
		}
		resolution := fmt.Sprintf("%sx%d", width, f.Height)
		if _, dup := seen[resolution]; dup {
			continue
		}
		seen[resolution] = struct{}{}

		tiers = append(tiers, tier{
			height: f.Height,
			quality: model.Quality{
				ID:         fmt.Sprintf("%dp", f.Height),
				Label:      model.QualityLabel(f.Height),
				Resolution: resolution,
				FileSize:   model.FormatFileSize(f.FileSize),
			},
		})
	}

	if len(tiers) == 0 {
		return []model.Quality{}
	}

	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].height > tiers[j].height
	})

	out := make([]model.Quality, 0, len(tiers)+1)
	top := tiers[0].quality
	out = append(out, model.Quality{
		ID:         model.BestQualityID,
		Label:      model.BestQualityLabel,
		Resolution: top.Resolution,
		FileSize:   top.FileSize,
	})
	for _, t := range tiers {
		out = append(out, t.quality)
	}
	return out
}
