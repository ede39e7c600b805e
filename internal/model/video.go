package model

import (
	"fmt"
	"strings"
)

// Default metadata values used when the source omits a field
const (
	DefaultVideoTitle   = "Unknown Title"
	DefaultChannelTitle = "Unknown Channel"
)

// VideoInfo is the public projection of a video's metadata
type VideoInfo struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

// Quality is one entry of the quality listing
type Quality struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Resolution string `json:"resolution"`
	FileSize   string `json:"fileSize"`
}

// Quality ids and labels
const (
	BestQualityID    = "best"
	BestQualityLabel = "Best"
	UnknownFileSize  = "Unknown"
)

// QualityLabel returns the human label of a canonical resolution tier
func QualityLabel(height int) string {
	switch height {
	case 2160:
		return "4K"
	case 1080:
		return "Full HD"
	case 720:
		return "HD"
	case 480:
		return "SD"
	default:
		return "Low"
	}
}

// FormatDuration returns seconds formatted as hh:mm:ss, or mm:ss below one hour
func FormatDuration(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	var b strings.Builder
	if hours > 0 {
		b.WriteString(fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%02d:%02d", minutes, seconds))
	return b.String()
}

// FormatFileSize renders a byte count in megabytes with one decimal
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return UnknownFileSize
	}
	return fmt.Sprintf("%.1fMB", float64(bytes)/1024/1024)
}
