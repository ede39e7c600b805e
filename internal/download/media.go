package download

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MediaFormat is one format offered by the source
type MediaFormat struct {
	FormatID string
	Ext      string
	Width    int
	Height   int
	FileSize int64
}

// MediaInfo is the subset of yt-dlp's info dict the service consumes
type MediaInfo struct {
	ID        string
	Title     string
	Channel   string
	Duration  float64
	Thumbnail string
	Ext       string
	Formats   []MediaFormat
}

var errNoMetadata = errors.New("no metadata in extractor output")

type rawFormat struct {
	FormatID string   `json:"format_id"`
	Ext      string   `json:"ext"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
	FileSize *float64 `json:"filesize"`
}

type rawInfo struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Channel   string      `json:"channel"`
	Uploader  string      `json:"uploader"`
	Duration  *float64    `json:"duration"`
	Thumbnail string      `json:"thumbnail"`
	Ext       string      `json:"ext"`
	Formats   []rawFormat `json:"formats"`
}

// ParseMediaInfo decodes the JSON document printed by --dump-single-json.
// Progress or log lines before it are ignored.
func ParseMediaInfo(output []byte) (*MediaInfo, error) {
	doc := lastJSONLine(output)
	if doc == nil {
		return nil, errNoMetadata
	}

	var raw rawInfo
	if err := json.Unmarshal(doc, &raw); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}

	info := &MediaInfo{
		ID:        raw.ID,
		Title:     raw.Title,
		Channel:   raw.Channel,
		Thumbnail: raw.Thumbnail,
		Ext:       raw.Ext,
	}
	if info.Channel == "" {
		info.Channel = raw.Uploader
	}
	if raw.Duration != nil {
		info.Duration = *raw.Duration
	}
	for _, f := range raw.Formats {
		info.Formats = append(info.Formats, MediaFormat{
			FormatID: f.FormatID,
			Ext:      f.Ext,
			Width:    toInt(f.Width),
			Height:   toInt(f.Height),
			FileSize: int64(toInt(f.FileSize)),
		})
	}
	return info, nil
}

func lastJSONLine(output []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(output), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 && line[0] == '{' {
			return line
		}
	}
	return nil
}

func toInt(v *float64) int {
	if v == nil || math.IsNaN(*v) {
		return 0
	}
	return int(*v)
}
