package download

import (
	"context"

	"github.com/ytget/yt-download-server/internal/model"
)

// ExtractRequest describes one call to the extraction engine
type ExtractRequest struct {
	URL            string
	Profile        Profile
	OutputTemplate string // empty for metadata-only calls
	Flat           bool   // do not resolve playlist entries
}

// MetadataOnly reports whether the call must not write any file
func (r ExtractRequest) MetadataOnly() bool {
	return r.OutputTemplate == ""
}

// Extractor runs the extraction engine
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*MediaInfo, error)
}

// Downloader is the gateway surface used by the HTTP handlers
type Downloader interface {
	Download(ctx context.Context, url, format string) (*model.Artifact, error)
	VideoInfo(ctx context.Context, url string) (*model.VideoInfo, error)
	Qualities(ctx context.Context, url string) ([]model.Quality, error)
}
