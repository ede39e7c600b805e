package download

import "errors"

var (
	// ErrInvalidInput is returned for missing or non-allowed URLs; no
	// extraction is attempted.
	ErrInvalidInput = errors.New("invalid input")
	// ErrExtractionFailed is returned when yt-dlp fails, times out, or
	// reports no metadata.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrArtifactMissing is returned when extraction reported success but
	// no final file can be found for the allocated id.
	ErrArtifactMissing = errors.New("downloaded file not found")
)
