package model

import (
	"path/filepath"
	"strings"
	"time"
)

// Artifact represents a single downloaded file kept in the artifact store
type Artifact struct {
	ID          string         // generated identifier, base name of the stored file
	Path        string         // absolute path of the stored file
	Title       string         // raw title reported by the source
	DisplayName string         // sanitized title plus final extension, used when serving
	Selector    FormatSelector // selector the file was produced with
	CreatedAt   time.Time      // file modification time
	FileSize    int64          // file size in bytes
}

// FileName returns the stored file name (id plus final extension)
func (a *Artifact) FileName() string {
	if a.Path == "" {
		return ""
	}
	return filepath.Base(a.Path)
}

// Ext returns the final file extension without the leading dot
func (a *Artifact) Ext() string {
	return strings.TrimPrefix(filepath.Ext(a.Path), ".")
}

// GetDisplayName returns the display name, or the stored file name when the
// title could not be turned into one
func (a *Artifact) GetDisplayName() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.FileName()
}
