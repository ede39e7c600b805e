package platform

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Content types served for known extensions
const (
	ContentTypeMP4     = "video/mp4"
	ContentTypeMP3     = "audio/mpeg"
	ContentTypeM4A     = "audio/mp4"
	ContentTypeDefault = "application/octet-stream"
)

// Maximum length of a sanitized display title, in runes
const MaxTitleLength = 180

// File extensions of intermediate downloader outputs
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp", ".tmp"}
)

// yt-dlp keeps per-format streams as <id>.f<format>.<ext> before merging
var formatFragmentPattern = regexp.MustCompile(`^f[0-9]+[a-z0-9-]*\.`)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// IsIntermediateFile reports whether name is a partial or pre-merge output
// of the downloader for the given id rather than a final artifact
func IsIntermediateFile(name, id string) bool {
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) || strings.Contains(name, ext+".") {
			return true
		}
	}
	rest := strings.TrimPrefix(name, id+".")
	if rest == name {
		return false
	}
	return strings.HasPrefix(rest, "temp.") || formatFragmentPattern.MatchString(rest)
}

// SanitizeFilename turns a free-form title into a name safe to use in a
// Content-Disposition header and on any common filesystem
func SanitizeFilename(title, fallback string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			b.WriteRune('_')
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	name = strings.Trim(name, ". ")
	if runes := []rune(name); len(runes) > MaxTitleLength {
		name = strings.TrimSpace(string(runes[:MaxTitleLength]))
	}
	if name == "" {
		return fallback
	}
	return name
}

// DisplayFileName builds "<sanitized title>.<ext>"
func DisplayFileName(title, ext, fallback string) string {
	name := SanitizeFilename(title, fallback)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// ContentTypeFor returns the content type served for a file name
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return ContentTypeMP4
	case ".mp3":
		return ContentTypeMP3
	case ".m4a":
		return ContentTypeM4A
	default:
		return ContentTypeDefault
	}
}
