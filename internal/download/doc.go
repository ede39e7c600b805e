// Package download is the extraction gateway. It validates source URLs, maps
// format selectors to yt-dlp profiles, runs extraction (via
// github.com/lrstanley/go-ytdlp) under a timeout and a bounded number of
// download slots, and turns the result into a stored artifact or projected
// metadata.
package download
