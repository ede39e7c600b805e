// Package platform contains OS and external tooling glue: filesystem helpers,
// filename sanitizing, content types, the source host allow-list and playlist
// listing via the ytdlp library.
package platform
