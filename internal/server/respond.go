package server

import (
	"encoding/json"
	"net/http"
)

// Client-facing messages. Internal errors are logged, never returned.
const (
	msgURLNotProvided   = "URL not provided"
	msgInvalidURL       = "Not a valid video URL"
	msgNotPlaylist      = "URL does not reference a playlist"
	msgInvalidBody      = "Invalid request body"
	msgDownloadFailed   = "Failed to download the video"
	msgInfoFailed       = "Failed to get video information"
	msgQualitiesFailed  = "Failed to get video qualities"
	msgPlaylistFailed   = "Failed to list playlist items"
	msgFileNotFound     = "File not found"
	msgServeFailed      = "Failed to serve the file"
	msgTooManyRequests  = "Too many requests, slow down"
	healthStatusHealthy = "ok"
)

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers in the {error, message} shape used by the file endpoints
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: true, Message: message})
}

// writeFailure answers in the {success:false, message} shape used by the
// metadata endpoints
func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, failureResponse{Success: false, Message: message})
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
