package server

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ytget/yt-download-server/internal/catalog"
	"github.com/ytget/yt-download-server/internal/download"
	"github.com/ytget/yt-download-server/internal/model"
	"github.com/ytget/yt-download-server/internal/platform"
)

type urlRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

type downloadResponse struct {
	Success     bool   `json:"success"`
	Title       string `json:"title"`
	DownloadURL string `json:"download_url"`
}

type videoInfoResponse struct {
	Success bool `json:"success"`
	*model.VideoInfo
}

type qualitiesResponse struct {
	Success   bool            `json:"success"`
	Qualities []model.Quality `json:"qualities"`
}

type playlistResponse struct {
	Success bool `json:"success"`
	*model.Playlist
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: healthStatusHealthy})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	artifact, err := s.downloads.Download(r.Context(), req.URL, req.Format)
	if err != nil {
		status, msg := classifyURLError(err, msgDownloadFailed)
		writeError(w, status, msg)
		return
	}

	entry := catalog.Entry{
		ID:          artifact.ID,
		FileName:    artifact.FileName(),
		Title:       artifact.Title,
		DisplayName: artifact.GetDisplayName(),
		SourceURL:   req.URL,
		Format:      artifact.Selector.String(),
		CreatedAt:   artifact.CreatedAt,
	}
	if err := s.catalog.Put(r.Context(), entry); err != nil {
		s.logger.Warn("failed to record artifact in catalog", "id", artifact.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, downloadResponse{
		Success:     true,
		Title:       artifact.Title,
		DownloadURL: s.downloadURL(artifact),
	})
}

func (s *Server) downloadURL(a *model.Artifact) string {
	return s.cfg.BaseURL + "/download/" + url.PathEscape(a.FileName()) +
		"?filename=" + url.QueryEscape(a.GetDisplayName())
}

// handleServeFile streams a stored file as an attachment. {file} is either
// the bare id or "<id>.<ext>".
func (s *Server) handleServeFile(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	id, ext, _ := strings.Cut(file, ".")

	path, err := s.files.Resolve(id, ext)
	if err != nil {
		s.logger.Debug("file lookup failed", "file", file, "error", err)
		writeError(w, http.StatusNotFound, msgFileNotFound)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		// reaped between resolve and open
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, msgFileNotFound)
			return
		}
		s.logger.Error("failed to open file", "file", file, "error", err)
		writeError(w, http.StatusInternalServerError, msgServeFailed)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("failed to stat file", "file", file, "error", err)
		writeError(w, http.StatusInternalServerError, msgServeFailed)
		return
	}

	name := s.attachmentName(r, id, file)
	w.Header().Set("Content-Type", platform.ContentTypeFor(path))
	if cd := mime.FormatMediaType("attachment", map[string]string{"filename": name}); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	} else {
		w.Header().Set("Content-Disposition", "attachment")
	}
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

// attachmentName picks the download name: the filename query, then the
// catalog, then the requested path segment
func (s *Server) attachmentName(r *http.Request, id, file string) string {
	if name := strings.TrimSpace(r.URL.Query().Get("filename")); name != "" {
		return platform.SanitizeFilename(name, file)
	}
	if entry, err := s.catalog.Get(r.Context(), id); err == nil && entry.DisplayName != "" {
		return entry.DisplayName
	} else if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		s.logger.Warn("catalog lookup failed", "id", id, "error", err)
	}
	return file
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	info, err := s.downloads.VideoInfo(r.Context(), req.URL)
	if err != nil {
		status, msg := classifyURLError(err, msgInfoFailed)
		writeFailure(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, videoInfoResponse{Success: true, VideoInfo: info})
}

func (s *Server) handleVideoQualities(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	qualities, err := s.downloads.Qualities(r.Context(), req.URL)
	if err != nil {
		status, msg := classifyURLError(err, msgQualitiesFailed)
		writeFailure(w, status, msg)
		return
	}
	if qualities == nil {
		qualities = []model.Quality{}
	}
	writeJSON(w, http.StatusOK, qualitiesResponse{Success: true, Qualities: qualities})
}

func (s *Server) handlePlaylistItems(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	playlist, err := s.playlists.ParsePlaylist(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, platform.ErrNotPlaylistURL) {
			writeFailure(w, http.StatusBadRequest, msgNotPlaylist)
			return
		}
		status, msg := classifyURLError(err, msgPlaylistFailed)
		if status == http.StatusInternalServerError {
			s.logger.Error("playlist listing failed", "url", req.URL, "error", err)
		}
		writeFailure(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{Success: true, Playlist: playlist})
}

// classifyURLError maps URL validation errors to 400 and everything else to
// 500 with the given message
func classifyURLError(err error, failure string) (int, string) {
	switch {
	case errors.Is(err, platform.ErrEmptyURL):
		return http.StatusBadRequest, msgURLNotProvided
	case errors.Is(err, download.ErrInvalidInput),
		errors.Is(err, platform.ErrMalformedURL),
		errors.Is(err, platform.ErrHostNotAllowed):
		return http.StatusBadRequest, msgInvalidURL
	default:
		return http.StatusInternalServerError, failure
	}
}
