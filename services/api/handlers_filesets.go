// handlers_filesets.go — fileset metadata and download endpoints.
//
// Error postures differ per endpoint on purpose: metadata lookups answer
// 404 for filesets the key cannot see (existence is not disclosed), while
// download answers 403 once the fileset is known to exist. Clients have
// relied on both behaviors for years.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versecast/versecast/internal/fileset"
	"github.com/versecast/versecast/internal/metrics"
	"github.com/versecast/versecast/internal/store"
	"github.com/versecast/versecast/internal/validate"
)

// handleFilesetShow returns one fileset's metadata.
// GET /bibles/filesets/{fileset_id}?type=&v=
func (s *Server) handleFilesetShow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileset_id")
	if err := validate.IsFilesetID("fileset_id", id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_fileset_id", err.Error())
		return
	}

	fs, err := s.ids.Resolve(r.Context(), id, r.URL.Query().Get("type"), versionFromCtx(r.Context()))
	if err != nil {
		if errors.Is(err, fileset.ErrNotFound) || errors.Is(err, fileset.ErrAmbiguous) {
			writeError(w, http.StatusNotFound, "fileset_not_found", "fileset not found")
			return
		}
		s.logger.Error("fileset resolve failed", "fileset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "fileset lookup failed")
		return
	}

	visible, err := s.filter.IsVisible(r.Context(), fs.HashID, groupsFromCtx(r.Context()))
	if err != nil {
		s.logger.Error("visibility check failed", "hash_id", fs.HashID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "access check failed")
		return
	}
	if !visible {
		// Same answer as a nonexistent fileset.
		metrics.AccessDenied.WithLabelValues("fileset_hidden").Inc()
		writeError(w, http.StatusNotFound, "fileset_not_found", "fileset not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": fileset.Enrich(*fs, s.filesetMeta(fs)),
	})
}

// filesetMeta builds the request-scoped metadata block: artwork URL when the
// signer is configured, nothing otherwise.
func (s *Server) filesetMeta(fs *fileset.Fileset) map[string]string {
	if !s.signer.Configured() || fs.BibleID == "" {
		return nil
	}
	return map[string]string{
		"artwork_url": s.signer.Sign("/" + fs.AssetID + "/artwork/" + fs.BibleID + ".jpg"),
	}
}

// handleDownloadList pages through the filesets the key may download.
// GET /download/list?limit=&page=
func (s *Server) handleDownloadList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	rows, err := s.filter.ListDownloadable(r.Context(), groupsFromCtx(r.Context()), limit, (page-1)*limit)
	if err != nil {
		s.logger.Error("download list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "listing failed")
		return
	}
	if rows == nil {
		rows = []store.DownloadableFileset{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": rows,
		"meta": map[string]int{"page": page, "limit": limit},
	})
}

// handleDownload issues a signed URL for one chapter's file.
// GET /download/{fileset_id}/{book_id}/{chapter}
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fileset_id")
	bookID := chi.URLParam(r, "book_id")
	chapter, _ := strconv.Atoi(chi.URLParam(r, "chapter"))

	var ve validate.MultiError
	ve.Add(validate.IsFilesetID("fileset_id", id))
	ve.Add(validate.IsBookID("book_id", bookID))
	ve.Add(validate.IsChapter("chapter", chapter))
	if ve.HasErrors() {
		writeError(w, http.StatusBadRequest, "invalid_request", ve.Error())
		return
	}

	fs, err := s.ids.Resolve(r.Context(), id, "", versionFromCtx(r.Context()))
	if err != nil {
		if errors.Is(err, fileset.ErrNotFound) || errors.Is(err, fileset.ErrAmbiguous) {
			writeError(w, http.StatusNotFound, "fileset_not_found", "fileset not found")
			return
		}
		s.logger.Error("fileset resolve failed", "fileset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "fileset lookup failed")
		return
	}
	if fileset.IsStreamType(fs.SetTypeCode) {
		writeError(w, http.StatusBadRequest, "not_downloadable", "streaming filesets cannot be downloaded")
		return
	}

	visible, err := s.filter.IsVisible(r.Context(), fs.HashID, groupsFromCtx(r.Context()))
	if err != nil {
		s.logger.Error("visibility check failed", "hash_id", fs.HashID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "access check failed")
		return
	}
	if !visible {
		metrics.AccessDenied.WithLabelValues("download_restricted").Inc()
		writeError(w, http.StatusForbidden, "not_authorized", "API key is not authorized for this fileset")
		return
	}

	if ok, retry := s.limiter.CheckDelivery(r.Context(), apiKeyFromCtx(r.Context()), s.limits); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "delivery rate limit exceeded")
		return
	}

	if !s.signer.Configured() {
		writeError(w, http.StatusServiceUnavailable, "delivery_unavailable", "content delivery is not configured")
		return
	}

	file, err := s.store.FindChapterFile(r.Context(), fs.HashID, bookID, chapter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chapter_not_found", "no file covers this chapter")
			return
		}
		s.logger.Error("chapter file lookup failed", "hash_id", fs.HashID, "book", bookID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chapter lookup failed")
		return
	}

	signed := s.signer.SignObject(r.Context(), apiKeyFromCtx(r.Context()), fs.AssetID, file.FileName)
	metrics.SignedURLs.WithLabelValues(fs.SetTypeCode).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"fileset_id": fs.ID,
			"book_id":    file.BookID,
			"chapter":    file.ChapterStart,
			"path":       signed,
			"duration":   file.Duration,
		},
	})
}
