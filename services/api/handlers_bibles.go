// handlers_bibles.go — bible metadata and chapter aggregation.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/versecast/versecast/internal/fileset"
	"github.com/versecast/versecast/internal/store"
	"github.com/versecast/versecast/internal/validate"
)

// handleBibleShow returns a bible with the filesets the key can see.
// GET /bibles/{bible_id}
func (s *Server) handleBibleShow(w http.ResponseWriter, r *http.Request) {
	bibleID := chi.URLParam(r, "bible_id")
	if err := validate.IsFilesetID("bible_id", bibleID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_bible_id", err.Error())
		return
	}

	bible, err := s.store.FindBible(r.Context(), bibleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bible_not_found", "bible not found")
			return
		}
		s.logger.Error("bible lookup failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "bible lookup failed")
		return
	}

	all, err := s.store.ListFilesetsForBible(r.Context(), bibleID)
	if err != nil {
		s.logger.Error("bible filesets lookup failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "fileset listing failed")
		return
	}
	visible, err := s.filter.FilterVisible(r.Context(), all, groupsFromCtx(r.Context()))
	if err != nil {
		s.logger.Error("visibility filter failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "access check failed")
		return
	}
	if visible == nil {
		visible = []fileset.Fileset{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"bible":    bible,
			"filesets": visible,
		},
	})
}

// handleBibleChapter aggregates one chapter across media types: the best
// audio fileset the key can see plus the text filesets, with a signed URL
// for the audio file.
// GET /bibles/{bible_id}/book/{book_id}/{chapter}?drama=&testament=
func (s *Server) handleBibleChapter(w http.ResponseWriter, r *http.Request) {
	bibleID := chi.URLParam(r, "bible_id")
	bookID := chi.URLParam(r, "book_id")
	chapter, _ := strconv.Atoi(chi.URLParam(r, "chapter"))
	testament := r.URL.Query().Get("testament")

	var ve validate.MultiError
	ve.Add(validate.IsFilesetID("bible_id", bibleID))
	ve.Add(validate.IsBookID("book_id", bookID))
	ve.Add(validate.IsChapter("chapter", chapter))
	ve.Add(validate.IsTestament("testament", testament))
	if ve.HasErrors() {
		writeError(w, http.StatusBadRequest, "invalid_request", ve.Error())
		return
	}

	if _, err := s.store.FindBible(r.Context(), bibleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bible_not_found", "bible not found")
			return
		}
		s.logger.Error("bible lookup failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "bible lookup failed")
		return
	}

	all, err := s.store.ListFilesetsForBible(r.Context(), bibleID)
	if err != nil {
		s.logger.Error("bible filesets lookup failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "fileset listing failed")
		return
	}
	visible, err := s.filter.FilterVisible(r.Context(), all, groupsFromCtx(r.Context()))
	if err != nil {
		s.logger.Error("visibility filter failed", "bible_id", bibleID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "access check failed")
		return
	}

	// Dramatized audio is preferred unless the client opts out.
	q := fileset.Query{
		PrimaryType:         fileset.TypeAudioDrama,
		SecondaryType:       fileset.TypeAudio,
		Testament:           testament,
		AllowStreamFallback: true,
	}
	if r.URL.Query().Get("drama") == "false" {
		q.PrimaryType, q.SecondaryType = fileset.TypeAudio, fileset.TypeAudioDrama
	}
	audio := fileset.SelectBest(visible, q)
	text := fileset.FilterType(visible, fileset.TypeTextPlain)

	resp := map[string]any{
		"bible_id": bibleID,
		"book_id":  bookID,
		"chapter":  chapter,
	}
	if len(text) > 0 {
		resp["text_fileset"] = text[0]
	}

	if audio != nil {
		entry := map[string]any{"fileset": audio}
		file, err := s.store.FindChapterFile(r.Context(), audio.HashID, bookID, chapter)
		switch {
		case err == nil:
			if fileset.IsStreamType(audio.SetTypeCode) {
				entry["playlist"] = streamURL(r, audio.ID, bookID, chapter)
			} else if s.signer.Configured() {
				entry["path"] = s.signer.SignObject(r.Context(), apiKeyFromCtx(r.Context()), audio.AssetID, file.FileName)
				entry["duration"] = file.Duration
			}
		case errors.Is(err, store.ErrNotFound):
			// Book or chapter missing from this fileset; metadata only.
		default:
			s.logger.Error("chapter file lookup failed", "hash_id", audio.HashID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "chapter lookup failed")
			return
		}
		resp["audio"] = entry
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": resp})
}

// streamURL builds the absolute master-playlist URL for a chapter, carrying
// the caller's key so playback requests re-authenticate.
func streamURL(r *http.Request, filesetID, bookID string, chapter int) string {
	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	return scheme + "://" + r.Host +
		"/stream/" + filesetID + "/" + bookID + "/" + strconv.Itoa(chapter) +
		"/playlist.m3u8?key=" + apiKeyFromCtx(r.Context())
}
