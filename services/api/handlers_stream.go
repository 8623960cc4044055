// handlers_stream.go — HLS playlist endpoints: per-chapter master and media
// playlists, plus whole-book merged playlists with optional zip bundling.
//
// Provider failures surface to the client as 502 immediately. A merged
// playlist is only as good as every chapter in it, so there is nothing
// useful to serve from a partial fetch and no automatic retry.
package api

import (
	"archive/zip"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/versecast/versecast/internal/delivery"
	"github.com/versecast/versecast/internal/fileset"
	"github.com/versecast/versecast/internal/hls"
	"github.com/versecast/versecast/internal/metrics"
	"github.com/versecast/versecast/internal/store"
	"github.com/versecast/versecast/internal/upstream"
	"github.com/versecast/versecast/internal/validate"
	"github.com/versecast/versecast/pkg/telemetry"
)

// resolveStreamFileset handles the shared front half of every stream
// endpoint: validation, ID resolution, stream-type check, and the access
// check (403 posture — the fileset's existence is already public through
// the catalog). Writes the error response itself and returns nil on failure.
func (s *Server) resolveStreamFileset(w http.ResponseWriter, r *http.Request) *fileset.Fileset {
	id := chi.URLParam(r, "fileset_id")
	bookID := chi.URLParam(r, "book_id")

	var ve validate.MultiError
	ve.Add(validate.IsFilesetID("fileset_id", id))
	ve.Add(validate.IsBookID("book_id", bookID))
	if ve.HasErrors() {
		writeError(w, http.StatusBadRequest, "invalid_request", ve.Error())
		return nil
	}

	fs, err := s.ids.Resolve(r.Context(), id, "", versionFromCtx(r.Context()))
	if err != nil {
		if errors.Is(err, fileset.ErrNotFound) || errors.Is(err, fileset.ErrAmbiguous) {
			writeError(w, http.StatusNotFound, "fileset_not_found", "fileset not found")
			return nil
		}
		s.logger.Error("fileset resolve failed", "fileset_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "fileset lookup failed")
		return nil
	}
	if !fileset.IsStreamType(fs.SetTypeCode) {
		writeError(w, http.StatusBadRequest, "not_streamable", "fileset is not a streaming type")
		return nil
	}

	visible, err := s.filter.IsVisible(r.Context(), fs.HashID, groupsFromCtx(r.Context()))
	if err != nil {
		s.logger.Error("visibility check failed", "hash_id", fs.HashID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "access check failed")
		return nil
	}
	if !visible {
		metrics.AccessDenied.WithLabelValues("stream_restricted").Inc()
		writeError(w, http.StatusForbidden, "not_authorized", "API key is not authorized for this fileset")
		return nil
	}

	if ok, retry := s.limiter.CheckDelivery(r.Context(), apiKeyFromCtx(r.Context()), s.limits); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "delivery rate limit exceeded")
		return nil
	}
	return fs
}

// handleStreamMaster serves the bandwidth-selection master playlist.
// GET /stream/{fileset_id}/{book_id}/{chapter}/playlist.m3u8
func (s *Server) handleStreamMaster(w http.ResponseWriter, r *http.Request) {
	fs := s.resolveStreamFileset(w, r)
	if fs == nil {
		return
	}
	bookID := chi.URLParam(r, "book_id")
	chapter, _ := strconv.Atoi(chi.URLParam(r, "chapter"))
	if err := validate.IsChapter("chapter", chapter); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_chapter", err.Error())
		return
	}

	file, err := s.store.FindChapterFile(r.Context(), fs.HashID, bookID, chapter)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chapter_not_found", "no file covers this chapter")
			return
		}
		s.logger.Error("chapter file lookup failed", "hash_id", fs.HashID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chapter lookup failed")
		return
	}

	variants, err := s.store.ListBandwidthVariants(r.Context(), file.ID)
	if err != nil {
		s.logger.Error("variant lookup failed", "chapter_file", file.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "variant lookup failed")
		return
	}
	if len(variants) == 0 {
		writeError(w, http.StatusNotFound, "no_variants", "no renditions available for this chapter")
		return
	}

	scheme := "https"
	if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
		scheme = "http"
	}
	base := scheme + "://" + r.Host + "/stream/" + fs.ID + "/" + bookID + "/" + strconv.Itoa(chapter)

	writePlaylist(w, hls.BuildMaster(variants, hls.MasterParams{
		BaseURL: base,
		Key:     apiKeyFromCtx(r.Context()),
		Version: strconv.Itoa(versionFromCtx(r.Context())),
		AssetID: fs.AssetID,
	}))
}

// handleStreamMedia serves one rendition's segment playlist with signed
// segment URLs.
// GET /stream/{fileset_id}/{book_id}/{chapter}/{variant}
func (s *Server) handleStreamMedia(w http.ResponseWriter, r *http.Request) {
	fs := s.resolveStreamFileset(w, r)
	if fs == nil {
		return
	}
	bookID := chi.URLParam(r, "book_id")
	chapter, _ := strconv.Atoi(chi.URLParam(r, "chapter"))
	variantName := chi.URLParam(r, "variant")
	if err := validate.NoPathTraversal("variant", variantName); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_variant", err.Error())
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
		s.logger.Error("chapter file lookup failed", "hash_id", fs.HashID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chapter lookup failed")
		return
	}

	variants, err := s.store.ListBandwidthVariants(r.Context(), file.ID)
	if err != nil {
		s.logger.Error("variant lookup failed", "chapter_file", file.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "variant lookup failed")
		return
	}
	var variant *fileset.BandwidthVariant
	for i := range variants {
		if variants[i].FileName == variantName {
			variant = &variants[i]
			break
		}
	}
	if variant == nil {
		writeError(w, http.StatusNotFound, "variant_not_found", "no such rendition")
		return
	}

	segments, err := s.store.ListMediaSegments(r.Context(), variant.ID)
	if err != nil {
		s.logger.Error("segment lookup failed", "variant", variant.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "segment lookup failed")
		return
	}

	metrics.SignedURLs.WithLabelValues(fs.SetTypeCode).Add(float64(len(segments)))
	writePlaylist(w, hls.BuildMedia(segments, s.signer.SignFunc(fs.AssetID)))
}

// handleStreamBook serves a merged playlist covering a whole book or a
// verse range within it. With ?zip=true the playlist and its segments are
// bundled into a zip archive for offline use.
// GET /stream/{fileset_id}/{book_id}?chapter_start=&verse_start=&chapter_end=&verse_end=&zip=
func (s *Server) handleStreamBook(w http.ResponseWriter, r *http.Request) {
	fs := s.resolveStreamFileset(w, r)
	if fs == nil {
		return
	}
	bookID := chi.URLParam(r, "book_id")

	q := r.URL.Query()
	rng := hls.VerseRange{
		ChapterStart: atoiDefault(q.Get("chapter_start")),
		VerseStart:   atoiDefault(q.Get("verse_start")),
		ChapterEnd:   atoiDefault(q.Get("chapter_end")),
		VerseEnd:     atoiDefault(q.Get("verse_end")),
	}
	if err := validate.VerseRangeOrdered("range", rng.ChapterStart, rng.VerseStart, rng.ChapterEnd, rng.VerseEnd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
		return
	}
	asZip := q.Get("zip") == "true"

	if !s.signer.Configured() {
		writeError(w, http.StatusServiceUnavailable, "delivery_unavailable", "content delivery is not configured")
		return
	}

	files, err := s.store.ListChapterFiles(r.Context(), fs.HashID, bookID)
	if err != nil {
		s.logger.Error("chapter listing failed", "hash_id", fs.HashID, "book", bookID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "chapter listing failed")
		return
	}
	files = hls.FilterChapterFiles(files, rng)
	if len(files) == 0 {
		writeError(w, http.StatusNotFound, "book_not_found", "no content in the requested range")
		return
	}

	start := time.Now()
	playlists := make([]string, 0, len(files))
	for _, f := range files {
		// Bulk manifests get the long lifetime; a whole-book fetch can
		// outlive the per-object default many times over.
		u := s.signer.SignWithTTL("/"+fs.AssetID+"/"+f.FileName, delivery.BulkTTL)
		u += verseBounds(f, rng)
		body, err := s.provider.FetchPlaylist(r.Context(), u)
		if err != nil {
			s.upstreamError(w, err)
			return
		}
		playlists = append(playlists, body)
	}

	merged := hls.Merge(playlists, asZip)
	metrics.PlaylistMerges.Inc()
	metrics.MergeDuration.Observe(time.Since(start).Seconds())

	if !asZip {
		writePlaylist(w, merged.Content)
		return
	}
	s.writeZipBundle(w, r, fs.ID+"_"+bookID, merged)
}

// writeZipBundle streams a zip archive containing the rewritten playlist
// plus every segment it references, fetched from the provider.
func (s *Server) writeZipBundle(w http.ResponseWriter, r *http.Request, name string, merged hls.MergeResult) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.zip"`)
	w.WriteHeader(http.StatusOK)

	zw := zip.NewWriter(w)
	defer zw.Close()

	pw, err := zw.Create("playlist.m3u8")
	if err != nil {
		s.logger.Error("zip write failed", "error", err)
		return
	}
	if _, err := pw.Write([]byte(merged.Content)); err != nil {
		s.logger.Error("zip write failed", "error", err)
		return
	}

	// Headers are already sent, so segment fetch failures can only be
	// logged; the client sees a truncated archive.
	for localName, signedURL := range merged.SignedFiles {
		data, err := s.provider.FetchObject(r.Context(), signedURL)
		if err != nil {
			s.logger.Error("segment fetch failed during bundling", "file", localName, "error", err)
			return
		}
		fw, err := zw.Create(localName)
		if err != nil {
			s.logger.Error("zip write failed", "file", localName, "error", err)
			return
		}
		if _, err := fw.Write(data); err != nil {
			s.logger.Error("zip write failed", "file", localName, "error", err)
			return
		}
	}
}

// verseBounds renders the upstream verse-trimming query params for a chapter
// file sitting on a range boundary. The provider trims inside the chapter;
// chapter-level exclusion already happened in FilterChapterFiles.
func verseBounds(f fileset.ChapterFile, rng hls.VerseRange) string {
	q := url.Values{}
	if rng.VerseStart > 0 && f.ChapterStart == rng.ChapterStart {
		q.Set("verse_start", strconv.Itoa(rng.VerseStart))
	}
	if rng.VerseEnd > 0 && f.ChapterStart == rng.ChapterEnd {
		q.Set("verse_end", strconv.Itoa(rng.VerseEnd))
	}
	if len(q) == 0 {
		return ""
	}
	return "&" + q.Encode()
}

// upstreamError maps a provider failure onto the client response.
func (s *Server) upstreamError(w http.ResponseWriter, err error) {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		metrics.UpstreamErrors.WithLabelValues(strconv.Itoa(ue.StatusCode)).Inc()
		telemetry.CaptureError(err, map[string]string{
			"operation": "upstream_fetch",
			"status":    strconv.Itoa(ue.StatusCode),
		})
		s.logger.Warn("provider rejected playlist fetch", "status", ue.StatusCode, "url", ue.URL)
		writeError(w, http.StatusBadGateway, "upstream_error",
			"media provider returned "+strconv.Itoa(ue.StatusCode))
		return
	}
	metrics.UpstreamErrors.WithLabelValues("transport").Inc()
	telemetry.CaptureError(err, map[string]string{"operation": "upstream_fetch"})
	s.logger.Error("provider fetch failed", "error", err)
	writeError(w, http.StatusBadGateway, "upstream_error", "media provider unreachable")
}

// atoiDefault parses a query int, returning 0 on absence or garbage.
func atoiDefault(v string) int {
	n, _ := strconv.Atoi(v)
	if n < 0 {
		return 0
	}
	return n
}
