// Package fileset holds the core domain types for Bible content bundles and
// the selection/resolution logic that picks a single deliverable fileset out
// of a bible's catalog.
//
// A fileset is a named, typed bundle of content (one media type + testament
// coverage combination). It is addressed two ways:
//
//   - a human-readable ID (6–16 chars, e.g. "ENGESVN2DA" or legacy "ENGESV")
//   - a hash_id content fingerprint shared by every ID alias of the same
//     underlying content revision
//
// Access control operates on hash_ids; delivery operates on IDs.
package fileset

import "sort"

// Set type codes. These mirror the ingestion pipeline's vocabulary and are
// stored verbatim in bible_filesets.set_type_code.
const (
	TypeAudio            = "audio"
	TypeAudioDrama       = "audio_drama"
	TypeAudioStream      = "audio_stream"
	TypeAudioDramaStream = "audio_drama_stream"
	TypeVideoStream      = "video_stream"
	TypeTextPlain        = "text_plain"
	TypeTextFormat       = "text_format"
	TypeTextUSX          = "text_usx"
)

// Size codes describe how much of the Bible a fileset covers.
// Combined codes ("NTOTP") are matched by substring containment; "C" matches
// any requested testament.
const (
	SizeComplete     = "C"
	SizeNewTestament = "NT"
	SizeOldTestament = "OT"
)

// Fileset is one row of bible_filesets plus its (normally single) bible
// connection. Rows are externally managed by the ingestion pipeline; this
// service only reads them.
type Fileset struct {
	ID          string `json:"id"`
	HashID      string `json:"hash_id"`
	SetTypeCode string `json:"type"`
	SetSizeCode string `json:"size"`
	AssetID     string `json:"asset_id"`
	BibleID     string `json:"bible_id,omitempty"`
	LanguageISO string `json:"language,omitempty"`
	Licensor    string `json:"licensor,omitempty"`
}

// Enriched carries a base fileset plus request-scoped metadata (artwork URLs,
// copyright tags) without mutating the base entity. Handlers construct one
// per response; the underlying Fileset is never written to.
type Enriched struct {
	Fileset
	Meta map[string]string `json:"meta,omitempty"`
}

// Enrich returns an Enriched copy of f with the given metadata attached.
func Enrich(f Fileset, meta map[string]string) Enriched {
	return Enriched{Fileset: f, Meta: meta}
}

// ChapterFile is a unit of deliverable content within a fileset.
type ChapterFile struct {
	ID           int64   `json:"-"`
	HashID       string  `json:"-"`
	BookID       string  `json:"book_id"`
	ChapterStart int     `json:"chapter_start"`
	ChapterEnd   int     `json:"chapter_end"`
	VerseStart   int     `json:"verse_start"`
	VerseEnd     int     `json:"verse_end"`
	Duration     float64 `json:"duration,omitempty"`
	FileName     string  `json:"file_name"`
}

// BandwidthVariant is one bitrate rendition of a streaming chapter file.
// Video variants carry a resolution; audio-only variants do not.
type BandwidthVariant struct {
	ID               int64  `json:"-"`
	ChapterFileID    int64  `json:"-"`
	FileName         string `json:"file_name"`
	Bandwidth        int    `json:"bandwidth"`
	ResolutionWidth  int    `json:"resolution_width,omitempty"`
	ResolutionHeight int    `json:"resolution_height,omitempty"`
	Codec            string `json:"codec,omitempty"`
}

// IsVideo reports whether the variant carries a video rendition.
func (v BandwidthVariant) IsVideo() bool {
	return v.ResolutionWidth > 0 && v.ResolutionHeight > 0
}

// MediaSegment is one transport-stream segment (or byte range) of a
// bandwidth variant, in playback order.
type MediaSegment struct {
	VariantID int64   `json:"-"`
	Position  int     `json:"position"`
	FileName  string  `json:"file_name"`
	Duration  float64 `json:"duration"`
}

// IsStreamType reports whether t is an HLS streaming set type.
func IsStreamType(t string) bool {
	switch t {
	case TypeAudioStream, TypeAudioDramaStream, TypeVideoStream:
		return true
	}
	return false
}

// StreamVariant returns the "_stream" counterpart of a non-stream audio type,
// or "" when t has no stream sibling.
func StreamVariant(t string) string {
	switch t {
	case TypeAudio:
		return TypeAudioStream
	case TypeAudioDrama:
		return TypeAudioDramaStream
	}
	return ""
}

// SizeMatches reports whether a fileset size code satisfies a requested
// testament under the exact-match rule. Containment and complete-code
// fallbacks are separate selector rules — see selector.go.
func SizeMatches(sizeCode, testament string) bool {
	return testament == "" || sizeCode == testament
}

// sortByID orders filesets by ID so every downstream pick is deterministic
// regardless of the store's row order.
func sortByID(fs []Fileset) []Fileset {
	out := make([]Fileset, len(fs))
	copy(out, fs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
