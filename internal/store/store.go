// Package store defines the read surface the core components need from the
// relational catalog, plus its two implementations: Postgres for production
// and an in-memory store for tests and DB-less dev mode.
//
// All catalog rows (bibles, filesets, access groups, chapter files) are
// externally managed by ingestion pipelines — this service only reads them.
// The interface deliberately avoids any SQL dialect assumptions; it is a
// synchronous key/value + simple-filter query surface.
package store

import (
	"context"
	"errors"

	"github.com/versecast/versecast/internal/fileset"
)

// ErrNotFound is returned by single-row lookups with no matching row.
var ErrNotFound = errors.New("store: not found")

// DownloadableFileset is one row of the "what can this key download"
// listing, already deduplicated by (id, type, language, licensor).
type DownloadableFileset struct {
	FilesetID   string `json:"fileset_id"`
	Type        string `json:"type"`
	LanguageISO string `json:"language"`
	Licensor    string `json:"licensor,omitempty"`
}

// Bible is the minimal bible row the API surfaces.
type Bible struct {
	ID            string `json:"id"`
	LanguageISO   string `json:"language"`
	VersionName   string `json:"name"`
	NumeralSystem string `json:"numeral_system,omitempty"`
}

// Store is the full read surface consumed by the core. It embeds
// fileset.Catalog so the ID resolver can take either the whole store or a
// narrower fake.
type Store interface {
	fileset.Catalog

	// FindBible returns a bible row or ErrNotFound.
	FindBible(ctx context.Context, bibleID string) (*Bible, error)
	// ListFilesetsForBible returns every fileset connected to a bible.
	ListFilesetsForBible(ctx context.Context, bibleID string) ([]fileset.Fileset, error)

	// ListAccessGroupsForKey returns the direct access-group memberships
	// of an API key. Unknown/disabled keys yield an empty slice, not an
	// error — access control fails closed on empty.
	ListAccessGroupsForKey(ctx context.Context, key string) ([]int64, error)
	// FindGeoAccessGroup returns the default access group implied by an
	// "api" access rule scoped to the country or, failing that, the
	// continent. ok is false when no rule matches.
	FindGeoAccessGroup(ctx context.Context, countryCode, continentCode string) (groupID int64, ok bool, err error)
	// ListPermittedHashIDs returns the set of fileset hash_ids unlocked
	// by any of the given groups.
	ListPermittedHashIDs(ctx context.Context, groupIDs []int64) (map[string]struct{}, error)
	// HashPermitted reports whether one hash_id is unlocked by any of
	// the given groups.
	HashPermitted(ctx context.Context, hashID string, groupIDs []int64) (bool, error)
	// ListDownloadable pages through the distinct downloadable filesets
	// visible to the given groups.
	ListDownloadable(ctx context.Context, groupIDs []int64, limit, offset int) ([]DownloadableFileset, error)

	// ListChapterFiles returns the deliverable files of a fileset for one
	// book, ordered by chapter then verse.
	ListChapterFiles(ctx context.Context, hashID, bookID string) ([]fileset.ChapterFile, error)
	// FindChapterFile returns the file covering a specific chapter.
	FindChapterFile(ctx context.Context, hashID, bookID string, chapter int) (*fileset.ChapterFile, error)
	// ListBandwidthVariants returns the bitrate renditions of a
	// streaming chapter file.
	ListBandwidthVariants(ctx context.Context, chapterFileID int64) ([]fileset.BandwidthVariant, error)
	// ListMediaSegments returns a variant's segments in playback order.
	ListMediaSegments(ctx context.Context, variantID int64) ([]fileset.MediaSegment, error)
}
