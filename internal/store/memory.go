// memory.go — in-memory Store used by unit tests and DB-less dev mode.
// Mirrors the Postgres implementation's semantics exactly: empty group sets
// see nothing, lookups return ErrNotFound, ordering is deterministic.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/versecast/versecast/internal/fileset"
)

// GeoRule is a country/continent default-access rule for the memory store.
type GeoRule struct {
	CountryCode   string // empty = continent-wide rule
	ContinentCode string
	GroupID       int64
}

// Memory is a fixture-backed Store. Populate the exported fields before
// use; methods never mutate them.
type Memory struct {
	mu sync.RWMutex

	Bibles      []Bible
	Filesets    []fileset.Fileset
	Connections map[string][]string // bible_id -> fileset IDs
	KeyGroups   map[string][]int64  // api key -> access group IDs
	GeoRules    []GeoRule
	Permitted   map[int64][]string // access group -> hash_ids
	Chapters    []fileset.ChapterFile
	Variants    []fileset.BandwidthVariant
	Segments    []fileset.MediaSegment
}

// NewMemory returns an empty memory store ready to be populated.
func NewMemory() *Memory {
	return &Memory{
		Connections: map[string][]string{},
		KeyGroups:   map[string][]int64{},
		Permitted:   map[int64][]string{},
	}
}

func (m *Memory) FindFilesetsByID(_ context.Context, id string) ([]fileset.Fileset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.Fileset
	for _, f := range m.Filesets {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) FindFilesetsByIDPrefix(_ context.Context, prefix string) ([]fileset.Fileset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.Fileset
	for _, f := range m.Filesets {
		if strings.HasPrefix(f.ID, prefix) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) ListFilesetsByBiblePrefix(_ context.Context, prefix string) ([]fileset.Fileset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.Fileset
	for bible, ids := range m.Connections {
		if !strings.HasPrefix(bible, prefix) {
			continue
		}
		for _, id := range ids {
			for _, f := range m.Filesets {
				if f.ID == id {
					out = append(out, f)
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) FindBible(_ context.Context, bibleID string) (*Bible, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.Bibles {
		if b.ID == bibleID {
			bb := b
			return &bb, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListFilesetsForBible(_ context.Context, bibleID string) ([]fileset.Fileset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.Fileset
	for _, id := range m.Connections[bibleID] {
		for _, f := range m.Filesets {
			if f.ID == id {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListAccessGroupsForKey(_ context.Context, key string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups := m.KeyGroups[key]
	out := make([]int64, len(groups))
	copy(out, groups)
	return out, nil
}

func (m *Memory) FindGeoAccessGroup(_ context.Context, countryCode, continentCode string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.GeoRules {
		if r.CountryCode != "" && r.CountryCode == countryCode {
			return r.GroupID, true, nil
		}
	}
	for _, r := range m.GeoRules {
		if r.CountryCode == "" && r.ContinentCode == continentCode {
			return r.GroupID, true, nil
		}
	}
	return 0, false, nil
}

func (m *Memory) ListPermittedHashIDs(_ context.Context, groupIDs []int64) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]struct{}{}
	for _, g := range groupIDs {
		for _, h := range m.Permitted[g] {
			out[h] = struct{}{}
		}
	}
	return out, nil
}

func (m *Memory) HashPermitted(ctx context.Context, hashID string, groupIDs []int64) (bool, error) {
	set, err := m.ListPermittedHashIDs(ctx, groupIDs)
	if err != nil {
		return false, err
	}
	_, ok := set[hashID]
	return ok, nil
}

func (m *Memory) ListDownloadable(ctx context.Context, groupIDs []int64, limit, offset int) ([]DownloadableFileset, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	set, err := m.ListPermittedHashIDs(ctx, groupIDs)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[DownloadableFileset]bool{}
	var all []DownloadableFileset
	for _, f := range m.Filesets {
		if _, ok := set[f.HashID]; !ok {
			continue
		}
		if strings.HasSuffix(f.SetTypeCode, "_stream") {
			continue
		}
		d := DownloadableFileset{
			FilesetID:   f.ID,
			Type:        f.SetTypeCode,
			LanguageISO: f.LanguageISO,
			Licensor:    f.Licensor,
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FilesetID < all[j].FilesetID })

	if limit <= 0 {
		limit = 100
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *Memory) ListChapterFiles(_ context.Context, hashID, bookID string) ([]fileset.ChapterFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.ChapterFile
	for _, f := range m.Chapters {
		if f.HashID == hashID && f.BookID == bookID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChapterStart != out[j].ChapterStart {
			return out[i].ChapterStart < out[j].ChapterStart
		}
		return out[i].VerseStart < out[j].VerseStart
	})
	return out, nil
}

func (m *Memory) FindChapterFile(ctx context.Context, hashID, bookID string, chapter int) (*fileset.ChapterFile, error) {
	files, err := m.ListChapterFiles(ctx, hashID, bookID)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		end := f.ChapterEnd
		if end == 0 {
			end = f.ChapterStart
		}
		if f.ChapterStart <= chapter && end >= chapter {
			ff := f
			return &ff, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListBandwidthVariants(_ context.Context, chapterFileID int64) ([]fileset.BandwidthVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.BandwidthVariant
	for _, v := range m.Variants {
		if v.ChapterFileID == chapterFileID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bandwidth < out[j].Bandwidth })
	return out, nil
}

func (m *Memory) ListMediaSegments(_ context.Context, variantID int64) ([]fileset.MediaSegment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []fileset.MediaSegment
	for _, s := range m.Segments {
		if s.VariantID == variantID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}
