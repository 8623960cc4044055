// filter.go — fileset visibility checks on top of resolved access groups.
package access

import (
	"context"
	"fmt"

	"github.com/versecast/versecast/internal/fileset"
	"github.com/versecast/versecast/internal/store"
)

// Filter gates fileset visibility by hash_id. All checks intersect the
// caller's groups with the fileset's permitted groups; no groups means no
// visibility, never "everything".
type Filter struct {
	store store.Store
}

// NewFilter builds a Filter over the given store.
func NewFilter(st store.Store) *Filter {
	return &Filter{store: st}
}

// IsVisible reports whether any of the caller's groups unlocks the fileset
// identified by hashID.
func (f *Filter) IsVisible(ctx context.Context, hashID string, groupIDs []int64) (bool, error) {
	if len(groupIDs) == 0 || hashID == "" {
		return false, nil
	}
	ok, err := f.store.HashPermitted(ctx, hashID, groupIDs)
	if err != nil {
		return false, fmt.Errorf("hash permitted: %w", err)
	}
	return ok, nil
}

// FilterVisible returns the subset of candidates the caller's groups can
// see, preserving input order. A single set query covers every candidate.
func (f *Filter) FilterVisible(ctx context.Context, candidates []fileset.Fileset, groupIDs []int64) ([]fileset.Fileset, error) {
	if len(groupIDs) == 0 || len(candidates) == 0 {
		return nil, nil
	}
	permitted, err := f.store.ListPermittedHashIDs(ctx, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("permitted hash ids: %w", err)
	}
	var out []fileset.Fileset
	for _, c := range candidates {
		if _, ok := permitted[c.HashID]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListDownloadable pages through the distinct downloadable filesets the
// caller's groups unlock. Streaming-only types never appear here.
func (f *Filter) ListDownloadable(ctx context.Context, groupIDs []int64, limit, offset int) ([]store.DownloadableFileset, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	rows, err := f.store.ListDownloadable(ctx, groupIDs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list downloadable: %w", err)
	}
	return rows, nil
}
