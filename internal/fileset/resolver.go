// resolver.go — fileset ID disambiguation.
//
// Fileset IDs arrive in two generations: legacy 6-character IDs
// ("ENGESV") and current 10–16 character IDs ("ENGESVN2DA"). Legacy API
// clients (v1/v2) also send IDs with damkey/codec suffixes that must be
// truncated before lookup. The resolver reproduces that historical client
// behavior exactly — it is intentionally loose for old versions and strict
// for current ones.
package fileset

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no fileset row matches the raw ID under any
// applicable lookup rule.
var ErrNotFound = errors.New("fileset not found")

// ErrAmbiguous is returned when a prefix lookup matched rows but the type
// filter left none usable. Callers surface it identically to ErrNotFound
// (404) — the distinction exists only for logging. Collapsing both into one
// client-visible outcome is long-standing behavior that clients depend on.
var ErrAmbiguous = errors.New("fileset lookup ambiguous: no usable candidate")

const legacyIDLength = 6

// Catalog is the read surface the resolver needs from the store.
type Catalog interface {
	// FindFilesetsByID returns every fileset row whose ID equals id.
	FindFilesetsByID(ctx context.Context, id string) ([]Fileset, error)
	// FindFilesetsByIDPrefix returns every fileset row whose ID starts
	// with prefix.
	FindFilesetsByIDPrefix(ctx context.Context, prefix string) ([]Fileset, error)
	// ListFilesetsByBiblePrefix returns filesets connected to any bible
	// whose bible_id starts with prefix.
	ListFilesetsByBiblePrefix(ctx context.Context, prefix string) ([]Fileset, error)
}

// Resolver disambiguates raw fileset identifiers against the catalog.
type Resolver struct {
	catalog Catalog
}

// NewResolver creates a Resolver backed by the given catalog.
func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// Resolve maps a raw identifier to exactly one fileset record.
//
// setType, when non-empty, restricts candidates to that set_type_code.
// apiVersion selects the lookup generation: versions ≤ 2 use the legacy
// truncation/prefix rules; later versions use exact-ID and bible-prefix
// lookups.
//
// Returns ErrNotFound when nothing matched and ErrAmbiguous when a lookup
// matched rows but filtering emptied the result.
func (r *Resolver) Resolve(ctx context.Context, rawID, setType string, apiVersion int) (*Fileset, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		return nil, ErrNotFound
	}
	if apiVersion > 0 && apiVersion <= 2 {
		return r.resolveLegacy(ctx, rawID, setType)
	}
	return r.resolveCurrent(ctx, rawID, setType)
}

// resolveCurrent tries an exact ID match first, then falls back to filesets
// connected to bibles under the given prefix ("any fileset belonging to
// bibles under ENGESV").
func (r *Resolver) resolveCurrent(ctx context.Context, rawID, setType string) (*Fileset, error) {
	rows, err := r.catalog.FindFilesetsByID(ctx, rawID)
	if err != nil {
		return nil, err
	}
	if f, ferr := pick(rows, setType); ferr == nil {
		return f, nil
	} else if errors.Is(ferr, ErrAmbiguous) {
		return nil, ferr
	}

	rows, err = r.catalog.ListFilesetsByBiblePrefix(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return pick(rows, setType)
}

// resolveLegacy reproduces v1/v2 client lookup: exact, drop-last-4,
// drop-last-2, then a 6-character prefix sweep.
func (r *Resolver) resolveLegacy(ctx context.Context, rawID, setType string) (*Fileset, error) {
	tries := []string{rawID}
	if n := len(rawID); n > 4 {
		tries = append(tries, rawID[:n-4])
	}
	if n := len(rawID); n > 2 {
		tries = append(tries, rawID[:n-2])
	}
	for _, id := range tries {
		rows, err := r.catalog.FindFilesetsByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if f, ferr := pick(rows, setType); ferr == nil {
			return f, nil
		}
	}

	if len(rawID) >= legacyIDLength {
		rows, err := r.catalog.FindFilesetsByIDPrefix(ctx, rawID[:legacyIDLength])
		if err != nil {
			return nil, err
		}
		return pick(rows, setType)
	}
	return nil, ErrNotFound
}

// pick applies the type filter and legacy-alias suppression, then returns
// the single remaining candidate (deterministic first pick on ties).
func pick(rows []Fileset, setType string) (*Fileset, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	var usable []Fileset
	for _, f := range rows {
		if setType != "" && f.SetTypeCode != setType {
			continue
		}
		usable = append(usable, f)
	}
	usable = SuppressLegacyTextAliases(usable)
	if len(usable) == 0 {
		// Rows matched the lookup but filtering/suppression emptied them.
		return nil, ErrAmbiguous
	}
	usable = sortByID(usable)
	f := usable[0]
	return &f, nil
}

// SuppressLegacyTextAliases removes 6-character text_plain rows whenever a
// 10+ character sibling with the same set_type_code shares the 6-char
// prefix. The long ID is authoritative for the same logical content; the
// short row is a retired alias that must never be served alongside it.
func SuppressLegacyTextAliases(rows []Fileset) []Fileset {
	if len(rows) < 2 {
		return rows
	}
	out := rows[:0:0]
	for _, f := range rows {
		if f.SetTypeCode == TypeTextPlain && len(f.ID) == legacyIDLength && hasLongSibling(rows, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func hasLongSibling(rows []Fileset, short Fileset) bool {
	for _, g := range rows {
		if g.SetTypeCode == short.SetTypeCode &&
			len(g.ID) > legacyIDLength &&
			strings.HasPrefix(g.ID, short.ID) {
			return true
		}
	}
	return false
}
