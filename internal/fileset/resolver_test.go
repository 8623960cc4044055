// resolver_test.go — ID disambiguation tests against an in-memory catalog.
package fileset

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// memCatalog is a tiny in-memory Catalog for resolver tests.
type memCatalog struct {
	rows []Fileset
	// byBible maps bible_id -> fileset IDs connected to it.
	byBible map[string][]string
}

func (m *memCatalog) FindFilesetsByID(_ context.Context, id string) ([]Fileset, error) {
	var out []Fileset
	for _, f := range m.rows {
		if f.ID == id {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memCatalog) FindFilesetsByIDPrefix(_ context.Context, prefix string) ([]Fileset, error) {
	var out []Fileset
	for _, f := range m.rows {
		if strings.HasPrefix(f.ID, prefix) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memCatalog) ListFilesetsByBiblePrefix(_ context.Context, prefix string) ([]Fileset, error) {
	var out []Fileset
	for bible, ids := range m.byBible {
		if !strings.HasPrefix(bible, prefix) {
			continue
		}
		for _, id := range ids {
			for _, f := range m.rows {
				if f.ID == id {
					out = append(out, f)
				}
			}
		}
	}
	return out, nil
}

func TestResolve_ExactMatch(t *testing.T) {
	cat := &memCatalog{rows: []Fileset{fs("ENGESVN2DA", TypeAudioDrama, "NT")}}
	r := NewResolver(cat)

	got, err := r.Resolve(context.Background(), "ENGESVN2DA", "", 4)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.ID != "ENGESVN2DA" {
		t.Errorf("expected ENGESVN2DA, got %s", got.ID)
	}
}

func TestResolve_BiblePrefix(t *testing.T) {
	cat := &memCatalog{
		rows:    []Fileset{fs("ENGESVN2DA", TypeAudioDrama, "NT")},
		byBible: map[string][]string{"ENGESV": {"ENGESVN2DA"}},
	}
	r := NewResolver(cat)

	got, err := r.Resolve(context.Background(), "ENG", "", 4)
	if err != nil {
		t.Fatalf("resolve via bible prefix failed: %v", err)
	}
	if got.ID != "ENGESVN2DA" {
		t.Errorf("expected ENGESVN2DA, got %s", got.ID)
	}
}

func TestResolve_LegacyTruncation(t *testing.T) {
	cat := &memCatalog{rows: []Fileset{fs("ENGESV", TypeTextPlain, "C")}}
	r := NewResolver(cat)

	// v2 clients send IDs with a 4-char suffix the catalog never stored.
	got, err := r.Resolve(context.Background(), "ENGESVO2ET", "", 2)
	if err != nil {
		t.Fatalf("legacy truncation resolve failed: %v", err)
	}
	if got.ID != "ENGESV" {
		t.Errorf("expected truncated match ENGESV, got %s", got.ID)
	}
}

func TestResolve_LegacyPrefixSweep(t *testing.T) {
	cat := &memCatalog{rows: []Fileset{fs("ENGKJVC1DA", TypeAudio, "C")}}
	r := NewResolver(cat)

	got, err := r.Resolve(context.Background(), "ENGKJVzzz", "", 1)
	if err != nil {
		t.Fatalf("legacy prefix resolve failed: %v", err)
	}
	if got.ID != "ENGKJVC1DA" {
		t.Errorf("expected ENGKJVC1DA, got %s", got.ID)
	}
}

func TestResolve_SuppressesShortTextAlias(t *testing.T) {
	// Both the retired 6-char alias and its authoritative 10-char sibling
	// exist for the same content. The short row must never be returned.
	cat := &memCatalog{rows: []Fileset{
		fs("ENGESV", TypeTextPlain, "C"),
		fs("ENGESVO2ET", TypeTextPlain, "C"),
	}}
	r := NewResolver(cat)

	got, err := r.Resolve(context.Background(), "ENGESV", "", 4)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if got.ID == "ENGESV" {
		t.Error("6-char text_plain alias returned despite 10-char sibling")
	}
	if got.ID != "ENGESVO2ET" {
		t.Errorf("expected authoritative ENGESVO2ET, got %s", got.ID)
	}
}

func TestSuppressLegacyTextAliases_TypeScoped(t *testing.T) {
	// Suppression only applies within the same set_type_code — an audio
	// fileset sharing the prefix must not trigger it.
	rows := []Fileset{
		fs("ENGESV", TypeTextPlain, "C"),
		fs("ENGESVN2DA", TypeAudioDrama, "NT"),
	}
	kept := SuppressLegacyTextAliases(rows)
	if len(kept) != 2 {
		t.Fatalf("expected both rows kept, got %d", len(kept))
	}
}

func TestResolve_NotFoundVsAmbiguous(t *testing.T) {
	cat := &memCatalog{rows: []Fileset{fs("ENGESVN2DA", TypeAudioDrama, "NT")}}
	r := NewResolver(cat)

	if _, err := r.Resolve(context.Background(), "PORNLTNOPE", "", 4); !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected not-found class error, got %v", err)
	}

	// ID matches a row, but the type filter empties the result:
	// internally ambiguous, still a 404 at the boundary.
	_, err := r.Resolve(context.Background(), "ENGESVN2DA", TypeVideoStream, 4)
	if !errors.Is(err, ErrAmbiguous) && !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ambiguous/not-found, got %v", err)
	}
}

func TestResolve_EmptyID(t *testing.T) {
	r := NewResolver(&memCatalog{})
	if _, err := r.Resolve(context.Background(), "  ", "", 4); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for blank ID, got %v", err)
	}
}
