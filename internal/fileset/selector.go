// selector.go — best-fileset selection with an explicit, ordered fallback
// rule list.
//
// Given every fileset attached to a bible, a desired media type and a
// testament, SelectBest picks the single fileset to deliver. Historically
// this was a chain of nested "try A else try B" calls; here the fallback
// order is a visible slice of named rules evaluated in sequence, so the
// ordering is testable data rather than control flow.
package fileset

import "strings"

// Query describes what the caller wants from a bible's fileset catalog.
type Query struct {
	// PrimaryType is the preferred set_type_code (e.g. "audio_drama").
	PrimaryType string
	// SecondaryType is tried when no primary-type fileset qualifies
	// (e.g. "audio" when drama is preferred but absent). Optional.
	SecondaryType string
	// Testament is the requested size code ("NT", "OT", "C"). Empty means
	// any coverage is acceptable.
	Testament string
	// AllowStreamFallback permits substituting the "_stream" sibling of a
	// non-stream audio type. Callers performing an explicit download keep
	// this false — a stream rendition is not downloadable as-is.
	AllowStreamFallback bool
}

// rule is one step of the fallback chain: a name for logging and a predicate
// over candidate filesets. The first rule that matches at least one
// candidate decides the selection.
type rule struct {
	name  string
	match func(f Fileset) bool
}

// typeRules returns the size-code cascade for a single set type:
// exact testament match, then combined codes containing the testament
// (NTOTP satisfies NT), then the complete code.
func typeRules(setType, testament string) []rule {
	if testament == "" {
		return []rule{{
			name:  setType + "/any",
			match: func(f Fileset) bool { return f.SetTypeCode == setType },
		}}
	}
	return []rule{
		{
			name: setType + "/exact",
			match: func(f Fileset) bool {
				return f.SetTypeCode == setType && f.SetSizeCode == testament
			},
		},
		{
			name: setType + "/contains",
			match: func(f Fileset) bool {
				return f.SetTypeCode == setType && strings.Contains(f.SetSizeCode, testament)
			},
		},
		{
			name: setType + "/complete",
			match: func(f Fileset) bool {
				return f.SetTypeCode == setType && f.SetSizeCode == SizeComplete
			},
		},
	}
}

// Rules materializes the full ordered fallback chain for a query:
// primary type, its stream sibling (when permitted), then the secondary
// type and its sibling. Exposed so tests can assert the ordering itself.
func (q Query) Rules() []rule {
	types := []string{q.PrimaryType}
	if q.AllowStreamFallback {
		if sv := StreamVariant(q.PrimaryType); sv != "" {
			types = append(types, sv)
		}
	}
	if q.SecondaryType != "" && q.SecondaryType != q.PrimaryType {
		types = append(types, q.SecondaryType)
		if q.AllowStreamFallback {
			if sv := StreamVariant(q.SecondaryType); sv != "" {
				types = append(types, sv)
			}
		}
	}

	var rules []rule
	for _, t := range types {
		rules = append(rules, typeRules(t, q.Testament)...)
	}
	return rules
}

// SelectBest returns the single best-matching fileset from candidates, or
// nil when no fallback rule matches anything. A nil result means "content
// unavailable", not an error — callers translate it to a 404 at the
// boundary.
//
// Selection is deterministic: candidates are ordered by fileset ID before
// the rules run, so ties inside a rule always break the same way.
func SelectBest(candidates []Fileset, q Query) *Fileset {
	if len(candidates) == 0 || q.PrimaryType == "" {
		return nil
	}
	ordered := sortByID(candidates)
	for _, r := range q.Rules() {
		for i := range ordered {
			if r.match(ordered[i]) {
				f := ordered[i]
				return &f
			}
		}
	}
	return nil
}

// FilterType returns the subset of candidates with the given set_type_code,
// in deterministic ID order.
func FilterType(candidates []Fileset, setType string) []Fileset {
	var out []Fileset
	for _, f := range sortByID(candidates) {
		if f.SetTypeCode == setType {
			out = append(out, f)
		}
	}
	return out
}
