// selector_test.go — fallback-chain selection tests.
package fileset

import "testing"

func fs(id, typ, size string) Fileset {
	return Fileset{ID: id, HashID: "h_" + id, SetTypeCode: typ, SetSizeCode: size}
}

func TestSelectBest_ExactTypeAndTestament(t *testing.T) {
	candidates := []Fileset{
		fs("ENGESVN2DA", TypeAudioDrama, "NT"),
		fs("ENGESVC1DA", TypeAudio, "C"),
	}
	got := SelectBest(candidates, Query{PrimaryType: TypeAudioDrama, SecondaryType: TypeAudio, Testament: "NT"})
	if got == nil {
		t.Fatal("expected a selection, got nil")
	}
	if got.ID != "ENGESVN2DA" {
		t.Errorf("expected ENGESVN2DA, got %s", got.ID)
	}
}

func TestSelectBest_SecondaryTypeCompleteFallback(t *testing.T) {
	// No drama exists for OT; the non-drama complete fileset must win via
	// the secondary-type rules.
	candidates := []Fileset{
		fs("ENGESVC1DA", TypeAudio, "C"),
	}
	got := SelectBest(candidates, Query{PrimaryType: TypeAudioDrama, SecondaryType: TypeAudio, Testament: "OT"})
	if got == nil {
		t.Fatal("expected fallback to audio/C, got nil")
	}
	if got.ID != "ENGESVC1DA" {
		t.Errorf("expected ENGESVC1DA, got %s", got.ID)
	}
}

func TestSelectBest_CombinedSizeContainsTestament(t *testing.T) {
	candidates := []Fileset{
		fs("ENGESVP1DA", TypeAudio, "NTOTP"),
	}
	got := SelectBest(candidates, Query{PrimaryType: TypeAudio, Testament: "NT"})
	if got == nil || got.ID != "ENGESVP1DA" {
		t.Fatalf("expected NTOTP fileset to satisfy NT, got %v", got)
	}
}

func TestSelectBest_StreamFallback(t *testing.T) {
	candidates := []Fileset{
		fs("ENGESVN2SA", TypeAudioDramaStream, "NT"),
	}

	// Streaming caller: the _stream sibling qualifies.
	got := SelectBest(candidates, Query{
		PrimaryType:         TypeAudioDrama,
		Testament:           "NT",
		AllowStreamFallback: true,
	})
	if got == nil || got.SetTypeCode != TypeAudioDramaStream {
		t.Fatalf("expected audio_drama_stream fallback, got %v", got)
	}

	// Download caller: stream renditions are not substitutable.
	got = SelectBest(candidates, Query{PrimaryType: TypeAudioDrama, Testament: "NT"})
	if got != nil {
		t.Fatalf("download query must not fall back to stream, got %v", got)
	}
}

func TestSelectBest_PrimaryBeatsSecondaryAcrossSizeRules(t *testing.T) {
	// A primary-type complete fileset must beat a secondary-type exact match:
	// the chain exhausts every size rule of the primary type first.
	candidates := []Fileset{
		fs("ENGESVC2DA", TypeAudioDrama, "C"),
		fs("ENGESVN1DA", TypeAudio, "NT"),
	}
	got := SelectBest(candidates, Query{PrimaryType: TypeAudioDrama, SecondaryType: TypeAudio, Testament: "NT"})
	if got == nil || got.ID != "ENGESVC2DA" {
		t.Fatalf("expected primary/complete to win, got %v", got)
	}
}

func TestSelectBest_Deterministic(t *testing.T) {
	a := fs("AAAESVN2DA", TypeAudioDrama, "NT")
	b := fs("BBBESVN2DA", TypeAudioDrama, "NT")
	q := Query{PrimaryType: TypeAudioDrama, Testament: "NT"}

	first := SelectBest([]Fileset{b, a}, q)
	second := SelectBest([]Fileset{a, b}, q)
	if first == nil || second == nil {
		t.Fatal("expected selections")
	}
	if first.ID != second.ID {
		t.Errorf("selection depends on input order: %s vs %s", first.ID, second.ID)
	}
	if first.ID != "AAAESVN2DA" {
		t.Errorf("tie must break on lowest ID, got %s", first.ID)
	}
}

func TestSelectBest_NoMatch(t *testing.T) {
	candidates := []Fileset{
		fs("ENGESVO2ET", TypeTextPlain, "OT"),
	}
	got := SelectBest(candidates, Query{PrimaryType: TypeVideoStream, Testament: "NT"})
	if got != nil {
		t.Errorf("expected nil for unavailable content, got %v", got)
	}
	if SelectBest(nil, Query{PrimaryType: TypeAudio}) != nil {
		t.Error("expected nil for empty candidate set")
	}
}

func TestQueryRules_Ordering(t *testing.T) {
	q := Query{
		PrimaryType:         TypeAudioDrama,
		SecondaryType:       TypeAudio,
		Testament:           "NT",
		AllowStreamFallback: true,
	}
	var names []string
	for _, r := range q.Rules() {
		names = append(names, r.name)
	}
	want := []string{
		"audio_drama/exact", "audio_drama/contains", "audio_drama/complete",
		"audio_drama_stream/exact", "audio_drama_stream/contains", "audio_drama_stream/complete",
		"audio/exact", "audio/contains", "audio/complete",
		"audio_stream/exact", "audio_stream/contains", "audio_stream/complete",
	}
	if len(names) != len(want) {
		t.Fatalf("expected %d rules, got %d: %v", len(want), len(names), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}
