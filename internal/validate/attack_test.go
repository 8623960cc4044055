// attack_test.go — adversarial input tests.
// Every validator is exercised against classic attack payloads.
// All must return a ValidationError — never panic, never pass.
package validate_test

import (
	"strings"
	"testing"

	"github.com/versecast/versecast/internal/validate"
)

// attackPayloads is a shared list of known-bad strings used across validators
// that accept free-form text.
var attackPayloads = []struct {
	name  string
	value string
}{
	{"sql_injection_classic", "' OR 1=1 --"},
	{"sql_injection_union", "1 UNION SELECT key,groups FROM api_keys--"},
	{"sql_injection_stacked", "1; DROP TABLE bible_filesets;--"},
	{"xss_script", "<script>alert(1)</script>"},
	{"xss_event", `" onmouseover="alert(1)`},
	{"xss_img", "<img src=x onerror=alert(1)>"},
	{"path_traversal_unix", "../../../etc/passwd"},
	{"path_traversal_win", `..\..\..\\windows\\system32`},
	{"path_traversal_encoded", "..%2F..%2Fetc%2Fpasswd"},
	{"null_byte_middle", "hello\x00world"},
	{"null_byte_start", "\x00admin"},
	{"null_byte_end", "admin\x00"},
	{"long_string", strings.Repeat("A", 10001)},
	{"unicode_rtl", "‮ evil text"},
	{"format_string", "%s%s%s%s%s%s%s"},
}

// TestFilesetIDAgainstAttacks verifies IsFilesetID rejects all attack payloads.
func TestFilesetIDAgainstAttacks(t *testing.T) {
	for _, tc := range attackPayloads {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.IsFilesetID("fileset_id", tc.value)
			if err == nil {
				t.Errorf("IsFilesetID accepted attack payload %q", tc.value[:min(len(tc.value), 50)])
			}
		})
	}
}

// TestBookIDAgainstAttacks verifies IsBookID rejects all attack payloads.
func TestBookIDAgainstAttacks(t *testing.T) {
	for _, tc := range attackPayloads {
		t.Run(tc.name, func(t *testing.T) {
			err := validate.IsBookID("book_id", tc.value)
			if err == nil {
				t.Errorf("IsBookID accepted attack payload %q", tc.value[:min(len(tc.value), 50)])
			}
		})
	}
}

// TestPathTraversalAgainstAttacks verifies NoPathTraversal catches traversal sequences.
func TestPathTraversalAgainstAttacks(t *testing.T) {
	traversalCases := []string{
		"../../../etc/passwd",
		"hello\x00world",
		"\x00admin",
		"admin\x00",
		"sub/../../secret",
		"./././../secret",
	}
	for _, v := range traversalCases {
		err := validate.NoPathTraversal("path", v)
		if err == nil {
			t.Errorf("NoPathTraversal accepted traversal payload %q", v)
		}
	}
}

// TestMaxLengthLargeInputs verifies MaxLength handles 10k+ char strings without panicking.
func TestMaxLengthLargeInputs(t *testing.T) {
	huge := strings.Repeat("x", 10000)
	err := validate.MaxLength("field", huge, 100)
	if err == nil {
		t.Error("MaxLength should reject 10k-char string with max=100")
	}

	// Verify it does not panic on even larger inputs.
	enormous := strings.Repeat("A", 100000)
	_ = validate.MaxLength("field", enormous, 200)
}

// TestNoNilPanic verifies no validator panics on empty or zero-value inputs.
func TestNoNilPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("validator panicked: %v", r)
		}
	}()

	_ = validate.NonEmptyString("f", "")
	_ = validate.MaxLength("f", "", 10)
	_ = validate.IsFilesetID("f", "")
	_ = validate.IsBookID("f", "")
	_ = validate.IsTestament("f", "")
	_ = validate.IsCountryCode("f", "")
	_ = validate.IsLanguageCode("f", "")
	_ = validate.IsChapter("f", 0)
	_ = validate.IntInRange("f", 0, 1, 10)
	_ = validate.NoPathTraversal("f", "")
	_ = validate.VerseRangeOrdered("f", 0, 0, 0, 0)
}

// TestCountryCodeValid verifies valid country codes pass.
func TestCountryCodeValid(t *testing.T) {
	valid := []string{"US", "GB", "DE", "FR", "JP"}
	for _, v := range valid {
		if err := validate.IsCountryCode("country", v); err != nil {
			t.Errorf("IsCountryCode rejected valid code %q: %v", v, err)
		}
	}
}

// TestCountryCodeInvalid verifies invalid country codes fail.
func TestCountryCodeInvalid(t *testing.T) {
	invalid := []string{"us", "USA", "1A", "' OR 1=1", "", "  "}
	for _, v := range invalid {
		if err := validate.IsCountryCode("country", v); err == nil {
			t.Errorf("IsCountryCode accepted invalid code %q", v)
		}
	}
}

// TestLanguageCodeValid verifies valid language codes pass.
func TestLanguageCodeValid(t *testing.T) {
	valid := []string{"en", "fr", "de", "eng", "ara"}
	for _, v := range valid {
		if err := validate.IsLanguageCode("lang", v); err != nil {
			t.Errorf("IsLanguageCode rejected valid code %q: %v", v, err)
		}
	}
}

// TestLanguageCodeInvalid verifies invalid language codes fail.
func TestLanguageCodeInvalid(t *testing.T) {
	invalid := []string{"EN", "e", "' OR 1=1", "", "en_US", "verylonglanguagecode"}
	for _, v := range invalid {
		if err := validate.IsLanguageCode("lang", v); err == nil {
			t.Errorf("IsLanguageCode accepted invalid code %q", v)
		}
	}
}

// min returns the smaller of a and b (Go 1.21+ has builtin; keep local for compat).
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
