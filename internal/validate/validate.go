// Package validate provides shared input validation for the HTTP surface.
// Catalog identifiers (fileset IDs, book codes, language codes) have narrow
// shapes, so everything user-supplied is checked before it reaches SQL or a
// delivery path.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError describes a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiError collects multiple validation errors for a single request.
type MultiError struct {
	Errors []ValidationError
}

// Add appends a validation error. If err is nil, Add is a no-op.
func (m *MultiError) Add(err error) {
	if err == nil {
		return
	}
	if ve, ok := err.(*ValidationError); ok {
		m.Errors = append(m.Errors, *ve)
	} else {
		m.Errors = append(m.Errors, ValidationError{Field: "request", Message: err.Error()})
	}
}

// HasErrors reports whether any errors have been collected.
func (m *MultiError) HasErrors() bool { return len(m.Errors) > 0 }

// Error returns a pipe-delimited summary of all errors.
func (m *MultiError) Error() string {
	parts := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, " | ")
}

// NonEmptyString validates that value is not empty or whitespace-only.
func NonEmptyString(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// MaxLength validates that value does not exceed max rune count.
func MaxLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must not exceed %d characters", max)}
	}
	return nil
}

// filesetIDRE matches catalog fileset IDs: 6–16 uppercase letters and
// digits, optional lowercase suffix segments seen in partner-assigned IDs.
var filesetIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{6,16}$`)

// IsFilesetID validates a fileset identifier.
func IsFilesetID(field, value string) error {
	if !filesetIDRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be a 6-16 character fileset id"}
	}
	return nil
}

// bookIDRE matches USFM book codes: three uppercase alphanumerics
// (GEN, EXO, 1CO, ...).
var bookIDRE = regexp.MustCompile(`^[A-Z0-9]{3}$`)

// IsBookID validates a USFM book code.
func IsBookID(field, value string) error {
	if !bookIDRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be a 3-character USFM book code (e.g. GEN, 1CO)"}
	}
	return nil
}

// countryCodeRE matches ISO 3166-1 alpha-2 codes (two uppercase letters).
var countryCodeRE = regexp.MustCompile(`^[A-Z]{2}$`)

// IsCountryCode validates that value is a valid ISO 3166-1 alpha-2 country code.
func IsCountryCode(field, value string) error {
	if !countryCodeRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be a valid ISO 3166-1 alpha-2 country code (e.g. US, GB)"}
	}
	return nil
}

// languageCodeRE matches ISO 639 language codes (2-3 lowercase letters).
var languageCodeRE = regexp.MustCompile(`^[a-z]{2,3}$`)

// IsLanguageCode validates that value is a valid ISO 639 language code.
func IsLanguageCode(field, value string) error {
	if !languageCodeRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be a valid language code (e.g. en, fra)"}
	}
	return nil
}

// testamentRE matches the size-code vocabulary used on requests.
var testamentRE = regexp.MustCompile(`^(C|NT|OT|NTOTP|OTNTP|NTPOTP)$`)

// IsTestament validates a requested testament/size code.
func IsTestament(field, value string) error {
	if value == "" {
		return nil
	}
	if !testamentRE.MatchString(strings.TrimSpace(value)) {
		return &ValidationError{Field: field, Message: "must be one of C, NT, OT or a combined code"}
	}
	return nil
}

// IntInRange validates that value is within [min, max] inclusive.
func IntInRange(field string, value, min, max int) error {
	if value < min || value > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return nil
}

// IsChapter validates a chapter number. 150 covers Psalms, the longest book.
func IsChapter(field string, value int) error {
	return IntInRange(field, value, 1, 150)
}

// VerseRangeOrdered validates that a verse range does not end before it
// starts. Zero values leave that bound open and are always valid.
func VerseRangeOrdered(field string, chapterStart, verseStart, chapterEnd, verseEnd int) error {
	if chapterStart == 0 || chapterEnd == 0 {
		return nil
	}
	if chapterEnd < chapterStart {
		return &ValidationError{Field: field, Message: "range must not end before it starts"}
	}
	if chapterEnd == chapterStart && verseEnd != 0 && verseStart != 0 && verseEnd < verseStart {
		return &ValidationError{Field: field, Message: "range must not end before it starts"}
	}
	return nil
}

// NoPathTraversal validates that value contains no path traversal sequences or null bytes.
func NoPathTraversal(field, value string) error {
	if strings.Contains(value, "..") || strings.ContainsRune(value, 0) {
		return &ValidationError{Field: field, Message: "must not contain path traversal sequences or null bytes"}
	}
	return nil
}
