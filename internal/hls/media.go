// media.go — single-chapter media playlist assembly and verse-range
// trimming of chapter files.
package hls

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/versecast/versecast/internal/fileset"
)

// SignFunc turns a segment file name into a deliverable URL. The assembler
// never signs anything itself — callers supply the delivery signer.
type SignFunc func(fileName string) string

// BuildMedia renders a media playlist for one chapter's segments, in
// position order. EXT-X-TARGETDURATION is the ceiling of the longest
// segment duration per the HLS spec.
func BuildMedia(segments []fileset.MediaSegment, sign SignFunc) string {
	ordered := make([]fileset.MediaSegment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	longest := 0.0
	for _, s := range ordered {
		if s.Duration > longest {
			longest = s.Duration
		}
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(longest))))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	for _, s := range ordered {
		b.WriteString(fmt.Sprintf("#EXTINF:%s,\n", formatDuration(s.Duration)))
		b.WriteString(sign(s.FileName))
		b.WriteString("\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	return b.String()
}

// VerseRange restricts a chapter span to [ChapterStart:VerseStart,
// ChapterEnd:VerseEnd]. Zero values leave that bound open.
type VerseRange struct {
	ChapterStart int
	VerseStart   int
	ChapterEnd   int
	VerseEnd     int
}

// FilterChapterFiles returns the chapter files lying inside the requested
// range, in (chapter, verse) order. Files outside the union of
// [ChapterStart:VerseStart, ChapterEnd:VerseEnd] contribute neither playlist
// lines nor duration — dropping them here keeps every later duration sum
// honest.
func FilterChapterFiles(files []fileset.ChapterFile, r VerseRange) []fileset.ChapterFile {
	ordered := make([]fileset.ChapterFile, len(files))
	copy(ordered, files)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ChapterStart != ordered[j].ChapterStart {
			return ordered[i].ChapterStart < ordered[j].ChapterStart
		}
		return ordered[i].VerseStart < ordered[j].VerseStart
	})

	var out []fileset.ChapterFile
	for _, f := range ordered {
		if !inRange(f, r) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func inRange(f fileset.ChapterFile, r VerseRange) bool {
	if r.ChapterStart > 0 {
		if f.ChapterStart < r.ChapterStart {
			return false
		}
		if f.ChapterStart == r.ChapterStart && r.VerseStart > 0 && f.VerseEnd > 0 && f.VerseEnd < r.VerseStart {
			return false
		}
	}
	if r.ChapterEnd > 0 {
		if f.ChapterStart > r.ChapterEnd {
			return false
		}
		if f.ChapterStart == r.ChapterEnd && r.VerseEnd > 0 && f.VerseStart > 0 && f.VerseStart > r.VerseEnd {
			return false
		}
	}
	return true
}

// formatDuration renders an EXTINF duration with millisecond precision,
// trimming trailing zeros the way upstream playlists do.
func formatDuration(d float64) string {
	s := fmt.Sprintf("%.3f", d)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" {
		return "0"
	}
	return s
}
