// merge.go — merging multiple upstream chapter playlists into one
// continuous media playlist.
//
// Used by the playlist-translation flow: a playlist item spans several
// chapters, each of which the upstream provider serves as its own media
// playlist. The merged output plays them back to back with a discontinuity
// marker at each chapter boundary, and carries a single set of global tags.
package hls

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// MergeResult is the output of Merge: the merged playlist body plus, when
// URLs were rewritten for offline packaging, the manifest mapping each local
// file name back to its original signed URL so the caller can fetch the
// bytes separately.
type MergeResult struct {
	Content string
	// SignedFiles maps local file name -> original signed URL. Empty when
	// rewriteLocal was false.
	SignedFiles map[string]string
	// TotalDuration is the summed EXTINF duration of every kept segment.
	TotalDuration float64
}

// Global tags that may appear once per playlist. Per-chapter instances are
// stripped during merge; the merged header/footer re-emits a single one.
func isGlobalTag(line string) bool {
	for _, t := range []string{
		"#EXTM3U",
		"#EXT-X-VERSION",
		"#EXT-X-TARGETDURATION",
		"#EXT-X-MEDIA-SEQUENCE",
		"#EXT-X-ENDLIST",
		"#EXT-X-PLAYLIST-TYPE",
	} {
		if line == t || strings.HasPrefix(line, t+":") {
			return true
		}
	}
	return false
}

// Merge concatenates chapter media playlists in order, separated by
// #EXT-X-DISCONTINUITY, stripping per-chapter global tags and recomputing
// EXT-X-TARGETDURATION as the ceiling of the total EXTINF sum.
//
// When rewriteLocal is true every URI line is replaced by a local file name
// (for zip packaging) and the original signed URL is recorded in
// SignedFiles; duplicate URLs map to one local name. When false, signed
// URLs pass through untouched for direct streaming.
//
// Unknown directives are copied through verbatim — assembly never fails on
// a directive it does not understand.
func Merge(playlists []string, rewriteLocal bool) MergeResult {
	res := MergeResult{SignedFiles: map[string]string{}}
	var body strings.Builder
	// URL -> local name, so a segment shared by adjacent chapters is
	// fetched once and its duration counted once.
	localNames := map[string]string{}
	seenSegments := map[string]bool{}
	wroteChapter := false

	for _, pl := range playlists {
		lines := splitLines(pl)
		var chapter []string
		var chapterDur float64
		pendingDur := 0.0
		pendingInf := ""

		for _, line := range lines {
			switch {
			case line == "":
				continue
			case isGlobalTag(line):
				continue
			case strings.HasPrefix(line, "#EXTINF:"):
				pendingDur = parseExtInf(line)
				pendingInf = line
			case strings.HasPrefix(line, "#"):
				// Unknown or segment-scoped directive — pass through.
				chapter = append(chapter, line)
			default:
				// URI line. A segment already emitted for a previous
				// chapter is skipped entirely so durations never double
				// count shared boundary segments.
				if seenSegments[line] {
					pendingDur, pendingInf = 0, ""
					continue
				}
				seenSegments[line] = true
				chapterDur += pendingDur
				if pendingInf != "" {
					chapter = append(chapter, pendingInf)
				}
				if rewriteLocal {
					name := localName(line, localNames)
					res.SignedFiles[name] = line
					chapter = append(chapter, name)
				} else {
					chapter = append(chapter, line)
				}
				pendingDur, pendingInf = 0, ""
			}
		}

		if len(chapter) == 0 {
			continue
		}
		if wroteChapter {
			body.WriteString("#EXT-X-DISCONTINUITY\n")
		}
		for _, line := range chapter {
			body.WriteString(line)
			body.WriteString("\n")
		}
		res.TotalDuration += chapterDur
		wroteChapter = true
	}

	var out strings.Builder
	out.WriteString("#EXTM3U\n")
	out.WriteString("#EXT-X-VERSION:3\n")
	out.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(res.TotalDuration))))
	out.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	out.WriteString(body.String())
	out.WriteString("#EXT-X-ENDLIST\n")

	res.Content = out.String()
	if !rewriteLocal {
		res.SignedFiles = nil
	}
	return res
}

// parseExtInf extracts the duration from an "#EXTINF:<seconds>,<title>"
// line. Malformed lines contribute zero duration but are still emitted.
func parseExtInf(line string) float64 {
	v := strings.TrimPrefix(line, "#EXTINF:")
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// localName derives a stable local file name for a signed URL, reusing the
// name on repeat URLs and suffixing on basename collisions between
// different URLs.
func localName(rawURL string, assigned map[string]string) string {
	if name, ok := assigned[rawURL]; ok {
		return name
	}
	base := path.Base(urlPath(rawURL))
	if base == "." || base == "/" || base == "" {
		base = fmt.Sprintf("segment%d.ts", len(assigned))
	}
	name := base
	for i := 1; nameTaken(assigned, name); i++ {
		ext := path.Ext(base)
		name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(base, ext), i, ext)
	}
	assigned[rawURL] = name
	return name
}

func nameTaken(assigned map[string]string, name string) bool {
	for _, n := range assigned {
		if n == name {
			return true
		}
	}
	return false
}

// urlPath returns the path component of a URL, or the input itself when it
// is already a bare path.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

func splitLines(s string) []string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return lines
}
