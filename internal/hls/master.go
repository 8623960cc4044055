// Package hls builds and merges HTTP Live Streaming (.m3u8) playlists for
// Bible audio/video filesets.
//
// Three jobs live here:
//
//   - master playlists: one #EXT-X-STREAM-INF entry per bandwidth variant,
//     with codec/resolution metadata
//   - media playlists: ordered #EXTINF segment lists for a single chapter,
//     optionally trimmed to a verse range
//   - merging: concatenating several upstream chapter playlists into one
//     continuous playlist with discontinuity markers and a recomputed
//     target duration
//
// The parser side is deliberately permissive: an unrecognized directive in
// an upstream playlist is passed through unchanged rather than aborting
// assembly. A slightly odd playlist is always preferable to killing a
// playback session that is already running.
package hls

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/versecast/versecast/internal/fileset"
)

// MasterParams carries the request context a master playlist needs so each
// variant URL can be re-resolved by the client through the same API surface.
type MasterParams struct {
	// BaseURL is the absolute URL of the media-playlist endpoint for this
	// fileset/book/chapter, without a file name.
	BaseURL string
	// Key, Version, AssetID are propagated as query parameters on every
	// variant URL so the follow-up request carries the caller's identity.
	Key     string
	Version string
	AssetID string
}

// BuildMaster renders a master playlist with one stream entry per bandwidth
// variant. Variants are emitted in ascending bandwidth order regardless of
// input order. Video variants carry RESOLUTION; audio-only variants have the
// video codec stripped from CODECS.
func BuildMaster(variants []fileset.BandwidthVariant, p MasterParams) string {
	ordered := make([]fileset.BandwidthVariant, len(variants))
	copy(ordered, variants)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Bandwidth != ordered[j].Bandwidth {
			return ordered[i].Bandwidth < ordered[j].Bandwidth
		}
		return ordered[i].FileName < ordered[j].FileName
	})

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	for _, v := range ordered {
		b.WriteString("#EXT-X-STREAM-INF:BANDWIDTH=")
		b.WriteString(fmt.Sprintf("%d", v.Bandwidth))
		if v.IsVideo() {
			b.WriteString(fmt.Sprintf(",RESOLUTION=%dx%d", v.ResolutionWidth, v.ResolutionHeight))
		}
		if codecs := codecAttr(v); codecs != "" {
			b.WriteString(`,CODECS="` + codecs + `"`)
		}
		b.WriteString("\n")
		b.WriteString(variantURL(v, p))
		b.WriteString("\n")
	}
	return b.String()
}

// codecAttr returns the CODECS attribute value for a variant. Audio-only
// variants must not advertise a video codec even when the ingest pipeline
// recorded a combined codec string.
func codecAttr(v fileset.BandwidthVariant) string {
	if v.Codec == "" {
		return ""
	}
	if v.IsVideo() {
		return v.Codec
	}
	var kept []string
	for _, c := range strings.Split(v.Codec, ",") {
		c = strings.TrimSpace(c)
		if c == "" || isVideoCodec(c) {
			continue
		}
		kept = append(kept, c)
	}
	return strings.Join(kept, ",")
}

// isVideoCodec reports whether an RFC 6381 codec identifier names a video
// codec. Matches the prefixes seen in ingested variant rows.
func isVideoCodec(c string) bool {
	for _, prefix := range []string{"avc1", "avc3", "hvc1", "hev1", "vp09", "av01"} {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// variantURL builds the per-variant media playlist URL carrying the caller's
// key/version/asset_id so the client's next request is self-contained.
func variantURL(v fileset.BandwidthVariant, p MasterParams) string {
	q := url.Values{}
	if p.Key != "" {
		q.Set("key", p.Key)
	}
	if p.Version != "" {
		q.Set("v", p.Version)
	}
	if p.AssetID != "" {
		q.Set("asset_id", p.AssetID)
	}
	u := strings.TrimRight(p.BaseURL, "/") + "/" + v.FileName
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}
