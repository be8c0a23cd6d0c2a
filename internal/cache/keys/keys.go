// Package keys builds cache keys for derived imagery results.
package keys

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/geom"
	"github.com/mohammed-shakir/sar-aoi-composer/internal/core/model"
)

const prefix = "sar"

// Key identifies one derived result: what kind of result, which strategy
// produced the image, the image graph itself, the region it was computed
// over and any extra parameters (vis params, scale).
//
//	sar:<kind>:<strategy>:img=<hex64>:aoi=<hex64>:p=<hex64>
func Key(kind, strategy string, image uint64, ring model.Ring, params string) string {
	return fmt.Sprintf("%s:%s:%s:img=%016x:aoi=%016x:p=%016x",
		prefix,
		sanitize(strings.TrimSpace(kind)),
		sanitize(strings.TrimSpace(strategy)),
		image,
		RingHash(ring),
		xxhash.Sum64String(collapseASCIIWhitespace(params)),
	)
}

// RingHash is stable across open and closed spellings of the same ring.
func RingHash(ring model.Ring) uint64 {
	open := geom.Open(ring)
	var b strings.Builder
	b.Grow(len(open) * 24)
	for _, p := range open {
		b.WriteString(strconv.FormatFloat(p.Lon(), 'f', 8, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lat(), 'f', 8, 64))
		b.WriteByte(';')
	}
	return xxhash.Sum64String(b.String())
}

func sanitize(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// ':' separates segments; '/' and non-ASCII become '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r <= unicode.MaxASCII && unicode.IsDigit(r))
}
