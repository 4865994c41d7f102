package pagecache

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/catastropr/gridsearch/internal/arcgis"
)

// Key builds the cache key for one page of one descriptor. A sanitized
// prefix of the WHERE text keeps keys greppable; the xxhash fingerprint over
// the full descriptor disambiguates truncated or geometry-only queries.
func Key(d arcgis.Descriptor, offset, count int) string {
	whereSafe := sanitizeForKey(d.Where)
	const maxWhereLen = 96
	if len(whereSafe) > maxWhereLen {
		whereSafe = whereSafe[:maxWhereLen]
	}

	var h xxhash.Digest
	_, _ = h.WriteString(d.Geometry)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(d.Where)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(d.SpatialRel)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(d.OutSR)

	return fmt.Sprintf("page:%s:o=%d:c=%d:f=%016x", whereSafe, offset, count, h.Sum64())
}

func sanitizeForKey(s string) string {
	if s == "" {
		return "-"
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '=' || r == '.':
			out = r
		default:
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

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
