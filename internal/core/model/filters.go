package model

import (
	"sort"
	"strings"
)

// Suffixes recognized on boundary filter keys.
const (
	suffixMin = "_MIN"
	suffixMax = "_MAX"
)

// FiltersFromParams converts a flat key/value filter map, as accepted at the
// CLI and HTTP boundary, into a typed FilterSet. Keys suffixed _MIN/_MAX on a
// numeric field become range bounds, SALESDTTM_MIN/_MAX become the
// client-side date range, and everything else is an exact match.
func FiltersFromParams(params map[string]any) FilterSet {
	var fs FilterSet
	if len(params) == 0 {
		return fs
	}

	ranges := map[string]*RangeMatch{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic predicate order

	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}

		if k == FieldSaleDate+suffixMin {
			if s, ok := v.(string); ok && s != "" {
				fs.SaleDate.Min = s
			}
			continue
		}
		if k == FieldSaleDate+suffixMax {
			if s, ok := v.(string); ok && s != "" {
				fs.SaleDate.Max = s
			}
			continue
		}

		if field, bound, ok := splitRangeKey(k); ok {
			if f, numeric := asFloat(v); numeric {
				r := ranges[field]
				if r == nil {
					r = &RangeMatch{Field: field}
					ranges[field] = r
				}
				val := f
				if bound == suffixMin {
					r.Min = &val
				} else {
					r.Max = &val
				}
				continue
			}
		}

		fs.Exact = append(fs.Exact, ExactMatch{Field: k, Value: v})
	}

	fields := make([]string, 0, len(ranges))
	for f := range ranges {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fs.Ranges = append(fs.Ranges, *ranges[f])
	}
	return fs
}

func splitRangeKey(k string) (field, bound string, ok bool) {
	switch {
	case strings.HasSuffix(k, suffixMin):
		return strings.TrimSuffix(k, suffixMin), suffixMin, len(k) > len(suffixMin)
	case strings.HasSuffix(k, suffixMax):
		return strings.TrimSuffix(k, suffixMax), suffixMax, len(k) > len(suffixMax)
	default:
		return "", "", false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
