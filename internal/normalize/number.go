// Package normalize maps heterogeneous open-data records onto canonical
// budget rows: locale-aware number parsing, alias-table field resolution,
// and flat normalizers for revenue and environmental-tagging rows.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseNumberFR parses a locale-formatted numeric value. French providers
// mix thin/non-breaking spaces as group separators, commas as decimal marks,
// and occasionally dots as thousands separators ("12.345,00").
// Returns false when the value is absent or not a finite number.
func ParseNumberFR(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumberString(n)
	default:
		return 0, false
	}
}

func parseNumberString(s string) (float64, bool) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			// covers U+00A0 and U+202F group separators
			continue
		}
		if r == ',' {
			r = '.'
		}
		b.WriteRune(r)
	}
	t := b.String()
	if t == "" {
		return 0, false
	}

	// Keep only the last dot: earlier ones are thousands separators.
	if first := strings.IndexByte(t, '.'); first >= 0 {
		last := strings.LastIndexByte(t, '.')
		if first != last {
			t = strings.ReplaceAll(t[:last], ".", "") + t[last:]
		}
	}

	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
