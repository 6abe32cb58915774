// Package normalizer maps loosely typed exchange payloads onto the canonical
// models. Every function is pure: the same input always yields the same
// record and nothing is cached.
package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Raw is an untyped exchange payload.
type Raw = map[string]any

// toDecimal parses numbers delivered as JSON numbers or strings. NaN,
// infinities, values outside float64 range, empty strings and non-numeric
// values are reported as missing.
func toDecimal(v any) (decimal.Decimal, bool) {
	d, ok := parseDecimal(v)
	if !ok {
		return decimal.Decimal{}, false
	}
	if f, _ := d.Float64(); math.IsInf(f, 0) {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case decimal.Decimal:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		return parseDecimal(string(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

func toFloat(v any) (float64, bool) {
	d, ok := toDecimal(v)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// required returns 0 for a missing value.
func required(v any) float64 {
	f, _ := toFloat(v)
	return f
}

// optional returns nil for a missing value.
func optional(v any) *float64 {
	f, ok := toFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func optionalInt(v any) *int64 {
	i, ok := toInt64(v)
	if !ok {
		return nil
	}
	return &i
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case json.Number:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case int:
		return strconv.Itoa(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// toBool reads a flag, returning def when the value is absent or not boolean.
func toBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

func toMap(v any) Raw {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// first returns the first key of m holding a non-nil value.
func first(m Raw, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
