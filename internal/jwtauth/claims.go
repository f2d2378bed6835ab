package jwtauth

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IntegerClaim returns claims[name] when it is a JSON number with an
// integral value that fits in an int64.
func IntegerClaim(claims map[string]any, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return i, true
		}
		// Exponent or fractional forms such as 7.0 or 7e0.
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return integralFloat(f)
	case float64:
		return integralFloat(v)
	default:
		return 0, false
	}
}

// integralFloat only accepts values below 2^53, where float64 is exact.
func integralFloat(f float64) (int64, bool) {
	const maxExact = 1 << 53
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f <= -maxExact || f >= maxExact {
		return 0, false
	}
	return int64(f), true
}

// StringClaim returns claims[name] when it is a JSON string.
func StringClaim(claims map[string]any, name string) (string, bool) {
	s, ok := claims[name].(string)
	return s, ok
}

// StringListClaim reads a list of strings from either a JSON array (non-string
// elements are skipped) or a space-delimited string. A missing or null claim
// yields an empty list. Any other JSON type is an error.
func StringListClaim(claims map[string]any, name string) ([]string, error) {
	switch v := claims[name].(type) {
	case nil:
		return []string{}, nil
	case string:
		return strings.Fields(v), nil
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s claim has unsupported type %T", name, v)
	}
}
