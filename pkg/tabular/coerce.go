package tabular

import (
	"math"
	"strconv"
	"strings"
)

// ParseInt coerces a raw cell to a nullable integer. Empty, non-numeric,
// and fractional values coerce to nil rather than an error; identifiers
// serialized as integral floats ("1234.0") are accepted because upstream
// exports do emit them.
func ParseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f != math.Trunc(f) {
		return nil
	}
	v := int64(f)
	return &v
}

// CoerceNumber coerces a decoded JSON value to a nullable integer,
// accepting numbers and numeric strings. Anything else coerces to nil.
func CoerceNumber(v any) *int64 {
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			return nil
		}
		i := int64(val)
		return &i
	case int64:
		i := val
		return &i
	case int:
		i := int64(val)
		return &i
	case string:
		return ParseInt(val)
	default:
		return nil
	}
}
