package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// IntFromAny converts a decoded JSON number (or a numeric string) to a
// non-negative int. Fractions are truncated. The second result is false for
// missing, non-numeric, non-finite, negative and out-of-range values.
func IntFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n >= float64(math.MaxInt) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, n >= 0
	case int64:
		if n < 0 || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return IntFromAny(i)
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return IntFromAny(f)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil || i < 0 {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
