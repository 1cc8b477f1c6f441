package analytics

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMonto extracts a numeric amount from a loosely typed monto_operacion
// value: every rune that is not a decimal digit or a dot is stripped before
// parsing, and anything unparseable yields 0.
//
// The stripping is a lossy heuristic. "$1,234.56" becomes 1234.56, but the
// European-style "1.234,56" becomes 1.23456. Downstream totals depend on this
// exact behavior, so it must not be corrected here.
func ParseMonto(value interface{}) float64 {
	if value == nil {
		return 0
	}

	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case float64:
		raw = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		raw = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		raw = strconv.Itoa(v)
	case int64:
		raw = strconv.FormatInt(v, 10)
	default:
		raw = fmt.Sprint(v)
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	n, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return n
}
