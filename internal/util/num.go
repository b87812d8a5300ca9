package util

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrMissing    = errors.New("value missing")
	ErrNotNumeric = errors.New("value is not numeric")
	ErrNotInteger = errors.New("value is not an integer")
)

// ParseNumber coerces a raw cell value into a float64. String values may use
// a comma as the decimal separator ("1,50" parses to exactly 1.50).
func ParseNumber(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, ErrMissing
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, ErrMissing
		}
		s = strings.ReplaceAll(s, ",", ".")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, ErrNotNumeric
		}
		return parsed, nil
	default:
		return 0, ErrNotNumeric
	}
}

// ParseQuantity coerces a raw cell value into a non-fractional integer.
// Fractional values are rejected, not truncated.
func ParseQuantity(value any) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, ErrMissing
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, ErrNotInteger
		}
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, ErrMissing
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return 0, ErrNotInteger
		}
		return parsed, nil
	default:
		return 0, ErrNotInteger
	}
}

// IsNumeric reports whether a cell value would coerce under ParseNumber.
// Used by sheet analysis, where malformed cells are counted, not rejected.
func IsNumeric(value any) bool {
	_, err := ParseNumber(value)
	return err == nil
}

// IsDigitString reports whether a cell value renders as a bare digit string.
// Decimals are deliberately excluded: "3.0" is not a valid quantity cell even
// though ParseQuantity would accept the float 3.0.
func IsDigitString(value any) bool {
	var s string
	switch v := value.(type) {
	case nil:
		return false
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case string:
		s = strings.TrimSpace(v)
	default:
		return false
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CellString renders a raw cell value the way it should appear in messages
// and previews. Integral floats drop the trailing ".0" that JSON decoding
// introduces.
func CellString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
