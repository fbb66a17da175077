package cleaner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice parses a scraped price such as "₹1,299" or "$ 12.50".
// Currency symbols (Unicode category Sc), thousands separators and any
// whitespace are removed before parsing. Empty input yields nil.
//
// The returned error wraps ErrPrice for unparseable, non-finite or negative
// values.
func ParsePrice(v any) (any, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case int64:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		s := stripPriceNoise(x)
		if s == "" {
			return nil, nil
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrPrice, x)
		}
		f = p
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrPrice, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: not finite", ErrPrice)
	}
	if f < 0 {
		return nil, fmt.Errorf("%w: negative %v", ErrPrice, f)
	}
	return f, nil
}

func stripPriceNoise(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ',':
			return -1
		case unicode.Is(unicode.Sc, r):
			return -1
		case unicode.IsSpace(r), unicode.Is(unicode.Zs, r):
			return -1
		}
		return r
	}, s)
}

// ParseRating returns the rating as float64, or nil with ok=false when the
// value is present but not numeric. A nil input is returned as nil, true.
func ParseRating(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case float64:
		if math.IsNaN(x) {
			return nil, false
		}
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true
	}
	return nil, false
}
