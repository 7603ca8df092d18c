package services

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEmptyPrice     = errors.New("empty price")
	ErrMalformedPrice = errors.New("malformed price")
)

var (
	// currency codes or short unit prefixes left once symbols are gone, e.g. "USD", "MX"
	leadingCodeRegexp  = regexp.MustCompile(`^[A-Za-z]{1,3}`)
	trailingCodeRegexp = regexp.MustCompile(`[A-Za-z]{1,3}$`)
)

// nullPriceTokens are string renderings of a missing value.
var nullPriceTokens = map[string]struct{}{
	"nan": {}, "none": {}, "null": {}, "n/a": {}, "na": {},
}

// ParsePrice converts a raw price cell to a number.
// Examples:
//
//	"$1,200.00" → 1200
//	"MX$ 850"   → 850
//	"USD 99"    → 99
//	""          → ErrEmptyPrice
//	"free"      → ErrMalformedPrice
func ParsePrice(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, ErrEmptyPrice
	case float64:
		return checkFinite(x)
	case float32:
		return checkFinite(float64(x))
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case string:
		return parsePriceString(x)
	}
	return 0, fmt.Errorf("%w: unsupported type %T", ErrMalformedPrice, v)
}

func parsePriceString(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrEmptyPrice
	}
	if _, ok := nullPriceTokens[strings.ToLower(s)]; ok {
		return 0, ErrEmptyPrice
	}

	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = leadingCodeRegexp.ReplaceAllString(s, "")
	s = trailingCodeRegexp.ReplaceAllString(s, "")
	if s == "" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, raw)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPrice, raw)
	}
	return checkFinite(f)
}

func checkFinite(f float64) (float64, error) {
	if math.IsNaN(f) {
		return 0, ErrEmptyPrice
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: infinite", ErrMalformedPrice)
	}
	return f, nil
}

// priceFailureReason names a ParsePrice error for logs and metrics.
func priceFailureReason(err error) string {
	if errors.Is(err, ErrEmptyPrice) {
		return "empty"
	}
	return "malformed"
}
