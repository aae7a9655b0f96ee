// Package inference evaluates the linear fixture model a*t + b (+ deviation)
// and renders the result as the single output line inference endpoints emit.
package inference

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	_ "time/tzdata" // Etc/GMT must resolve on hosts without zoneinfo
)

// Default model parameters used when nothing else is configured.
const (
	DefaultSlope        = 2
	DefaultIntercept    = 3
	DefaultMaxDeviation = 1
	DefaultLocation     = "Etc/GMT"

	// MaxDeviationEnv names the environment variable holding the deviation bound.
	MaxDeviationEnv = "MAX_DEVIATION"
)

var ErrEmptyLocation = errors.New("timezone name cannot be empty")

// Params holds the coefficients of the linear model and the deviation bound.
type Params struct {
	Slope        float64
	Intercept    float64
	MaxDeviation int64
	Location     string
}

// DefaultParams returns the parameters the fixture has always shipped with.
func DefaultParams() Params {
	return Params{
		Slope:        DefaultSlope,
		Intercept:    DefaultIntercept,
		MaxDeviation: DefaultMaxDeviation,
		Location:     DefaultLocation,
	}
}

// LoadLocation resolves the configured timezone.
func (p Params) LoadLocation() (*time.Location, error) {
	if p.Location == "" {
		return nil, ErrEmptyLocation
	}
	loc, err := time.LoadLocation(p.Location)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", p.Location, err)
	}
	return loc, nil
}

// ErrMaxDeviationRange reports a well-formed bound that does not fit in an
// int64.
var ErrMaxDeviationRange = errors.New("max deviation out of range")

// ParseMaxDeviation parses an integer-like deviation bound with the rules of
// a base 10 int literal: surrounding whitespace, a leading sign, any Unicode
// decimal digits, and single underscores between digits ("1_000"). Empty,
// fractional or non-numeric values are rejected.
func ParseMaxDeviation(raw string) (int64, error) {
	literal, ok := decimalLiteral(raw)
	if !ok {
		return 0, fmt.Errorf("invalid literal for int() with base 10: %s", pyRepr(raw))
	}

	n, err := strconv.ParseInt(literal, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %s does not fit in a 64-bit integer", ErrMaxDeviationRange, pyRepr(raw))
	}
	if err != nil {
		return 0, fmt.Errorf("invalid literal for int() with base 10: %s", pyRepr(raw))
	}
	return n, nil
}

// decimalLiteral normalizes raw to an optional sign followed by ASCII digits.
// It reports false when raw is not a base 10 integer literal.
func decimalLiteral(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	var b strings.Builder
	if s != "" && (s[0] == '+' || s[0] == '-') {
		b.WriteByte(s[0])
		s = s[1:]
	}
	if s == "" {
		return "", false
	}

	afterDigit := false
	for _, r := range s {
		switch {
		case r == '_':
			// Only a single underscore between two digits.
			if !afterDigit {
				return "", false
			}
			afterDigit = false
		case unicode.IsDigit(r):
			b.WriteByte(byte('0' + digitValue(r)))
			afterDigit = true
		default:
			return "", false
		}
	}
	if !afterDigit {
		return "", false
	}
	return b.String(), true
}

// digitValue returns the value of a Unicode decimal digit. Decimal digits
// are encoded in contiguous runs starting at zero, so the value is the
// distance from the start of the run, modulo ten.
func digitValue(r rune) int {
	if r >= '0' && r <= '9' {
		return int(r - '0')
	}
	n := 0
	for unicode.IsDigit(r - rune(n) - 1) {
		n++
	}
	return n % 10
}

// MaxDeviationFromEnv reads MAX_DEVIATION through lookup. An unset variable
// yields the default bound; a set but malformed one is an error.
func MaxDeviationFromEnv(lookup func(string) (string, bool)) (int64, error) {
	raw, ok := lookup(MaxDeviationEnv)
	if !ok {
		return DefaultMaxDeviation, nil
	}
	return ParseMaxDeviation(raw)
}
