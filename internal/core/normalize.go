// Package core holds the manual-data domain model and the normalization rules
// applied to every user-entered value before it is persisted.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// MaxStringLength bounds free-text manual fields such as tenant names.
const MaxStringLength = 120

// MaxSafeInteger is the largest magnitude accepted by any numeric field.
const MaxSafeInteger int64 = 1<<53 - 1

// MaxTermMonths is the largest loan term the term_months columns can hold.
const MaxTermMonths int64 = math.MaxInt32

// Decimal exponents outside this window are rejected before any rounding so
// inputs like 1e100000000 never reach big-integer rescaling.
const (
	minExponent = -32
	maxExponent = 20
)

var maxMagnitude = decimal.NewFromInt(MaxSafeInteger)

// inRange reports whether d is small enough to survive float64 conversion
// and arithmetic without overflow.
func inRange(d decimal.Decimal) bool {
	if e := d.Exponent(); e < minExponent || e > maxExponent {
		return false
	}
	return d.Abs().LessThanOrEqual(maxMagnitude)
}

// PercentRule describes the accepted range and precision of a percentage.
type PercentRule struct {
	Max       int64
	Inclusive bool
	Places    int32
}

// Percentages are bounded differently depending on where they are stored.
// Per-account domain fields accept 100 and keep two decimals; named
// liabilities stop below 100 and keep four.
var (
	FieldPercent     = PercentRule{Max: 100, Inclusive: true, Places: 2}
	LiabilityPercent = PercentRule{Max: 100, Inclusive: false, Places: 4}
)

// toDecimal coerces a raw JSON or Go value into a decimal. A nil result with a
// nil error means the input was null (or an empty string).
func toDecimal(field string, raw any) (*decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		d = v
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		d, err = decimal.NewFromString(s)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(field, "must be a finite number")
		}
		d = decimal.NewFromFloat(v)
	case float32:
		return toDecimal(field, float64(v))
	case int:
		d = decimal.NewFromInt(int64(v))
	case int64:
		d = decimal.NewFromInt(v)
	case int32:
		d = decimal.NewFromInt(int64(v))
	default:
		return nil, invalid(field, "must be a number")
	}
	if err != nil {
		return nil, invalid(field, "must be a finite number")
	}
	if !inRange(d) {
		return nil, invalid(field, "is out of range")
	}
	return &d, nil
}

// NormalizeCurrency returns the value rounded to cents, or nil for null input.
func NormalizeCurrency(field string, raw any) (*float64, error) {
	d, err := toDecimal(field, raw)
	if err != nil || d == nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, invalid(field, "must be a non-negative number")
	}
	f := d.Round(2).InexactFloat64()
	return &f, nil
}

// NormalizePercent applies rule to raw, returning nil for null input.
func NormalizePercent(field string, raw any, rule PercentRule) (*float64, error) {
	d, err := toDecimal(field, raw)
	if err != nil || d == nil {
		return nil, err
	}
	bound := decimal.NewFromInt(rule.Max)
	if d.IsNegative() {
		return nil, invalid(field, "must be a non-negative percentage")
	}
	if rule.Inclusive && d.GreaterThan(bound) {
		return nil, invalid(field, fmt.Sprintf("must be between 0 and %d", rule.Max))
	}
	if !rule.Inclusive && d.GreaterThanOrEqual(bound) {
		return nil, invalid(field, fmt.Sprintf("must be at least 0 and below %d", rule.Max))
	}
	f := d.Round(rule.Places).InexactFloat64()
	return &f, nil
}

// NormalizeInt accepts whole numbers within [lo, hi]. Fractional input is
// rejected rather than rounded.
func NormalizeInt(field string, raw any, lo, hi int64) (*int64, error) {
	d, err := toDecimal(field, raw)
	if err != nil || d == nil {
		return nil, err
	}
	if !d.IsInteger() {
		return nil, invalid(field, "must be an integer")
	}
	if d.LessThan(decimal.NewFromInt(lo)) || d.GreaterThan(decimal.NewFromInt(hi)) {
		return nil, invalid(field, fmt.Sprintf("must be an integer between %d and %d", lo, hi))
	}
	n := d.IntPart()
	return &n, nil
}

// NormalizeString trims raw and enforces 1..MaxStringLength characters.
func NormalizeString(field string, raw any) (*string, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64, int, int64:
		s = fmt.Sprint(v)
	default:
		return nil, invalid(field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalid(field, "must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxStringLength {
		return nil, invalid(field, fmt.Sprintf("must be at most %d characters", MaxStringLength))
	}
	return &s, nil
}

// RoundCurrency validates a rent-roll style amount given as a float and
// rounds it to cents.
func RoundCurrency(field string, amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, invalid(field, "must be a finite number")
	}
	v, err := NormalizeCurrency(field, amount)
	if err != nil {
		return 0, err
	}
	return *v, nil
}
