package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNormalizeCurrency(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want *float64
		ok   bool
	}{
		{"null", nil, nil, true},
		{"empty string", "  ", nil, true},
		{"integer", json.Number("1200"), ptr(1200.0), true},
		{"rounds half up", json.Number("1234.567"), ptr(1234.57), true},
		{"rounds down", 10.004, ptr(10.0), true},
		{"numeric string", "99.999", ptr(100.0), true},
		{"zero", 0.0, ptr(0.0), true},
		{"negative", json.Number("-5"), nil, false},
		{"nan", math.NaN(), nil, false},
		{"infinity", math.Inf(1), nil, false},
		{"garbage", "abc", nil, false},
		{"bool", true, nil, false},
		{"overflows float64", json.Number("1e400"), nil, false},
		{"huge exponent", json.Number("1e100000000"), nil, false},
		{"huge negative exponent", json.Number("1e-100000000"), nil, false},
		{"above safe magnitude", "1e16", nil, false},
		{"largest safe value", json.Number("9007199254740991"), ptr(9007199254740991.0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeCurrency("amount", tc.in)
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %v", deref(got))
				}
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !equalPtr(got, tc.want) {
				t.Fatalf("got %v, want %v", deref(got), deref(tc.want))
			}
		})
	}
}

// The two percent rules differ at exactly 100 and in precision.
func TestNormalizePercent_Rules(t *testing.T) {
	cases := []struct {
		name string
		rule PercentRule
		in   any
		want float64
		ok   bool
	}{
		{"field accepts 100", FieldPercent, json.Number("100"), 100, true},
		{"field rejects above 100", FieldPercent, json.Number("100.01"), 0, false},
		{"field rounds to 2 places", FieldPercent, json.Number("6.12345"), 6.12, true},
		{"liability rejects 100", LiabilityPercent, json.Number("100"), 0, false},
		{"liability accepts just below 100", LiabilityPercent, json.Number("99.9999"), 99.9999, true},
		{"liability rounds to 4 places", LiabilityPercent, json.Number("6.123456"), 6.1235, true},
		{"negative rejected", FieldPercent, json.Number("-0.5"), 0, false},
		{"zero accepted", LiabilityPercent, 0.0, 0, true},
		{"huge exponent rejected", FieldPercent, json.Number("1e100000000"), 0, false},
		{"tiny exponent rejected", LiabilityPercent, json.Number("1e-100000000"), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePercent("rate", tc.in, tc.rule)
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %v", deref(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || *got != tc.want {
				t.Fatalf("got %v, want %v", deref(got), tc.want)
			}
		})
	}
}

func TestNormalizeInt(t *testing.T) {
	cases := []struct {
		name   string
		in     any
		lo, hi int64
		want   int64
		ok     bool
	}{
		{"in range", json.Number("360"), 1, MaxSafeInteger, 360, true},
		{"whole float", 12.0, 1, MaxSafeInteger, 12, true},
		{"fraction rejected", json.Number("12.5"), 1, MaxSafeInteger, 0, false},
		{"below min", json.Number("0"), 1, MaxSafeInteger, 0, false},
		{"zero allowed with zero min", json.Number("0"), 0, MaxSafeInteger, 0, true},
		{"payment day upper bound", json.Number("28"), 1, 28, 28, true},
		{"payment day too large", json.Number("29"), 1, 28, 0, false},
		{"string integer", "15", 1, 28, 15, true},
		{"term fits column", json.Number("2147483647"), 1, MaxTermMonths, 2147483647, true},
		{"term exceeds column", json.Number("2147483648"), 1, MaxTermMonths, 0, false},
		{"huge exponent", json.Number("1e100000000"), 1, MaxTermMonths, 0, false},
		{"overflows float64", json.Number("1e400"), 0, MaxSafeInteger, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeInt("n", tc.in, tc.lo, tc.hi)
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error, got %d", *got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got == nil || *got != tc.want {
				t.Fatalf("got %v, want %d", got, tc.want)
			}
		})
	}
}

func TestNormalizeString(t *testing.T) {
	got, err := NormalizeString("tenant_name", "  Jane Doe  ")
	if err != nil || got == nil || *got != "Jane Doe" {
		t.Fatalf("expected trimmed value, got %v, %v", got, err)
	}
	if _, err := NormalizeString("tenant_name", "   "); err == nil {
		t.Fatal("expected error for blank string")
	}
	if _, err := NormalizeString("tenant_name", strings.Repeat("x", MaxStringLength+1)); err == nil {
		t.Fatal("expected error for long string")
	}
	if _, err := NormalizeString("tenant_name", strings.Repeat("é", MaxStringLength)); err != nil {
		t.Fatalf("expected %d runes to be accepted: %v", MaxStringLength, err)
	}
	if v, err := NormalizeString("tenant_name", nil); err != nil || v != nil {
		t.Fatalf("expected nil passthrough, got %v, %v", v, err)
	}
}

func TestRoundCurrency(t *testing.T) {
	if v, err := RoundCurrency("rent_roll", 1234.567); err != nil || v != 1234.57 {
		t.Fatalf("got %v, %v", v, err)
	}
	for _, bad := range []float64{-5, math.NaN(), math.Inf(-1)} {
		_, err := RoundCurrency("rent_roll", bad)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%v: expected validation error, got %v", bad, err)
		}
		if ve.Field != "rent_roll" {
			t.Fatalf("unexpected field %q", ve.Field)
		}
	}
}

func ptr(f float64) *float64 { return &f }

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func equalPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
