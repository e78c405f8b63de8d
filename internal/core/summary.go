package core

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Totals is the derived asset/liability/equity rollup.
type Totals struct {
	TotalAssets      float64 `json:"totalAssets"`
	TotalLiabilities float64 `json:"totalLiabilities"`
	TotalEquity      float64 `json:"totalEquity"`
}

// ManualSnapshot is the manual half of the summary payload.
type ManualSnapshot struct {
	Liabilities Liabilities      `json:"liabilities"`
	Assets      map[string]Asset `json:"assets"`
}

// Summary is the payload of the manual summary endpoint.
type Summary struct {
	Manual     ManualSnapshot `json:"manual"`
	Calculated Totals         `json:"calculated"`
}

type balancePayload struct {
	Available json.RawMessage `json:"available"`
	Balance   *struct {
		Available json.RawMessage `json:"available"`
	} `json:"balance"`
}

// AvailableBalance extracts the available amount from a cached balance entry.
// Both {available} and {balance:{available}} shapes are accepted, with the
// amount encoded as a JSON number or a numeric string. Anything else counts
// as zero.
func AvailableBalance(raw json.RawMessage) decimal.Decimal {
	var p balancePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return decimal.Zero
	}
	if d, ok := parseAmount(p.Available); ok {
		return d
	}
	if p.Balance != nil {
		if d, ok := parseAmount(p.Balance.Available); ok {
			return d
		}
	}
	return decimal.Zero
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, false
		}
		raw = []byte(s)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil || !inRange(d) {
		return decimal.Zero, false
	}
	return d, true
}

// storedAmount converts a persisted float, treating non-finite or
// out-of-range values as absent.
func storedAmount(f *float64) (decimal.Decimal, bool) {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return decimal.Zero, false
	}
	d := decimal.NewFromFloat(*f)
	return d, inRange(d)
}

// ComputeSummary derives totals from liabilities, the manual asset and the
// cached balance entries of every account. Liabilities are completed to the
// full slug set first.
func ComputeSummary(liabilities Liabilities, asset Asset, balances []json.RawMessage) Summary {
	liabilities = liabilities.Complete()

	totalLiabilities := decimal.Zero
	for _, l := range liabilities {
		if d, ok := storedAmount(l.OutstandingBalanceUSD); ok {
			totalLiabilities = totalLiabilities.Add(d)
		}
	}

	totalAssets := decimal.Zero
	for _, b := range balances {
		totalAssets = totalAssets.Add(AvailableBalance(b))
	}
	if d, ok := storedAmount(asset.ValueUSD); ok {
		totalAssets = totalAssets.Add(d)
	}

	if asset.Slug == "" {
		asset.Slug = AssetSlug
	}
	return Summary{
		Manual: ManualSnapshot{
			Liabilities: liabilities,
			Assets:      map[string]Asset{AssetSlug: asset},
		},
		Calculated: Totals{
			TotalAssets:      totalAssets.InexactFloat64(),
			TotalLiabilities: totalLiabilities.InexactFloat64(),
			TotalEquity:      totalAssets.Sub(totalLiabilities).InexactFloat64(),
		},
	}
}
