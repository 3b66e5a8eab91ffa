// Package metrics derives portfolio risk figures from a snapshot.
//
// All functions are pure. Arithmetic runs on decimals and no rounding is applied.
package metrics

import (
	"github.com/shopspring/decimal"

	"sentinel/internal/model"
)

// Summary holds the aggregate figures of one snapshot, in the base currency.
type Summary struct {
	TotalValue   decimal.Decimal `json:"totalValue"`
	CashBalance  decimal.Decimal `json:"cashBalance"`
	HoldingsPnL  decimal.Decimal `json:"holdingsPnl"`
	AggregateROI decimal.Decimal `json:"aggregateRoi"`
	// CryptoCount is the number of CRYPTO assets in the snapshot.
	CryptoCount int `json:"cryptoCount"`
	// TrackedCount is the number of CRYPTO assets with a known cost basis.
	TrackedCount int `json:"trackedCount"`
}

// Holding is a display row for one crypto position.
type Holding struct {
	Asset model.Asset     `json:"asset"`
	PnL   decimal.Decimal `json:"pnl"`
}

// Summarize computes the aggregate figures. Cash is the balance of the asset
// whose symbol equals base.
func Summarize(assets []model.Asset, base string) Summary {
	base = model.NormalizeSymbol(base)

	var (
		s        Summary
		roiSum   = decimal.Zero
		roiCount int64
	)
	s.TotalValue = decimal.Zero
	s.CashBalance = decimal.Zero
	s.HoldingsPnL = decimal.Zero
	s.AggregateROI = decimal.Zero

	for _, a := range assets {
		s.TotalValue = s.TotalValue.Add(decimal.NewFromFloat(a.Balance).Mul(decimal.NewFromFloat(a.CurrentPrice)))

		if a.Symbol == base {
			s.CashBalance = decimal.NewFromFloat(a.Balance)
		}

		if a.Type != model.AssetCrypto {
			continue
		}
		s.CryptoCount++

		// unknown cost basis is excluded, not counted as zero
		if a.HasCostBasis() {
			s.TrackedCount++
			s.HoldingsPnL = s.HoldingsPnL.Add(AssetPnL(a))
		}
		if a.ROI != 0 {
			roiSum = roiSum.Add(decimal.NewFromFloat(a.ROI))
			roiCount++
		}
	}

	if roiCount > 0 {
		s.AggregateROI = roiSum.Div(decimal.NewFromInt(roiCount))
	}
	return s
}

// AssetPnL is (current - entry) * balance for a single row.
func AssetPnL(a model.Asset) decimal.Decimal {
	current := decimal.NewFromFloat(a.CurrentPrice)
	entry := decimal.NewFromFloat(a.EntryPrice)
	return current.Sub(entry).Mul(decimal.NewFromFloat(a.Balance))
}

// Holdings returns the CRYPTO rows in snapshot order with their P&L.
func Holdings(assets []model.Asset) []Holding {
	out := make([]Holding, 0, len(assets))
	for _, a := range assets {
		if a.Type != model.AssetCrypto {
			continue
		}
		out = append(out, Holding{Asset: a, PnL: AssetPnL(a)})
	}
	return out
}
