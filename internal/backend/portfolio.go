package backend

import (
	"sort"

	"github.com/shopspring/decimal"

	"sentinel/internal/config"
	"sentinel/internal/model"
)

// PriceSource quotes the mid price of a "BASE/QUOTE" pair.
type PriceSource interface {
	Price(pair string) (decimal.Decimal, bool)
}

// demoPortfolio is served when no wallet qualifies.
func demoPortfolio(base string) []model.Asset {
	return []model.Asset{
		{Symbol: base, Name: base, Balance: 500, EntryPrice: 1, CurrentPrice: 1, ROI: 0, Type: model.AssetFiat},
		{Symbol: "BTC", Name: "Bitcoin", Balance: 0.002, EntryPrice: 60000, CurrentPrice: 65000, ROI: 8.33, Type: model.AssetCrypto},
	}
}

// buildPortfolio prices the configured wallets. Zero-balance wallets other than
// the base currency are skipped. A crypto wallet without a quote is priced at 1
// with no cost basis gain.
func buildPortfolio(wallets []config.WalletConfig, base string, prices PriceSource) []model.Asset {
	assets := make([]model.Asset, 0, len(wallets))
	for _, w := range wallets {
		symbol := model.NormalizeSymbol(w.Symbol)
		if symbol == "" {
			continue
		}
		if w.Balance == 0 && symbol != base {
			continue
		}
		name := w.Name
		if name == "" {
			name = symbol
		}

		if symbol == base {
			assets = append(assets, model.Asset{
				Symbol:       symbol,
				Name:         name,
				Balance:      w.Balance,
				EntryPrice:   1,
				CurrentPrice: 1,
				Type:         model.AssetFiat,
			})
			continue
		}

		current := 1.0
		if prices != nil {
			if p, ok := prices.Price(model.Pair(symbol, base)); ok {
				current = p.InexactFloat64()
			}
		}
		entry := w.EntryPrice
		if entry <= 0 {
			entry = current
		}

		asset := model.Asset{
			Symbol:       symbol,
			Name:         name,
			Balance:      w.Balance,
			EntryPrice:   entry,
			CurrentPrice: current,
			ROI:          roi(entry, current),
			Type:         model.AssetCrypto,
		}
		if w.ShadowTP > 0 {
			v := w.ShadowTP
			asset.ShadowTP = &v
		}
		if w.DeadZoneSL > 0 {
			v := w.DeadZoneSL
			asset.DeadZoneSL = &v
		}
		assets = append(assets, asset)
	}

	if len(assets) == 0 {
		return demoPortfolio(base)
	}
	return assets
}

// roi is the percent change from entry to current, rounded to two decimals.
func roi(entry, current float64) float64 {
	if entry <= 0 {
		return 0
	}
	c := decimal.NewFromFloat(current)
	e := decimal.NewFromFloat(entry)
	return c.Sub(e).Div(e).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
}

// recentTrades returns at most limit trades, most recent first.
func recentTrades(trades []model.Trade, limit int) []model.Trade {
	out := make([]model.Trade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
