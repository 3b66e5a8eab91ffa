package metrics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/model"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestSummarize_HealthyTick(t *testing.T) {
	assets := []model.Asset{
		{Symbol: "EUR", Balance: 500, CurrentPrice: 1, EntryPrice: 1, Type: model.AssetFiat},
		{Symbol: "BTC", Balance: 0.002, EntryPrice: 60000, CurrentPrice: 65000, Type: model.AssetCrypto},
	}

	s := Summarize(assets, "eur")
	assert.True(t, s.TotalValue.Equal(dec(t, "630")), s.TotalValue.String())
	assert.True(t, s.CashBalance.Equal(dec(t, "500")), s.CashBalance.String())
	assert.True(t, s.HoldingsPnL.Equal(dec(t, "10")), s.HoldingsPnL.String())
	assert.True(t, s.AggregateROI.IsZero())
	assert.Equal(t, 1, s.CryptoCount)
	assert.Equal(t, 1, s.TrackedCount)
}

func TestSummarize_ROIEmptySet(t *testing.T) {
	tests := []struct {
		name   string
		assets []model.Asset
	}{
		{"no assets", nil},
		{"fiat only", []model.Asset{{Symbol: "EUR", Balance: 10, CurrentPrice: 1, ROI: 5, Type: model.AssetFiat}}},
		{"zero roi crypto", []model.Asset{{Symbol: "ETH", Balance: 1, CurrentPrice: 3000, Type: model.AssetCrypto}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Summarize(tt.assets, "EUR").AggregateROI.IsZero())
		})
	}
}

func TestSummarize_ROIMean(t *testing.T) {
	assets := []model.Asset{
		{Symbol: "BTC", ROI: 10, Type: model.AssetCrypto},
		{Symbol: "ETH", ROI: -4, Type: model.AssetCrypto},
		{Symbol: "SOL", ROI: 0, Type: model.AssetCrypto},
	}
	assert.True(t, Summarize(assets, "EUR").AggregateROI.Equal(dec(t, "3")))
}

func TestSummarize_PnLExclusion(t *testing.T) {
	assets := []model.Asset{
		{Symbol: "BTC", Balance: 1, EntryPrice: 100, CurrentPrice: 110, Type: model.AssetCrypto},
		{Symbol: "LEGACY", Balance: 1000, EntryPrice: 0, CurrentPrice: 999, Type: model.AssetCrypto},
	}

	s := Summarize(assets, "EUR")
	assert.True(t, s.HoldingsPnL.Equal(dec(t, "10")), s.HoldingsPnL.String())
	assert.Equal(t, 2, s.CryptoCount)
	assert.Equal(t, 1, s.TrackedCount)
	// legacy value still counts towards the total
	assert.True(t, s.TotalValue.Equal(dec(t, "999110")), s.TotalValue.String())
}

func TestSummarize_NoCash(t *testing.T) {
	s := Summarize([]model.Asset{{Symbol: "BTC", Balance: 1, CurrentPrice: 2, Type: model.AssetCrypto}}, "EUR")
	assert.True(t, s.CashBalance.IsZero())
}

func TestAssetPnL_Sign(t *testing.T) {
	loss := model.Asset{Balance: 2, EntryPrice: 50, CurrentPrice: 40, Type: model.AssetCrypto}
	assert.True(t, AssetPnL(loss).Equal(dec(t, "-20")))
}

func TestHoldings(t *testing.T) {
	assets := []model.Asset{
		{Symbol: "EUR", Type: model.AssetFiat},
		{Symbol: "ETH", Balance: 1, EntryPrice: 3000, CurrentPrice: 3100, Type: model.AssetCrypto},
		{Symbol: "BTC", Balance: 1, EntryPrice: 10, CurrentPrice: 5, Type: model.AssetCrypto},
	}

	rows := Holdings(assets)
	require.Len(t, rows, 2)
	assert.Equal(t, "ETH", rows[0].Asset.Symbol)
	assert.True(t, rows[0].PnL.Equal(dec(t, "100")))
	assert.True(t, rows[1].PnL.Equal(dec(t, "-5")))
}
