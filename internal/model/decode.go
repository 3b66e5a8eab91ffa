package model

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingField is returned when a required field is absent from a payload.
var ErrMissingField = errors.New("required field missing")

// DecodeAssets decodes a portfolio payload. Entries without a symbol are dropped,
// an unknown type falls back to CRYPTO. Numeric fields are passed through as-is.
func DecodeAssets(raw []byte) ([]Asset, error) {
	var wire []Asset
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(err, "decode assets")
	}

	assets := make([]Asset, 0, len(wire))
	for _, a := range wire {
		a.Symbol = NormalizeSymbol(a.Symbol)
		if a.Symbol == "" {
			continue
		}
		a.Type = parseAssetType(a.Type)
		assets = append(assets, a)
	}
	return assets, nil
}

// DecodeTrades decodes a trade history payload, keeping at most limit records
// in the order received. A limit <= 0 keeps everything.
func DecodeTrades(raw []byte, limit int) ([]Trade, error) {
	var wire []Trade
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(err, "decode trades")
	}

	trades := make([]Trade, 0, len(wire))
	for _, t := range wire {
		if limit > 0 && len(trades) == limit {
			break
		}
		t.ID = strings.TrimSpace(t.ID)
		t.Symbol = NormalizeSymbol(t.Symbol)
		side, ok := parseSide(t.Side)
		if t.ID == "" || !ok {
			continue
		}
		t.Side = side
		t.Status = parseTradeStatus(t.Status)
		trades = append(trades, t)
	}
	return trades, nil
}

// DecodeSignals decodes an AI signal payload. Signals without a symbol or with an
// unknown action are dropped; confidence is clamped to [0, 100].
func DecodeSignals(raw []byte) ([]Signal, error) {
	var wire []Signal
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, errors.Wrap(err, "decode signals")
	}

	signals := make([]Signal, 0, len(wire))
	for _, s := range wire {
		s.Symbol = NormalizeSymbol(s.Symbol)
		action, ok := parseSide(s.Action)
		if s.Symbol == "" || !ok {
			continue
		}
		s.Action = action
		s.Confidence = clamp(s.Confidence, 0, 100)
		signals = append(signals, s)
	}
	return signals, nil
}

// DecodeStatus decodes the status resource. The stop flag must be present.
func DecodeStatus(raw []byte) (Status, error) {
	var wire struct {
		IsEmergencyStopped *bool `json:"isEmergencyStopped"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Status{}, errors.Wrap(err, "decode status")
	}
	if wire.IsEmergencyStopped == nil {
		return Status{}, errors.Wrap(ErrMissingField, "decode status: isEmergencyStopped")
	}
	return Status{IsEmergencyStopped: *wire.IsEmergencyStopped}, nil
}

// DecodeStopResponse decodes the emergency-stop toggle answer. The resulting flag
// must be present, a missing success field reads as false.
func DecodeStopResponse(raw []byte) (StopResponse, error) {
	var wire struct {
		Success            bool  `json:"success"`
		IsEmergencyStopped *bool `json:"isEmergencyStopped"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return StopResponse{}, errors.Wrap(err, "decode stop response")
	}
	if wire.IsEmergencyStopped == nil {
		return StopResponse{}, errors.Wrap(ErrMissingField, "decode stop response: isEmergencyStopped")
	}
	return StopResponse{Success: wire.Success, IsEmergencyStopped: *wire.IsEmergencyStopped}, nil
}

func parseAssetType(t AssetType) AssetType {
	if AssetType(strings.ToUpper(strings.TrimSpace(string(t)))) == AssetFiat {
		return AssetFiat
	}
	return AssetCrypto
}

func parseSide(s TradeSide) (TradeSide, bool) {
	switch TradeSide(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	default:
		return "", false
	}
}

func parseTradeStatus(s TradeStatus) TradeStatus {
	switch TradeStatus(strings.ToUpper(strings.TrimSpace(string(s)))) {
	case TradeCompleted:
		return TradeCompleted
	case TradeFailed:
		return TradeFailed
	default:
		return TradePending
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
