package model

import (
	"strings"
	"time"
)

// AssetType separates cash-like holdings from crypto positions.
type AssetType string

const (
	AssetCrypto AssetType = "CRYPTO"
	AssetFiat   AssetType = "FIAT"
)

// Asset represents a single balance held by the account at one poll tick.
type Asset struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Balance      float64   `json:"balance"`
	EntryPrice   float64   `json:"entryPrice"`
	CurrentPrice float64   `json:"currentPrice"`
	ROI          float64   `json:"roi"`
	Type         AssetType `json:"type"`
	ShadowTP     *float64  `json:"shadowTP,omitempty"`
	DeadZoneSL   *float64  `json:"deadZoneSL,omitempty"`
}

// HasCostBasis reports whether the entry price is known.
func (a Asset) HasCostBasis() bool {
	return a.EntryPrice > 0
}

// TradeSide is the direction of an execution or a recommendation.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TradeStatus is the lifecycle state of an execution reported by the gateway.
type TradeStatus string

const (
	TradeCompleted TradeStatus = "COMPLETED"
	TradePending   TradeStatus = "PENDING"
	TradeFailed    TradeStatus = "FAILED"
)

// Trade represents a historical execution. Timestamp is milliseconds since epoch.
type Trade struct {
	ID        string      `json:"id"`
	Timestamp int64       `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Side      TradeSide   `json:"side"`
	Amount    float64     `json:"amount"`
	Price     float64     `json:"price"`
	Status    TradeStatus `json:"status"`
	PnL       *float64    `json:"pnl,omitempty"`
	Strategy  string      `json:"strategy,omitempty"`
}

// Signal is an advisory recommendation. It never changes portfolio or trade state.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Action     TradeSide `json:"action"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

// Severity categorizes an operational log entry.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeverityAI      Severity = "AI"
)

// LogEntry is a single record of the operational log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Type      Severity  `json:"type"`
}

// Clock returns the local wall-clock time used for display.
func (e LogEntry) Clock() string {
	return e.Timestamp.Local().Format("15:04:05")
}

// Status is the gateway's operational status resource.
type Status struct {
	IsEmergencyStopped bool `json:"isEmergencyStopped"`
}

// StopRequest is the body of an emergency-stop toggle request.
type StopRequest struct {
	Stop bool `json:"stop"`
}

// StopResponse is the gateway's answer to an emergency-stop toggle request.
type StopResponse struct {
	Success            bool `json:"success"`
	IsEmergencyStopped bool `json:"isEmergencyStopped"`
}

// PriceTick represents a single top-of-book update from an exchange.
type PriceTick struct {
	Exchange   string    `json:"exchange"`
	Pair       string    `json:"pair"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// NormalizeSymbol trims and upper-cases an instrument symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Pair builds the canonical "BASE/QUOTE" pair name.
func Pair(base, quote string) string {
	return NormalizeSymbol(base) + "/" + NormalizeSymbol(quote)
}
