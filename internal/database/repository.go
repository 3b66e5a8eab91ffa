package database

import (
	"context"
	"time"

	"sentinel/internal/model"
)

// Sample is the per-tick metrics row written to the journal.
type Sample struct {
	TakenAt      time.Time
	Connected    bool
	Halted       bool
	TotalValue   float64
	CashBalance  float64
	HoldingsPnL  float64
	AggregateROI float64
	AssetCount   int
}

// Repository defines the standard interface for journal writes.
// Nothing is ever read back by the monitor.
type Repository interface {
	Migrate(ctx context.Context) error
	LogEntry(ctx context.Context, entry model.LogEntry) error
	LogSample(ctx context.Context, sample Sample) error
	LogPriceTick(ctx context.Context, tick model.PriceTick) error
}
