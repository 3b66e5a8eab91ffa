// Package pricebook keeps the latest top-of-book per exchange and pair.
package pricebook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sentinel/internal/model"
)

// TickSink receives every processed tick, typically the audit journal.
type TickSink interface {
	RecordTick(tick model.PriceTick)
}

// Book holds the latest price tick for each exchange and pair.
type Book struct {
	logger *slog.Logger
	sink   TickSink
	maxAge time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	latest map[string]map[string]model.PriceTick // pair -> exchange -> tick
}

// New creates a price book. Ticks older than maxAge are ignored by Price; a
// zero maxAge keeps them forever. sink may be nil.
func New(logger *slog.Logger, sink TickSink, maxAge time.Duration) *Book {
	return &Book{
		logger: logger,
		sink:   sink,
		maxAge: maxAge,
		now:    time.Now,
		latest: make(map[string]map[string]model.PriceTick),
	}
}

// ProcessTick stores a new price tick as the latest for its exchange and pair.
func (b *Book) ProcessTick(ctx context.Context, tick model.PriceTick) {
	if tick.Bid <= 0 || tick.Ask <= 0 {
		b.logger.Warn("PriceBook: ignoring tick without a two-sided quote", "exchange", tick.Exchange, "pair", tick.Pair)
		return
	}
	if tick.ReceivedAt.IsZero() {
		tick.ReceivedAt = b.now()
	}

	b.mu.Lock()
	byExchange, ok := b.latest[tick.Pair]
	if !ok {
		byExchange = make(map[string]model.PriceTick)
		b.latest[tick.Pair] = byExchange
	}
	byExchange[tick.Exchange] = tick
	b.mu.Unlock()

	if b.sink != nil {
		b.sink.RecordTick(tick)
	}
}

// Consume processes ticks from ch until it is closed or ctx is cancelled.
func (b *Book) Consume(ctx context.Context, ch <-chan model.PriceTick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case tick, ok := <-ch:
			if !ok {
				return nil
			}
			b.ProcessTick(ctx, tick)
		}
	}
}

// Price returns the mean mid price of pair across exchanges with a fresh tick.
func (b *Book) Price(pair string) (decimal.Decimal, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sum := decimal.Zero
	var n int64
	now := b.now()
	for _, tick := range b.latest[pair] {
		if b.maxAge > 0 && now.Sub(tick.ReceivedAt) > b.maxAge {
			continue
		}
		mid := decimal.NewFromFloat(tick.Bid).Add(decimal.NewFromFloat(tick.Ask)).Div(decimal.NewFromInt(2))
		sum = sum.Add(mid)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)), true
}

// Ticks returns the latest tick of every exchange quoting pair.
func (b *Book) Ticks(pair string) []model.PriceTick {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.PriceTick, 0, len(b.latest[pair]))
	for _, tick := range b.latest[pair] {
		out = append(out, tick)
	}
	return out
}
