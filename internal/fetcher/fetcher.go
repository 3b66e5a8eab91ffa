// Package fetcher performs one combined fetch round against the account gateway.
package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"sentinel/internal/model"
)

// DefaultMaxSignals is the number of signals kept from a round.
const DefaultMaxSignals = 10

// ErrRoundFailed marks a round whose critical resources could not be fetched.
var ErrRoundFailed = errors.New("fetch round failed")

// Source is the subset of the gateway client used by a fetch round.
type Source interface {
	Portfolio(ctx context.Context) ([]model.Asset, error)
	Trades(ctx context.Context) []model.Trade
	Signals(ctx context.Context) []model.Signal
	Status(ctx context.Context) (model.Status, error)
}

// Round is the result of a successful fetch round.
type Round struct {
	Assets    []model.Asset
	Trades    []model.Trade
	Signals   []model.Signal
	Status    model.Status
	FetchedAt time.Time
	Latency   time.Duration
}

// Fetcher issues the four resource requests of a round concurrently.
type Fetcher struct {
	logger     *slog.Logger
	source     Source
	maxSignals int
}

// New creates a Fetcher. A non-positive maxSignals uses DefaultMaxSignals.
func New(logger *slog.Logger, source Source, maxSignals int) *Fetcher {
	if maxSignals <= 0 {
		maxSignals = DefaultMaxSignals
	}
	return &Fetcher{logger: logger, source: source, maxSignals: maxSignals}
}

// Fetch runs one round. All four requests are started before any is awaited
// and none is retried. A portfolio or status failure fails the round; trades
// and signals degrade inside the source.
func (f *Fetcher) Fetch(ctx context.Context) (Round, error) {
	start := time.Now()

	var (
		assets  []model.Asset
		trades  []model.Trade
		signals []model.Signal
		status  model.Status
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assets, err = f.source.Portfolio(gctx)
		return errors.Wrap(err, "portfolio")
	})
	g.Go(func() error {
		trades = f.source.Trades(gctx)
		return nil
	})
	g.Go(func() error {
		signals = f.source.Signals(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		status, err = f.source.Status(gctx)
		return errors.Wrap(err, "status")
	})

	if err := g.Wait(); err != nil {
		f.logger.Warn("Fetcher: round failed", "error", err, "latency", time.Since(start))
		return Round{}, errors.Wrapf(ErrRoundFailed, "%v", err)
	}

	if trades == nil {
		trades = []model.Trade{}
	}
	if signals == nil {
		signals = []model.Signal{}
	}
	if len(signals) > f.maxSignals {
		signals = signals[:f.maxSignals]
	}
	if assets == nil {
		assets = []model.Asset{}
	}

	round := Round{
		Assets:    assets,
		Trades:    trades,
		Signals:   signals,
		Status:    status,
		FetchedAt: time.Now(),
		Latency:   time.Since(start),
	}
	f.logger.Debug("Fetcher: round complete",
		"assets", len(assets),
		"trades", len(trades),
		"signals", len(signals),
		"stopped", status.IsEmergencyStopped,
		"latency", round.Latency,
	)
	return round, nil
}
