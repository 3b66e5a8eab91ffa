// Package syncloop drives the periodic reconciliation of gateway state.
package syncloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"sentinel/internal/fetcher"
	"sentinel/internal/model"
)

// Snapshot is the portfolio, trades and signals of one successful round.
// It is never modified after publication.
type Snapshot struct {
	Assets    []model.Asset  `json:"assets"`
	Trades    []model.Trade  `json:"trades"`
	Signals   []model.Signal `json:"signals"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// State is what the loop publishes after every tick.
type State struct {
	Snapshot    Snapshot  `json:"snapshot"`
	Connected   bool      `json:"connected"`
	LastError   string    `json:"lastError,omitempty"`
	LastAttempt time.Time `json:"lastAttempt"`
	Ticks       uint64    `json:"ticks"`
}

// Fetcher runs one fetch round.
type Fetcher interface {
	Fetch(ctx context.Context) (fetcher.Round, error)
}

// StopObserver receives the gateway's stop flag after each successful round.
type StopObserver interface {
	Observe(halted bool)
}

// Loop fetches on a fixed interval and publishes an immutable State.
type Loop struct {
	logger   *slog.Logger
	fetcher  Fetcher
	stop     StopObserver
	interval time.Duration

	state atomic.Pointer[State]
	ticks atomic.Uint64

	subsMu sync.RWMutex
	subs   []func(State)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a loop. The initial state is disconnected with an empty snapshot.
func New(logger *slog.Logger, f Fetcher, stop StopObserver, interval time.Duration) *Loop {
	l := &Loop{
		logger:   logger,
		fetcher:  f,
		stop:     stop,
		interval: interval,
	}
	l.state.Store(&State{Snapshot: Snapshot{
		Assets:  []model.Asset{},
		Trades:  []model.Trade{},
		Signals: []model.Signal{},
	}})
	return l
}

// State returns the latest published state.
func (l *Loop) State() State {
	return *l.state.Load()
}

// OnUpdate registers fn to be called after every tick with the new state.
// Subscribers run on the loop goroutine and should return quickly.
func (l *Loop) OnUpdate(fn func(State)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.subs = append(l.subs, fn)
}

// Start runs the first tick immediately and then one per interval until Stop
// is called or ctx is cancelled. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(ctx, l.done)
	l.logger.Info("SyncLoop: started", "interval", l.interval)
}

// Stop cancels the timer and waits for the loop goroutine to exit.
func (l *Loop) Stop() {
	l.runMu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.logger.Info("SyncLoop: stopped")
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	l.Tick(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one fetch-and-publish cycle. On failure the previous snapshot
// is kept and the state is marked disconnected.
func (l *Loop) Tick(ctx context.Context) {
	prev := l.state.Load()
	next := &State{
		Snapshot:    prev.Snapshot,
		LastAttempt: time.Now(),
		Ticks:       l.ticks.Add(1),
	}

	round, err := l.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		next.Connected = false
		next.LastError = err.Error()
		l.logger.Warn("SyncLoop: tick failed, keeping previous snapshot", "tick", next.Ticks, "error", err)
	} else {
		next.Connected = true
		next.Snapshot = Snapshot{
			Assets:    round.Assets,
			Trades:    round.Trades,
			Signals:   round.Signals,
			FetchedAt: round.FetchedAt,
		}
		if l.stop != nil {
			l.stop.Observe(round.Status.IsEmergencyStopped)
		}
	}

	if prev.Connected != next.Connected {
		l.logger.Info("SyncLoop: connectivity changed", "connected", next.Connected)
	}
	l.state.Store(next)
	l.notify(*next)
}

func (l *Loop) fetch(ctx context.Context) (round fetcher.Round, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("tick panicked: %v", r)
		}
	}()
	return l.fetcher.Fetch(ctx)
}

func (l *Loop) notify(s State) {
	l.subsMu.RLock()
	subs := make([]func(State), len(l.subs))
	copy(subs, l.subs)
	l.subsMu.RUnlock()

	for _, fn := range subs {
		fn(s)
	}
}
