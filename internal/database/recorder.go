package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"sentinel/internal/model"
)

const (
	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

type record struct {
	entry  *model.LogEntry
	sample *Sample
	tick   *model.PriceTick
}

// Recorder queues journal writes so callers never block on the database.
// Records are dropped when the queue is full.
type Recorder struct {
	logger  *slog.Logger
	repo    Repository
	queue   chan record
	dropped atomic.Uint64
}

// NewRecorder creates a recorder. A non-positive buffer uses the default size.
func NewRecorder(logger *slog.Logger, repo Repository, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Recorder{
		logger: logger,
		repo:   repo,
		queue:  make(chan record, buffer),
	}
}

func (r *Recorder) RecordEntry(e model.LogEntry) { r.enqueue(record{entry: &e}) }
func (r *Recorder) RecordSample(s Sample)        { r.enqueue(record{sample: &s}) }
func (r *Recorder) RecordTick(t model.PriceTick) { r.enqueue(record{tick: &t}) }

// Dropped returns the number of records discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			r.logger.Warn("Recorder: queue full, dropping records", "dropped", n)
		}
	}
}

// Run writes queued records until ctx is cancelled, then drains what is left.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case rec := <-r.queue:
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for {
		select {
		case rec := <-r.queue:
			r.write(ctx, rec)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var err error
	switch {
	case rec.entry != nil:
		err = r.repo.LogEntry(ctx, *rec.entry)
	case rec.sample != nil:
		err = r.repo.LogSample(ctx, *rec.sample)
	case rec.tick != nil:
		err = r.repo.LogPriceTick(ctx, *rec.tick)
	}
	if err != nil {
		r.logger.Error("Recorder: failed to write journal record", "error", err)
	}
}
