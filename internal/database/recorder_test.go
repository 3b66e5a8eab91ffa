package database

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"sentinel/internal/model"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockRepository) LogEntry(ctx context.Context, entry model.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) LogSample(ctx context.Context, sample Sample) error {
	args := m.Called(ctx, sample)
	return args.Error(0)
}

func (m *MockRepository) LogPriceTick(ctx context.Context, tick model.PriceTick) error {
	args := m.Called(ctx, tick)
	return args.Error(0)
}

func TestRecorder_WritesQueuedRecords(t *testing.T) {
	repo := new(MockRepository)
	entry := model.LogEntry{Message: "halted", Type: model.SeverityError}
	sample := Sample{TotalValue: 630}
	tick := model.PriceTick{Exchange: "binance", Pair: "BTC/EUR"}

	repo.On("LogEntry", mock.Anything, entry).Return(nil).Once()
	repo.On("LogSample", mock.Anything, sample).Return(errors.New("db down")).Once()
	repo.On("LogPriceTick", mock.Anything, tick).Return(nil).Once()

	rec := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, 0)
	rec.RecordEntry(entry)
	rec.RecordSample(sample)
	rec.RecordTick(tick)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(rec.queue) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done

	repo.AssertExpectations(t)
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	repo := new(MockRepository)
	rec := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, 1)

	rec.RecordEntry(model.LogEntry{Message: "a"})
	rec.RecordEntry(model.LogEntry{Message: "b"})
	rec.RecordEntry(model.LogEntry{Message: "c"})

	assert.EqualValues(t, 2, rec.Dropped())
	repo.AssertNotCalled(t, "LogEntry", mock.Anything, mock.Anything)
}

func TestRecorder_DrainsOnShutdown(t *testing.T) {
	repo := new(MockRepository)
	repo.On("LogEntry", mock.Anything, mock.Anything).Return(nil).Twice()

	rec := NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, 4)
	rec.RecordEntry(model.LogEntry{Message: "a"})
	rec.RecordEntry(model.LogEntry{Message: "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, rec.Run(ctx))
	repo.AssertExpectations(t)
}
