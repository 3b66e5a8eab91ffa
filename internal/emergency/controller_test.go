package emergency

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sentinel/internal/model"
	"sentinel/internal/oplog"
)

type MockSwitch struct {
	mock.Mock
}

func (m *MockSwitch) SetEmergencyStop(ctx context.Context, stop bool) (model.StopResponse, error) {
	args := m.Called(ctx, stop)
	return args.Get(0).(model.StopResponse), args.Error(1)
}

func newController(sw Switch) (*Controller, *oplog.Log) {
	journal := oplog.New(oplog.DefaultCapacity)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewController(logger, sw, journal, time.Second), journal
}

func TestController_StopThenResume(t *testing.T) {
	sw := new(MockSwitch)
	sw.On("SetEmergencyStop", mock.Anything, true).Return(model.StopResponse{Success: true, IsEmergencyStopped: true}, nil).Once()
	sw.On("SetEmergencyStop", mock.Anything, false).Return(model.StopResponse{Success: true, IsEmergencyStopped: false}, nil).Once()

	c, journal := newController(sw)

	assert.True(t, c.Toggle(context.Background()))
	assert.True(t, c.Halted())
	entries := journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, model.SeverityError, entries[0].Type)
	assert.Equal(t, msgHalted, entries[0].Message)

	assert.False(t, c.Toggle(context.Background()))
	assert.False(t, c.Halted())
	entries = journal.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.SeveritySuccess, entries[1].Type)

	status := c.Status()
	assert.Equal(t, StateActive, status.State)
	assert.True(t, status.Confirmed)
	assert.Nil(t, status.Pending)
	sw.AssertExpectations(t)
}

func TestController_FailedClosed(t *testing.T) {
	for _, requested := range []bool{true, false} {
		sw := new(MockSwitch)
		sw.On("SetEmergencyStop", mock.Anything, requested).Return(model.StopResponse{}, errors.New("dial tcp: refused"))

		c, journal := newController(sw)
		got := c.Set(context.Background(), requested)

		assert.Equal(t, !requested, got)
		assert.Equal(t, !requested, c.Halted())
		assert.Equal(t, 1, journal.Len())
		assert.False(t, c.Status().Confirmed)
		assert.Contains(t, journal.Entries()[0].Message, "assumed")
	}
}

func TestController_Idempotence(t *testing.T) {
	sw := new(MockSwitch)
	// gateway answers differ from the request; the cache follows the gateway
	sw.On("SetEmergencyStop", mock.Anything, true).Return(model.StopResponse{Success: true, IsEmergencyStopped: true}, nil).Once()
	sw.On("SetEmergencyStop", mock.Anything, true).Return(model.StopResponse{Success: true, IsEmergencyStopped: false}, nil).Once()

	c, journal := newController(sw)
	assert.True(t, c.Set(context.Background(), true))
	assert.False(t, c.Set(context.Background(), true))
	assert.False(t, c.Halted())
	assert.Equal(t, 2, journal.Len())
}

func TestController_ObserveDoesNotLog(t *testing.T) {
	c, journal := newController(new(MockSwitch))
	assert.False(t, c.Status().Confirmed)

	c.Observe(true)
	assert.True(t, c.Halted())
	assert.True(t, c.Status().Confirmed)
	assert.Equal(t, StateHalted, c.Status().State)
	assert.Zero(t, journal.Len())
}

type blockingSwitch struct {
	started chan struct{}
	release chan model.StopResponse
}

func (b *blockingSwitch) SetEmergencyStop(ctx context.Context, stop bool) (model.StopResponse, error) {
	close(b.started)
	select {
	case resp := <-b.release:
		return resp, nil
	case <-ctx.Done():
		return model.StopResponse{}, ctx.Err()
	}
}

func TestController_PendingWhileInFlight(t *testing.T) {
	sw := &blockingSwitch{started: make(chan struct{}), release: make(chan model.StopResponse)}
	c, _ := newController(sw)

	done := make(chan bool)
	go func() { done <- c.Set(context.Background(), true) }()

	<-sw.started
	status := c.Status()
	require.NotNil(t, status.Pending)
	assert.True(t, *status.Pending)
	assert.False(t, status.Halted)

	sw.release <- model.StopResponse{Success: true, IsEmergencyStopped: true}
	assert.True(t, <-done)
	assert.Nil(t, c.Status().Pending)
}

func TestController_Timeout(t *testing.T) {
	sw := &blockingSwitch{started: make(chan struct{}), release: make(chan model.StopResponse)}
	journal := oplog.New(0)
	c := NewController(slog.New(slog.NewTextHandler(io.Discard, nil)), sw, journal, 50*time.Millisecond)

	assert.True(t, c.Set(context.Background(), false))
	assert.Equal(t, 1, journal.Len())
	assert.Equal(t, model.SeverityError, journal.Entries()[0].Type)
}
