// Package emergency owns the cached copy of the gateway's emergency stop flag.
package emergency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sentinel/internal/model"
)

// State is the trading state implied by the stop flag.
type State string

const (
	StateActive State = "ACTIVE"
	StateHalted State = "HALTED"
)

const (
	msgHalted    = "EMERGENCY STOP PROTOCOL INITIATED"
	msgActivated = "TRADING CORE RE-ACTIVATED"
	msgAssumed   = " (gateway unreachable, state assumed)"
)

func stateOf(halted bool) State {
	if halted {
		return StateHalted
	}
	return StateActive
}

// Switch sends stop requests to the gateway.
type Switch interface {
	SetEmergencyStop(ctx context.Context, stop bool) (model.StopResponse, error)
}

// Journal receives one entry per toggle.
type Journal interface {
	Append(severity model.Severity, message string) model.LogEntry
}

// Status is a point-in-time view of the controller.
type Status struct {
	Halted bool  `json:"isEmergencyStopped"`
	State  State `json:"state"`
	// Pending is the requested value while a toggle is in flight.
	Pending *bool `json:"pending,omitempty"`
	// Confirmed is false when the value was assumed after a failed request
	// and no tick has confirmed it since.
	Confirmed bool      `json:"confirmed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Controller arbitrates the emergency stop flag. Concurrent toggles and tick
// refreshes are last-write-wins.
type Controller struct {
	logger  *slog.Logger
	gateway Switch
	journal Journal
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	halted    bool
	pending   *bool
	confirmed bool
	updatedAt time.Time
	seq       uint64
}

// NewController creates a controller in the ACTIVE state. The value is
// unconfirmed until the first Observe or Set.
func NewController(logger *slog.Logger, gateway Switch, journal Journal, timeout time.Duration) *Controller {
	return &Controller{
		logger:  logger,
		gateway: gateway,
		journal: journal,
		timeout: timeout,
		now:     time.Now,
	}
}

// Set requests the given stop value and adopts the gateway's answer. When the
// request fails the controller assumes the opposite of what was requested.
// Exactly one journal entry is appended per call. It returns the adopted value.
func (c *Controller) Set(ctx context.Context, stop bool) bool {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	requested := stop
	c.pending = &requested
	c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	confirmed := true
	resp, err := c.gateway.SetEmergencyStop(ctx, stop)
	halted := resp.IsEmergencyStopped
	if err != nil {
		confirmed = false
		halted = !stop
		c.logger.Error("Emergency: stop request failed, assuming opposite state",
			"requested", stop,
			"assumed", halted,
			"error", err,
		)
	} else if halted != stop {
		c.logger.Warn("Emergency: gateway coerced stop request", "requested", stop, "adopted", halted)
	}

	c.mu.Lock()
	c.halted = halted
	c.confirmed = confirmed
	c.updatedAt = c.now()
	if c.seq == seq {
		c.pending = nil
	}
	c.mu.Unlock()

	c.record(halted, confirmed)
	c.logger.Info("Emergency: state changed", "state", stateOf(halted), "confirmed", confirmed)
	return halted
}

// Toggle requests the negation of the cached value.
func (c *Controller) Toggle(ctx context.Context) bool {
	return c.Set(ctx, !c.Halted())
}

// Observe refreshes the cached value from a tick's status resource. It never
// appends to the journal.
func (c *Controller) Observe(halted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halted != halted {
		c.logger.Info("Emergency: gateway reported state change", "state", stateOf(halted))
	}
	c.halted = halted
	c.confirmed = true
	c.updatedAt = c.now()
}

// Halted returns the cached stop flag.
func (c *Controller) Halted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Status returns a copy of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Halted:    c.halted,
		State:     stateOf(c.halted),
		Confirmed: c.confirmed,
		UpdatedAt: c.updatedAt,
	}
	if c.pending != nil {
		p := *c.pending
		s.Pending = &p
	}
	return s
}

func (c *Controller) record(halted, confirmed bool) {
	severity, msg := model.SeveritySuccess, msgActivated
	if halted {
		severity, msg = model.SeverityError, msgHalted
	}
	if !confirmed {
		msg += msgAssumed
	}
	c.journal.Append(severity, msg)
}
