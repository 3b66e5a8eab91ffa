package backend

import (
	"sync"
	"time"
)

// StopFlag is the gateway's authoritative emergency stop state.
type StopFlag struct {
	mu        sync.RWMutex
	stopped   bool
	changedAt time.Time
}

// Get returns the current value.
func (f *StopFlag) Get() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stopped
}

// Set stores a new value and reports whether it changed.
func (f *StopFlag) Set(stopped bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := f.stopped != stopped
	f.stopped = stopped
	if changed {
		f.changedAt = time.Now()
	}
	return changed
}

// ChangedAt returns when the value last changed.
func (f *StopFlag) ChangedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.changedAt
}
