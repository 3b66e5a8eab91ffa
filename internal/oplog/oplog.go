// Package oplog holds the bounded operational log shown to the operator.
package oplog

import (
	"sync"
	"time"

	"sentinel/internal/model"
)

// DefaultCapacity is the number of entries retained before the oldest is evicted.
const DefaultCapacity = 50

// Observer is notified of every appended entry. It is called while the log is
// locked and must not block or call back into the log.
type Observer func(model.LogEntry)

// Log is an append-only ring of log entries with FIFO eviction.
type Log struct {
	mu        sync.Mutex
	entries   []model.LogEntry
	start     int
	size      int
	now       func() time.Time
	observers []Observer
}

// New creates a log with the given capacity. A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		entries: make([]model.LogEntry, capacity),
		now:     time.Now,
	}
}

// Observe registers an observer for appended entries.
func (l *Log) Observe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

// Append records a message. Once the log is full the oldest entry is evicted.
func (l *Log) Append(severity model.Severity, message string) model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := model.LogEntry{Timestamp: l.now(), Message: message, Type: severity}

	capacity := len(l.entries)
	if l.size < capacity {
		l.entries[(l.start+l.size)%capacity] = entry
		l.size++
	} else {
		l.entries[l.start] = entry
		l.start = (l.start + 1) % capacity
	}

	for _, o := range l.observers {
		o(entry)
	}
	return entry
}

// Entries returns a copy of the retained entries, oldest first.
func (l *Log) Entries() []model.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]model.LogEntry, l.size)
	capacity := len(l.entries)
	for i := 0; i < l.size; i++ {
		out[i] = l.entries[(l.start+i)%capacity]
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.size
}

// Capacity returns the maximum number of retained entries.
func (l *Log) Capacity() int {
	return len(l.entries)
}
