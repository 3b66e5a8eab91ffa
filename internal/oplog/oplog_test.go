package oplog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/model"
)

func TestLog_Bound(t *testing.T) {
	l := New(DefaultCapacity)
	for i := 0; i < 51; i++ {
		l.Append(model.SeverityInfo, fmt.Sprintf("event %d", i))
	}

	entries := l.Entries()
	require.Len(t, entries, 50)
	assert.Equal(t, 50, l.Len())
	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("event %d", i+1), e.Message)
	}
}

func TestLog_OrderBeforeWrap(t *testing.T) {
	l := New(3)
	l.Append(model.SeverityInfo, "a")
	l.Append(model.SeverityError, "b")

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Message)
	assert.Equal(t, model.SeverityError, entries[1].Type)

	l.Append(model.SeverityInfo, "c")
	l.Append(model.SeverityInfo, "d")
	l.Append(model.SeverityInfo, "d")

	var got []string
	for _, e := range l.Entries() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"c", "d", "d"}, got)
}

func TestLog_Timestamp(t *testing.T) {
	l := New(0)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	l.now = func() time.Time { return fixed }

	entry := l.Append(model.SeverityAI, "signal refreshed")
	assert.Equal(t, fixed, entry.Timestamp)
	assert.Equal(t, "03:04:05", entry.Clock())
	assert.Equal(t, DefaultCapacity, l.Capacity())
}

func TestLog_EntriesIsCopy(t *testing.T) {
	l := New(2)
	l.Append(model.SeverityInfo, "a")

	entries := l.Entries()
	entries[0].Message = "mutated"
	assert.Equal(t, "a", l.Entries()[0].Message)
}

func TestLog_Observer(t *testing.T) {
	l := New(2)
	var seen []string
	l.Observe(func(e model.LogEntry) { seen = append(seen, e.Message) })

	l.Append(model.SeverityInfo, "a")
	l.Append(model.SeverityInfo, "b")
	l.Append(model.SeverityInfo, "c")
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestLog_ConcurrentAppend(t *testing.T) {
	l := New(DefaultCapacity)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Append(model.SeverityInfo, fmt.Sprintf("%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, DefaultCapacity)

	// per-writer order survives interleaving
	last := map[byte]int{}
	for _, e := range entries {
		var w, i int
		_, err := fmt.Sscanf(e.Message, "%d-%d", &w, &i)
		require.NoError(t, err)
		prev, ok := last[byte(w)]
		if ok {
			assert.Greater(t, i, prev)
		}
		last[byte(w)] = i
	}
}
