package autopilot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionLog_Bound(t *testing.T) {
	dl := NewDecisionLog(MaxLogEntries)

	for i := 0; i < MaxLogEntries+50; i++ {
		dl.Append(&LogEntry{ID: fmt.Sprintf("d-%d", i)})
	}

	assert.Equal(t, MaxLogEntries, dl.Len())

	entries := dl.Recent(0)
	require.Len(t, entries, MaxLogEntries)
	assert.Equal(t, "d-50", entries[0].ID, "oldest entries were dropped")
	assert.Equal(t, fmt.Sprintf("d-%d", MaxLogEntries+49), entries[len(entries)-1].ID)
}

func TestDecisionLog_Recent(t *testing.T) {
	dl := NewDecisionLog(10)
	for i := 0; i < 5; i++ {
		dl.Append(&LogEntry{ID: fmt.Sprintf("d-%d", i)})
	}

	recent := dl.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "d-3", recent[0].ID)
	assert.Equal(t, "d-4", recent[1].ID)

	assert.Len(t, dl.Recent(100), 5, "asking for more than retained returns all")
}

func TestDecisionLog_Mutate(t *testing.T) {
	dl := NewDecisionLog(10)
	dl.Append(&LogEntry{ID: "d-1"})

	ok := dl.Mutate("d-1", func(e *LogEntry) { e.UserReviewed = true })
	require.True(t, ok)

	entry, found := dl.Get("d-1")
	require.True(t, found)
	assert.True(t, entry.UserReviewed)

	assert.False(t, dl.Mutate("missing", func(e *LogEntry) {}))
}

func TestDecisionLog_GetReturnsCopy(t *testing.T) {
	dl := NewDecisionLog(10)
	dl.Append(&LogEntry{ID: "d-1", Task: "original"})

	entry, _ := dl.Get("d-1")
	entry.Task = "mutated"

	fresh, _ := dl.Get("d-1")
	assert.Equal(t, "original", fresh.Task)
}
