// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package autopilot

import (
	"sync"
	"time"

	"github.com/stewardai/steward/internal/routing"
)

// MaxLogEntries bounds the autonomous decision log. The oldest entries are
// silently dropped once the bound is exceeded.
const MaxLogEntries = 100

// LogEntry is the immutable record of one autonomous execution. Feedback and
// overrides mutate the entry in place after the fact.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Task           string `json:"task"`
	ProjectContext string `json:"project_context"`
	SelectedModel  string `json:"selected_model"`

	// DecisionConfidence is the confidence computed for this decision
	// (the minimum of baseline and pattern confidence).
	DecisionConfidence float64 `json:"decision_confidence"`

	// PatternConfidence is the confidence of the pattern used.
	PatternConfidence float64 `json:"pattern_confidence"`

	Reason        string        `json:"reason"`
	ExecutionTime time.Duration `json:"execution_time"`

	UserReviewed bool              `json:"user_reviewed"`
	UserFeedback *routing.Feedback `json:"user_feedback,omitempty"`
	UserOverride string            `json:"user_override,omitempty"`
}

// DecisionLog is a bounded, chronological ring of autonomous decisions.
type DecisionLog struct {
	mu      sync.Mutex
	max     int
	entries []*LogEntry
}

// NewDecisionLog creates a log bounded to max entries. max <= 0 uses
// MaxLogEntries.
func NewDecisionLog(max int) *DecisionLog {
	if max <= 0 {
		max = MaxLogEntries
	}
	return &DecisionLog{max: max}
}

// Append adds an entry, dropping the oldest when the bound is exceeded.
func (dl *DecisionLog) Append(e *LogEntry) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.entries = append(dl.entries, e)
	if len(dl.entries) > dl.max {
		dl.entries = dl.entries[len(dl.entries)-dl.max:]
	}
}

// Mutate applies fn to the entry with the given id under the log's lock.
// It returns false when no entry matches.
func (dl *DecisionLog) Mutate(id string, fn func(*LogEntry)) bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	for _, e := range dl.entries {
		if e.ID == id {
			fn(e)
			return true
		}
	}
	return false
}

// Get returns a copy of the entry with the given id.
func (dl *DecisionLog) Get(id string) (LogEntry, bool) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	for _, e := range dl.entries {
		if e.ID == id {
			return *e, true
		}
	}
	return LogEntry{}, false
}

// Recent returns copies of the most recent n entries in chronological order.
// n <= 0 returns all entries.
func (dl *DecisionLog) Recent(n int) []LogEntry {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if n <= 0 || n > len(dl.entries) {
		n = len(dl.entries)
	}
	out := make([]LogEntry, 0, n)
	for _, e := range dl.entries[len(dl.entries)-n:] {
		out = append(out, *e)
	}
	return out
}

// Len returns the number of retained entries.
func (dl *DecisionLog) Len() int {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return len(dl.entries)
}
