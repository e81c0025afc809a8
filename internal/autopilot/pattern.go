// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package autopilot implements the autonomous decision gate: it learns which
// routing choices have historically been reliable enough to execute without
// confirmation, gates each candidate decision through an ordered series of
// checks, and erodes or reinforces pattern confidence as feedback arrives.
package autopilot

import (
	"sync"
	"time"
)

// Tuning constants for pattern learning. Confidence and success rate are
// never driven to 0 or 1; the clamp prevents runaway certainty in either
// direction.
const (
	// PatternFloor and PatternCeiling bound confidence and success rate
	// after any feedback-driven update.
	PatternFloor   = 0.50
	PatternCeiling = 0.99

	// MinSuccessRate is the success rate below which a pattern is disabled
	// for future autonomy. There is no automatic re-enable path.
	MinSuccessRate = 0.85

	// MinSampleSize is the minimum usage count before a (project, model)
	// pair can qualify for the pattern store.
	MinSampleSize = 5

	successConfidenceDelta = 0.02
	successRateDelta       = 0.01
	failureConfidenceDelta = 0.05
	failureRateDelta       = 0.03
)

// PatternKey identifies one learned (project, model) combination.
type PatternKey struct {
	Project string `json:"project"`
	Model   string `json:"model"`
}

// Pattern holds the learned statistics for one (project, model) combination.
type Pattern struct {
	Key PatternKey `json:"key"`

	// Confidence in this pattern, clamped to [PatternFloor, PatternCeiling].
	Confidence float64 `json:"confidence"`

	// SuccessRate observed for this pattern, clamped like Confidence.
	SuccessRate float64 `json:"success_rate"`

	// UsageCount is the number of autonomous executions against this pattern.
	UsageCount int `json:"usage_count"`

	// Stable indicates the pattern's statistics have settled.
	Stable bool `json:"stable"`

	// Enabled is false once SuccessRate has dropped below MinSuccessRate.
	Enabled bool `json:"enabled"`

	LastUsed     time.Time `json:"last_used"`
	LastFeedback time.Time `json:"last_feedback"`
}

// PatternStore is the serialized owner of all learned patterns. Update is the
// only mutation entry point, so the clamp-and-disable rules are applied
// exactly once per write regardless of caller.
type PatternStore struct {
	mu       sync.RWMutex
	patterns map[PatternKey]*Pattern
}

// NewPatternStore creates an empty pattern store.
func NewPatternStore() *PatternStore {
	return &PatternStore{patterns: make(map[PatternKey]*Pattern)}
}

// Get returns a copy of the pattern for key, and whether it exists.
func (ps *PatternStore) Get(key PatternKey) (Pattern, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, ok := ps.patterns[key]
	if !ok {
		return Pattern{}, false
	}
	return *p, true
}

// Update applies fn to the pattern for key, creating it first when absent.
// After fn runs, confidence and success rate are clamped and the
// disable-below-minimum rule is applied. Disable is one way: Update never
// re-enables a pattern.
func (ps *PatternStore) Update(key PatternKey, fn func(*Pattern)) Pattern {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.patterns[key]
	if !ok {
		p = &Pattern{Key: key, Enabled: true}
		ps.patterns[key] = p
	}

	wasDisabled := !p.Enabled
	fn(p)

	p.Confidence = clampPattern(p.Confidence)
	p.SuccessRate = clampPattern(p.SuccessRate)
	if p.SuccessRate < MinSuccessRate {
		p.Enabled = false
	}
	if wasDisabled {
		p.Enabled = false
	}

	return *p
}

// Len returns the number of stored patterns.
func (ps *PatternStore) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.patterns)
}

// All returns a copy of every stored pattern.
func (ps *PatternStore) All() []Pattern {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	out := make([]Pattern, 0, len(ps.patterns))
	for _, p := range ps.patterns {
		out = append(out, *p)
	}
	return out
}

func clampPattern(v float64) float64 {
	if v < PatternFloor {
		return PatternFloor
	}
	if v > PatternCeiling {
		return PatternCeiling
	}
	return v
}
