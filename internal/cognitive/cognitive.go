// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cognitive defines the cognitive-capacity collaborator and the
// point-in-time context snapshot the optimizer and supervisor consume.
// Predictions are produced by an external predictor; this package only
// shapes them and supplies a fixed fallback when the predictor fails.
package cognitive

import (
	"context"
	"time"
)

// Load is a coarse estimate of the mental effort a step requires.
type Load string

const (
	LoadLow    Load = "low"
	LoadMedium Load = "medium"
	LoadHigh   Load = "high"
)

// SwitchingSeverity classifies how costly context switching currently is.
type SwitchingSeverity string

const (
	SwitchingLow    SwitchingSeverity = "low"
	SwitchingMedium SwitchingSeverity = "medium"
	SwitchingHigh   SwitchingSeverity = "high"
)

// BreakPreferences describes the user's break cadence.
type BreakPreferences struct {
	MicroInterval  time.Duration `json:"micro_interval"`
	MicroDuration  time.Duration `json:"micro_duration"`
	ActiveInterval time.Duration `json:"active_interval"`
	ActiveDuration time.Duration `json:"active_duration"`
}

// FocusWindow is a predicted period of elevated sustained attention.
type FocusWindow struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Confidence float64   `json:"confidence"`
}

// Context is a point-in-time cognitive snapshot. It is produced fresh per
// suggestion request or monitoring tick and never persisted.
type Context struct {
	// PredictedCapacity is the estimated available capacity, in [0,1].
	PredictedCapacity float64 `json:"predicted_capacity"`

	// Confidence is the predictor's confidence in the capacity estimate.
	Confidence float64 `json:"confidence"`

	// NextFocusWindow is the upcoming high-focus window, if one is predicted.
	NextFocusWindow *FocusWindow `json:"next_focus_window,omitempty"`

	// AccommodationsActive indicates ADHD accommodations are in effect.
	AccommodationsActive bool `json:"accommodations_active"`

	// Breaks carries the user's break preferences.
	Breaks BreakPreferences `json:"breaks"`

	// Switching classifies current context-switching severity.
	Switching SwitchingSeverity `json:"switching"`
}

// CapacityPrediction is the raw predictor output for a moment in time.
type CapacityPrediction struct {
	Capacity   float64   `json:"capacity"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// HyperfocusPrediction describes the next expected hyperfocus cycle.
type HyperfocusPrediction struct {
	Window     *FocusWindow `json:"window,omitempty"`
	Confidence float64      `json:"confidence"`
}

// Predictor is the external cognitive-capacity collaborator.
type Predictor interface {
	// PredictCapacity estimates available capacity at the given time for a
	// task of the given complexity under the given switching severity.
	PredictCapacity(ctx context.Context, at time.Time, complexity Load, switching SwitchingSeverity) (*CapacityPrediction, error)

	// PredictHyperfocus predicts the next hyperfocus window after the given time.
	PredictHyperfocus(ctx context.Context, at time.Time) (*HyperfocusPrediction, error)
}

// DefaultContext returns the fixed fallback snapshot used when the predictor
// is unavailable. Capacity 0.7 keeps suggestions usable without overcommitting.
func DefaultContext(breaks BreakPreferences) *Context {
	return &Context{
		PredictedCapacity: 0.7,
		Confidence:        0.3,
		Breaks:            breaks,
		Switching:         SwitchingMedium,
	}
}

// Snapshot builds a Context from predictor output, falling back to
// DefaultContext when either call fails. It never returns an error.
func Snapshot(ctx context.Context, p Predictor, at time.Time, accommodations bool, breaks BreakPreferences, switching SwitchingSeverity) *Context {
	snap := DefaultContext(breaks)
	snap.AccommodationsActive = accommodations
	snap.Switching = switching

	if p == nil {
		return snap
	}

	if cap, err := p.PredictCapacity(ctx, at, LoadMedium, switching); err == nil && cap != nil {
		snap.PredictedCapacity = clamp01(cap.Capacity)
		snap.Confidence = clamp01(cap.Confidence)
	}
	if hf, err := p.PredictHyperfocus(ctx, at); err == nil && hf != nil && hf.Window != nil {
		snap.NextFocusWindow = hf.Window
	}

	return snap
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
