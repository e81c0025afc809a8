// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package suggest collects workflow-step proposals from independent sources,
// annotates them against a cognitive-capacity snapshot, and ranks them with a
// deterministic weighted score.
package suggest

import (
	"context"
	"time"

	"github.com/stewardai/steward/internal/cognitive"
)

// Source tags where a suggestion came from.
type Source string

const (
	SourceSequencePredictor Source = "task_sequence_predictor"
	SourceWorkflowMemory    Source = "workflow_memory"
	SourceFallbackEngine    Source = "fallback_engine"
)

// Timing preferences attached to a step by the optimizer.
const (
	TimingNow             = "now"
	TimingNextFocusWindow = "next_focus_window"
	TimingFixedSlots      = "fixed_slots"
	TimingFlexible        = "flexible"
	TimingAnyTime         = "any_time"
)

// Advisory kinds emitted by the optimizer.
const (
	AdvisoryDeferHighLoad     = "defer_high_load"
	AdvisoryBreakLongTask     = "break_long_task"
	AdvisoryParallelExecution = "parallel_execution"
	AdvisoryMinimizeSwitching = "minimize_switching"
)

// TimingHint recommends when a step should run.
type TimingHint struct {
	Preference string                 `json:"preference"`
	Window     *cognitive.FocusWindow `json:"window,omitempty"`
	Slots      []string               `json:"slots,omitempty"`
	Note       string                 `json:"note,omitempty"`
}

// Advisory is a load-based recommendation attached to a step.
type Advisory struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Step is one phase of a proposed workflow. Optimizer annotations are
// additive; the original identity fields are never replaced.
type Step struct {
	Phase             string         `json:"phase"`
	EstimatedDuration time.Duration  `json:"estimated_duration"`
	Load              cognitive.Load `json:"load"`
	Confidence        float64        `json:"confidence"`
	DependsOn         []string       `json:"depends_on,omitempty"`
	ParallelEligible  bool           `json:"parallel_eligible,omitempty"`

	// Annotations added by the optimizer.
	Timing     *TimingHint `json:"timing,omitempty"`
	Advisories []Advisory  `json:"advisories,omitempty"`
}

// Optimization is the workflow-level summary attached after optimization.
type Optimization struct {
	HyperfocusAligned     bool      `json:"hyperfocus_aligned"`
	HyperfocusNote        string    `json:"hyperfocus_note,omitempty"`
	BreakRecommendations  []string  `json:"break_recommendations,omitempty"`
	SwitchingNote         string    `json:"switching_note,omitempty"`
	AccommodationsApplied bool      `json:"accommodations_applied"`
	OptimizedAt           time.Time `json:"optimized_at"`
}

// Suggestion is one candidate workflow plan.
type Suggestion struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ProjectContext string `json:"project_context"`

	// Steps preserve source order throughout aggregation and optimization.
	Steps []Step `json:"steps"`

	TotalEstimatedDuration time.Duration `json:"total_estimated_duration"`

	// CompletionProbability is the source's estimate that the plan finishes
	// as written, in [0,1]. Zero means "not estimated".
	CompletionProbability float64 `json:"completion_probability,omitempty"`

	Source Source `json:"source"`

	// BasedOnCompletions is how many recorded completions back a
	// memory-sourced suggestion.
	BasedOnCompletions int `json:"based_on_completions,omitempty"`

	Optimization *Optimization `json:"cognitive_optimization,omitempty"`
}

// MemoryResult is what the memory-backed suggester returns.
type MemoryResult struct {
	Success            bool          `json:"success"`
	Suggestions        []*Suggestion `json:"suggestions"`
	BasedOnCompletions int           `json:"based_on_completions"`
}

// SequencePredictor proposes a step sequence for a project in progress.
// A nil suggestion with a nil error means "no proposal".
type SequencePredictor interface {
	GenerateSuggestion(ctx context.Context, project string, progress float64) (*Suggestion, error)
}

// MemorySuggester proposes plans based on recorded workflow completions.
type MemorySuggester interface {
	Suggestions(ctx context.Context, project, task string, opts Options) (*MemoryResult, error)
}

// Options tunes a single aggregation request.
type Options struct {
	// Progress is how far along the current workflow is, in [0,1].
	Progress float64 `json:"progress,omitempty"`

	// Limit caps suggestions taken from each source. 0 means no cap.
	Limit int `json:"limit,omitempty"`
}
