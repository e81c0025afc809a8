// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package routing defines the single-shot routing collaborator consumed by the
// autonomous decision gate. The router itself (task classification and model
// selection) lives outside this module; steward only consumes its decisions
// and forwards feedback to it.
package routing

import (
	"context"
	"time"
)

// UnknownProject is the project context reported by the router when it could
// not resolve the task to a known project.
const UnknownProject = "unknown"

// TaskInput describes one task submitted for routing.
type TaskInput struct {
	// Task is the raw task text.
	Task string `json:"task"`
	// ProjectHint optionally names the project the task belongs to.
	ProjectHint string `json:"project_hint,omitempty"`
	// Progress describes how far along the current workflow is, in [0,1].
	Progress float64 `json:"progress,omitempty"`
	// Metadata carries caller-specific context passed through to the router.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// UserProfile carries the per-user settings the gate and supervisor consult.
type UserProfile struct {
	// EnableAutopilot is the user's own opt-in to unattended execution.
	EnableAutopilot bool `json:"enable_autopilot"`
	// AccommodationsActive indicates ADHD accommodations are in effect.
	AccommodationsActive bool `json:"accommodations_active"`
	// MicroBreakInterval overrides the configured micro-break reminder period.
	MicroBreakInterval time.Duration `json:"micro_break_interval,omitempty"`
}

// Options carries router invocation options. Opaque to this module.
type Options struct {
	// PreferLocal biases the router toward local models.
	PreferLocal bool `json:"prefer_local,omitempty"`
	// Metadata carries additional router-specific options.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Decision represents the router's choice for a single task.
type Decision struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// ProjectContext is the resolved project, or UnknownProject.
	ProjectContext string `json:"project_context"`

	// SelectedModel is the model chosen for the task.
	SelectedModel string `json:"selected_model"`

	// Confidence is the router's confidence in this selection, in [0,1].
	Confidence float64 `json:"confidence"`

	// ContextSwitchPenalty models the cost of switching to this project
	// from the user's current context, in [0,1].
	ContextSwitchPenalty float64 `json:"context_switch_penalty"`

	// Reason is the router's human-readable justification.
	Reason string `json:"reason"`
}

// Feedback captures a user's judgement of a completed decision.
type Feedback struct {
	Success  bool    `json:"success"`
	Rating   float64 `json:"rating"` // 0.0 to 1.0
	Comments string  `json:"comments,omitempty"`
}

// Router is the single-decision routing primitive.
// Implementations may fail; callers must tolerate errors without crashing.
type Router interface {
	// MakeDecision classifies the task and proposes a model.
	MakeDecision(ctx context.Context, input TaskInput, profile UserProfile, opts Options) (*Decision, error)

	// RecordFeedback forwards user feedback on a decision back to the router
	// so its own learning can incorporate it.
	RecordFeedback(ctx context.Context, decision *Decision, fb Feedback) error
}
