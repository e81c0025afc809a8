// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package memory defines the durable memory collaborator. Steward does not
// persist anything itself; completed workflows and routing history flow
// through these interfaces into an external store.
package memory

import (
	"context"
	"time"
)

// HistoryEntry is one historical routing outcome for a (project, model) pair.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Project   string    `json:"project"`
	Model     string    `json:"model"`
	Success   bool      `json:"success"`
	Quality   float64   `json:"quality"` // 0.0 to 1.0
}

// CompletionRecord summarizes a finished workflow for learning.
type CompletionRecord struct {
	WorkflowID     string `json:"workflow_id"`
	SuggestionID   string `json:"suggestion_id"`
	ProjectContext string `json:"project_context"`

	StepsCompleted int `json:"steps_completed"`
	StepsPlanned   int `json:"steps_planned"`

	ActualDuration    time.Duration `json:"actual_duration"`
	EstimatedDuration time.Duration `json:"estimated_duration"`

	SuccessRate       float64  `json:"success_rate"`
	UserModifications int      `json:"user_modifications"`
	LoadSamples       []string `json:"load_samples,omitempty"`

	// AutonomousFraction is the share of steps routed without confirmation.
	AutonomousFraction float64 `json:"autonomous_fraction"`

	ExecutionStrategy string    `json:"execution_strategy"`
	CompletedAt       time.Time `json:"completed_at"`
}

// Recorder is the external memory collaborator.
// Implementations may fail; callers must tolerate errors without crashing.
type Recorder interface {
	// RecordWorkflowCompletion hands a finished workflow to the store.
	RecordWorkflowCompletion(ctx context.Context, rec *CompletionRecord) error

	// RoutingHistory returns historical outcomes for a (project, model) pair,
	// most recent first. Consumed by the autopilot qualifier.
	RoutingHistory(ctx context.Context, project, model string) ([]HistoryEntry, error)
}
