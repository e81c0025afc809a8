// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package workflow supervises the lifecycle of accepted workflow suggestions:
// creation through an external orchestration engine, periodic cognitive
// monitoring while executing, and the post-completion learning hand-off.
package workflow

import (
	"context"
	"time"

	"github.com/stewardai/steward/internal/autopilot"
	"github.com/stewardai/steward/internal/suggest"
)

// CreateRequest asks the orchestration engine to materialize a workflow from
// an accepted suggestion.
type CreateRequest struct {
	Suggestion *suggest.Suggestion `json:"suggestion"`
	Project    string              `json:"project"`
}

// CreateResult is the engine's answer to CreateRequest.
type CreateResult struct {
	Success    bool   `json:"success"`
	WorkflowID string `json:"workflow_id"`
}

// RoutingConfig is injected into execution options when autonomous routing is
// enabled for a workflow. The engine consults the gate for each step and
// reports every autonomous decision through OnDecision.
type RoutingConfig struct {
	Threshold  float64
	Gate       *autopilot.Gate
	OnDecision func(entry *autopilot.LogEntry)
}

// ExecOptions carries per-execution settings to the orchestration engine.
type ExecOptions struct {
	Routing  *RoutingConfig         `json:"-"`
	Strategy string                 `json:"strategy,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ExecResult summarizes one workflow execution.
type ExecResult struct {
	Success           bool          `json:"success"`
	StepsCompleted    int           `json:"steps_completed"`
	Duration          time.Duration `json:"duration"`
	SuccessRate       float64       `json:"success_rate"`
	UserModifications int           `json:"user_modifications"`
	LoadSamples       []string      `json:"load_samples,omitempty"`
	Strategy          string        `json:"strategy,omitempty"`
}

// Engine is the external workflow orchestration collaborator.
// Implementations may fail; the supervisor propagates those errors to the
// caller after running its cleanup path.
type Engine interface {
	CreateWorkflow(ctx context.Context, req CreateRequest) (*CreateResult, error)
	ExecuteWorkflow(ctx context.Context, workflowID string, opts ExecOptions) (*ExecResult, error)
}
