// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stewardai/steward/internal/autopilot"
	"github.com/stewardai/steward/internal/cognitive"
	"github.com/stewardai/steward/internal/config"
	"github.com/stewardai/steward/internal/memory"
	"github.com/stewardai/steward/internal/routing"
	"github.com/stewardai/steward/internal/suggest"
)

// Sentinel errors surfaced to callers.
var (
	ErrWorkflowNotFound = errors.New("workflow: not found")
	ErrCreateRejected   = errors.New("workflow: engine rejected creation")
	ErrAlreadyExecuting = errors.New("workflow: already executing")
)

// lowCapacityWarning is the monitored capacity below which an advisory is logged.
const lowCapacityWarning = 0.4

// activeWorkflow is the live instance owned exclusively by the supervisor.
type activeWorkflow struct {
	id         string
	suggestion *suggest.Suggestion
	profile    routing.UserProfile

	monitoringEnabled bool
	autonomousEnabled bool

	// executing marks the entry as claimed by a running Execute; a second
	// Execute for the same id is rejected instead of overwriting the monitor.
	executing bool

	// decisions is the bounded per-workflow log of autonomous routing
	// decisions made during execution.
	decisions *autopilot.DecisionLog

	mon *monitor
}

// Supervisor owns every active workflow: creation, monitoring, execution,
// and the completion hand-off into durable memory.
type Supervisor struct {
	engine    Engine
	recorder  memory.Recorder
	predictor cognitive.Predictor
	gate      *autopilot.Gate

	cfg    config.WorkflowConfig
	cogCfg config.CognitiveConfig

	mu     sync.Mutex
	active map[string]*activeWorkflow
}

// NewSupervisor creates a supervisor. recorder, predictor, and gate may be
// nil; the corresponding features degrade to no-ops.
func NewSupervisor(engine Engine, recorder memory.Recorder, predictor cognitive.Predictor, gate *autopilot.Gate, cfg config.WorkflowConfig, cogCfg config.CognitiveConfig) *Supervisor {
	return &Supervisor{
		engine:    engine,
		recorder:  recorder,
		predictor: predictor,
		gate:      gate,
		cfg:       cfg,
		cogCfg:    cogCfg,
		active:    make(map[string]*activeWorkflow),
	}
}

// Create materializes the accepted suggestion through the orchestration
// engine and registers the resulting workflow. Cognitive monitoring follows
// the policy flag; autonomous routing requires the policy flag AND the
// user's opt-in.
func (sv *Supervisor) Create(ctx context.Context, suggestion *suggest.Suggestion, profile routing.UserProfile) (string, error) {
	if suggestion == nil {
		return "", fmt.Errorf("workflow: nil suggestion")
	}

	result, err := sv.engine.CreateWorkflow(ctx, CreateRequest{
		Suggestion: suggestion,
		Project:    suggestion.ProjectContext,
	})
	if err != nil {
		return "", fmt.Errorf("workflow: creation failed: %w", err)
	}
	if !result.Success || result.WorkflowID == "" {
		return "", ErrCreateRejected
	}

	aw := &activeWorkflow{
		id:                result.WorkflowID,
		suggestion:        suggestion,
		profile:           profile,
		monitoringEnabled: sv.cfg.CognitiveMonitoring,
		autonomousEnabled: sv.cfg.AutonomousRouting && profile.EnableAutopilot && sv.gate != nil,
		decisions:         autopilot.NewDecisionLog(autopilot.MaxLogEntries),
	}

	sv.mu.Lock()
	sv.active[result.WorkflowID] = aw
	sv.mu.Unlock()

	log.WithFields(log.Fields{
		"workflow_id": result.WorkflowID,
		"project":     suggestion.ProjectContext,
		"monitoring":  aw.monitoringEnabled,
		"autonomous":  aw.autonomousEnabled,
	}).Info("Workflow created")

	return result.WorkflowID, nil
}

// Execute runs a previously created workflow. Monitoring timers start before
// delegation and are cancelled unconditionally when execution finishes,
// whether it succeeded or failed. On success the completion record flows to
// the memory collaborator before the workflow is deregistered.
func (sv *Supervisor) Execute(ctx context.Context, workflowID string, opts ExecOptions) (result *ExecResult, err error) {
	sv.mu.Lock()
	aw, ok := sv.active[workflowID]
	if ok {
		if aw.executing {
			sv.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExecuting, workflowID)
		}
		aw.executing = true
	}
	sv.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	started := time.Now()

	if aw.monitoringEnabled {
		breakInterval := aw.profile.MicroBreakInterval
		if breakInterval <= 0 {
			breakInterval = sv.cogCfg.MicroBreakInterval
		}
		aw.mon = startMonitor(sv.cfg.CapacityCheckInterval, breakInterval,
			func() { sv.checkCapacity(aw) },
			func() { sv.remindBreak(aw) },
		)
	}

	// Cleanup is unconditional: timers cancelled and entry removed on every
	// exit path, success or failure.
	defer sv.cleanup(workflowID)

	if aw.autonomousEnabled {
		opts.Routing = &RoutingConfig{
			Threshold: sv.gate.Threshold(),
			Gate:      sv.gate,
			OnDecision: func(entry *autopilot.LogEntry) {
				if entry != nil {
					aw.decisions.Append(entry)
				}
			},
		}
	}

	result, err = sv.engine.ExecuteWorkflow(ctx, workflowID, opts)
	if err != nil {
		log.WithFields(log.Fields{"workflow_id": workflowID}).Warnf("Workflow execution failed: %v", err)
		return nil, fmt.Errorf("workflow: execution failed: %w", err)
	}

	sv.handOffCompletion(ctx, aw, result, time.Since(started))
	return result, nil
}

// Cleanup cancels monitoring and removes the workflow without executing it.
// It is a no-op for unknown ids.
func (sv *Supervisor) Cleanup(workflowID string) {
	sv.cleanup(workflowID)
}

// IsActive reports whether the workflow id is currently registered.
func (sv *Supervisor) IsActive(workflowID string) bool {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	_, ok := sv.active[workflowID]
	return ok
}

// ActiveCount returns the number of registered workflows.
func (sv *Supervisor) ActiveCount() int {
	sv.mu.Lock()
	defer sv.mu.Unlock()
	return len(sv.active)
}

// Decisions returns the autonomous decisions recorded for a workflow so far.
func (sv *Supervisor) Decisions(workflowID string) []autopilot.LogEntry {
	sv.mu.Lock()
	aw, ok := sv.active[workflowID]
	sv.mu.Unlock()
	if !ok {
		return nil
	}
	return aw.decisions.Recent(0)
}

// Shutdown cancels monitoring for every active workflow and clears the set.
func (sv *Supervisor) Shutdown() {
	sv.mu.Lock()
	ids := make([]string, 0, len(sv.active))
	for id := range sv.active {
		ids = append(ids, id)
	}
	sv.mu.Unlock()

	for _, id := range ids {
		sv.cleanup(id)
	}
}

func (sv *Supervisor) cleanup(workflowID string) {
	sv.mu.Lock()
	aw, ok := sv.active[workflowID]
	if ok {
		delete(sv.active, workflowID)
	}
	sv.mu.Unlock()

	if !ok {
		return
	}
	if aw.mon != nil {
		aw.mon.Stop()
	}
	log.WithFields(log.Fields{"workflow_id": workflowID}).Debug("Workflow cleaned up")
}

func (sv *Supervisor) handOffCompletion(ctx context.Context, aw *activeWorkflow, result *ExecResult, actual time.Duration) {
	if sv.recorder == nil {
		return
	}

	planned := len(aw.suggestion.Steps)
	autonomous := 0.0
	if result.StepsCompleted > 0 {
		autonomous = float64(aw.decisions.Len()) / float64(result.StepsCompleted)
		if autonomous > 1 {
			autonomous = 1
		}
	}

	duration := result.Duration
	if duration <= 0 {
		duration = actual
	}

	rec := &memory.CompletionRecord{
		WorkflowID:         aw.id,
		SuggestionID:       aw.suggestion.ID,
		ProjectContext:     aw.suggestion.ProjectContext,
		StepsCompleted:     result.StepsCompleted,
		StepsPlanned:       planned,
		ActualDuration:     duration,
		EstimatedDuration:  aw.suggestion.TotalEstimatedDuration,
		SuccessRate:        result.SuccessRate,
		UserModifications:  result.UserModifications,
		LoadSamples:        result.LoadSamples,
		AutonomousFraction: autonomous,
		ExecutionStrategy:  result.Strategy,
		CompletedAt:        time.Now(),
	}

	if err := sv.recorder.RecordWorkflowCompletion(ctx, rec); err != nil {
		log.WithFields(log.Fields{"workflow_id": aw.id}).Warnf("Completion hand-off failed: %v", err)
	}
}

func (sv *Supervisor) checkCapacity(aw *activeWorkflow) {
	if sv.predictor == nil {
		return
	}

	pred, err := sv.predictor.PredictCapacity(context.Background(), time.Now(), cognitive.LoadMedium, cognitive.SwitchingLow)
	if err != nil {
		log.WithFields(log.Fields{"workflow_id": aw.id}).Debugf("Capacity check failed: %v", err)
		return
	}
	if pred.Capacity < lowCapacityWarning {
		log.WithFields(log.Fields{
			"workflow_id": aw.id,
			"capacity":    fmt.Sprintf("%.2f", pred.Capacity),
		}).Warn("Cognitive capacity low; consider pausing the workflow")
	}
}

func (sv *Supervisor) remindBreak(aw *activeWorkflow) {
	log.WithFields(log.Fields{
		"workflow_id": aw.id,
		"duration":    sv.cogCfg.MicroBreakDuration,
	}).Info("Break reminder: step away briefly before the next step")
}
