// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stewardai/steward/internal/config"
	"github.com/stewardai/steward/internal/routing"
)

// MaxContextSwitchPenalty is the fixed ceiling on the context-switching
// penalty a baseline decision may carry and still run unattended.
const MaxContextSwitchPenalty = 0.20

// OverrideRating is the rating applied to the pattern when the user manually
// overrides an autonomous decision.
const OverrideRating = 0.3

// Sentinel errors surfaced to callers.
var (
	ErrDecisionNotFound = errors.New("autopilot: decision not found")
	ErrInvalidThreshold = errors.New("autopilot: confidence threshold outside valid range")
)

// Trigger is the coded reason a decision was not automated. Callers use it to
// explain the refusal to the user.
type Trigger string

const (
	TriggerAutopilotDisabled    Trigger = "autopilot_disabled"
	TriggerRouterUnavailable    Trigger = "router_unavailable"
	TriggerNewProjectType       Trigger = "new_project_type"
	TriggerLowConfidence        Trigger = "low_confidence"
	TriggerContextSwitchingHigh Trigger = "context_switching_high"
	TriggerNewPattern           Trigger = "new_pattern"
	TriggerPatternDisabled      Trigger = "pattern_disabled"
	TriggerPatternUnstable      Trigger = "pattern_unstable"
	TriggerPolicyDenied         Trigger = "policy_denied"
	TriggerUserDisabled         Trigger = "user_disabled"
)

// Outcome is the result of one Attempt. Either Autonomous is true and
// Decision/Confidence/Pattern are set, or it carries a Reason and Trigger
// explaining the refusal.
type Outcome struct {
	Autonomous bool `json:"autonomous"`

	// Refusal fields.
	Reason  string  `json:"reason,omitempty"`
	Trigger Trigger `json:"trigger,omitempty"`

	// Success fields.
	Decision   *routing.Decision `json:"decision,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Pattern    *Pattern          `json:"pattern,omitempty"`
	LogEntryID string            `json:"log_entry_id,omitempty"`
}

// Gate decides whether a single proposed routing decision may execute without
// user confirmation. All pattern learning flows through it.
type Gate struct {
	router    routing.Router
	store     *PatternStore
	log       *DecisionLog
	qualifier Qualifier
	policy    *PolicyEngine

	enabled          bool
	requireStability bool

	// mu guards threshold, which is tunable at runtime while attempts run.
	mu        sync.RWMutex
	threshold float64
}

// NewGate creates a gate from configuration. qualifier and policy may be nil;
// a nil policy engine means no policy rules apply.
func NewGate(cfg config.AutopilotConfig, router routing.Router, qualifier Qualifier, policy *PolicyEngine) *Gate {
	return &Gate{
		router:           router,
		store:            NewPatternStore(),
		log:              NewDecisionLog(MaxLogEntries),
		qualifier:        qualifier,
		policy:           policy,
		enabled:          cfg.Enabled,
		threshold:        cfg.ConfidenceThreshold,
		requireStability: cfg.RequireStability,
	}
}

// Store exposes the pattern store, primarily for the orchestrator and tests.
func (g *Gate) Store() *PatternStore { return g.store }

// Log exposes the bounded decision log.
func (g *Gate) Log() *DecisionLog { return g.log }

// Threshold returns the current confidence threshold.
func (g *Gate) Threshold() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold
}

// SetThreshold tunes the confidence threshold. Values outside
// [0.70, 0.99] are rejected before any state change.
func (g *Gate) SetThreshold(v float64) error {
	if v < config.MinConfidenceThreshold || v > config.MaxConfidenceThreshold {
		return fmt.Errorf("%w: %.2f", ErrInvalidThreshold, v)
	}
	g.mu.Lock()
	g.threshold = v
	g.mu.Unlock()
	return nil
}

// Attempt gates one task for unattended execution. The ordered checks
// short-circuit: the returned trigger is always the first failing check.
func (g *Gate) Attempt(ctx context.Context, input routing.TaskInput, profile routing.UserProfile, opts routing.Options) *Outcome {
	started := time.Now()

	// 1. Global autopilot flag.
	if !g.enabled {
		return &Outcome{Reason: "autopilot disabled", Trigger: TriggerAutopilotDisabled}
	}

	// 2. Baseline decision with a resolvable project context.
	decision, err := g.router.MakeDecision(ctx, input, profile, opts)
	if err != nil {
		log.Warnf("Baseline router unavailable: %v", err)
		return &Outcome{Reason: "baseline router unavailable", Trigger: TriggerRouterUnavailable}
	}
	if decision.ProjectContext == "" || decision.ProjectContext == routing.UnknownProject {
		return &Outcome{Reason: "project context could not be resolved", Trigger: TriggerNewProjectType}
	}

	// 3. Baseline confidence against the threshold.
	threshold := g.Threshold()
	if decision.Confidence < threshold {
		return &Outcome{
			Reason:  fmt.Sprintf("decision confidence %.2f below threshold %.2f", decision.Confidence, threshold),
			Trigger: TriggerLowConfidence,
		}
	}

	// 4. Context-switching penalty ceiling.
	if decision.ContextSwitchPenalty > MaxContextSwitchPenalty {
		return &Outcome{
			Reason:  fmt.Sprintf("context-switching penalty %.2f exceeds ceiling %.2f", decision.ContextSwitchPenalty, MaxContextSwitchPenalty),
			Trigger: TriggerContextSwitchingHigh,
		}
	}

	// 5. A learned, still-enabled pattern must exist for (project, model).
	key := PatternKey{Project: decision.ProjectContext, Model: decision.SelectedModel}
	pattern, ok := g.store.Get(key)
	if !ok {
		return &Outcome{
			Reason:  fmt.Sprintf("no learned pattern for %s/%s", key.Project, key.Model),
			Trigger: TriggerNewPattern,
		}
	}
	if !pattern.Enabled {
		return &Outcome{
			Reason:  fmt.Sprintf("pattern for %s/%s disabled after low success rate", key.Project, key.Model),
			Trigger: TriggerPatternDisabled,
		}
	}

	// 6. Stability, when required by configuration or policy.
	verdict := PolicyVerdict{}
	if g.policy != nil {
		verdict = g.policy.Evaluate(PolicyContext{
			Project:       decision.ProjectContext,
			Model:         decision.SelectedModel,
			Confidence:    decision.Confidence,
			SwitchPenalty: decision.ContextSwitchPenalty,
			Hour:          started.Hour(),
			DayOfWeek:     started.Weekday().String(),
		})
	}
	if (g.requireStability || verdict.RequireStability) && !pattern.Stable {
		return &Outcome{
			Reason:  fmt.Sprintf("pattern for %s/%s not yet stable", key.Project, key.Model),
			Trigger: TriggerPatternUnstable,
		}
	}
	if verdict.Deny {
		return &Outcome{
			Reason:  fmt.Sprintf("denied by policy rule(s): %v", verdict.MatchedRules),
			Trigger: TriggerPolicyDenied,
		}
	}

	// 7. The user's own autonomy opt-in.
	if !profile.EnableAutopilot {
		return &Outcome{Reason: "user has not opted in to autonomous routing", Trigger: TriggerUserDisabled}
	}

	// All checks passed: execute.
	confidence := decision.Confidence
	if pattern.Confidence < confidence {
		confidence = pattern.Confidence
	}

	wrapped := *decision
	wrapped.Reason = fmt.Sprintf("Autonomous routing: %s (pattern confidence %.2f, used %d times)",
		decision.Reason, pattern.Confidence, pattern.UsageCount)

	updated := g.store.Update(key, func(p *Pattern) {
		p.UsageCount++
		p.LastUsed = started
	})

	entry := &LogEntry{
		ID:                 uuid.NewString(),
		Timestamp:          started,
		Task:               input.Task,
		ProjectContext:     decision.ProjectContext,
		SelectedModel:      decision.SelectedModel,
		DecisionConfidence: confidence,
		PatternConfidence:  pattern.Confidence,
		Reason:             wrapped.Reason,
		ExecutionTime:      time.Since(started),
	}
	g.log.Append(entry)

	log.WithFields(log.Fields{
		"project":    decision.ProjectContext,
		"model":      decision.SelectedModel,
		"confidence": fmt.Sprintf("%.2f", confidence),
	}).Info("Autonomous routing decision executed")

	return &Outcome{
		Autonomous: true,
		Decision:   &wrapped,
		Confidence: confidence,
		Pattern:    &updated,
		LogEntryID: entry.ID,
	}
}

// RecordFeedback applies user feedback to a logged autonomous decision and
// the pattern behind it. Success nudges confidence up; failure erodes it
// faster, and a pattern whose success rate falls below MinSuccessRate is
// disabled for future autonomy.
func (g *Gate) RecordFeedback(ctx context.Context, decisionID string, fb routing.Feedback) error {
	entry, ok := g.log.Get(decisionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDecisionNotFound, decisionID)
	}

	feedback := fb
	g.log.Mutate(decisionID, func(e *LogEntry) {
		e.UserReviewed = true
		e.UserFeedback = &feedback
	})

	key := PatternKey{Project: entry.ProjectContext, Model: entry.SelectedModel}
	g.applyFeedbackToPattern(key, fb.Success)

	// Forward to the routing collaborator so its own learning sees it too.
	decision := &routing.Decision{
		ID:             decisionID,
		Timestamp:      entry.Timestamp,
		ProjectContext: entry.ProjectContext,
		SelectedModel:  entry.SelectedModel,
		Confidence:     entry.DecisionConfidence,
		Reason:         entry.Reason,
	}
	if err := g.router.RecordFeedback(ctx, decision, fb); err != nil {
		log.Warnf("Failed to forward feedback to router: %v", err)
	}

	return nil
}

// Override records a manual override of an autonomous decision and applies
// the failure branch of the feedback update against the original pattern, so
// overrides measurably erode confidence in it.
func (g *Gate) Override(ctx context.Context, decisionID, newModel string) error {
	entry, ok := g.log.Get(decisionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDecisionNotFound, decisionID)
	}

	g.log.Mutate(decisionID, func(e *LogEntry) {
		e.UserReviewed = true
		e.UserOverride = newModel
		e.UserFeedback = &routing.Feedback{Success: false, Rating: OverrideRating, Comments: "manual override"}
	})

	key := PatternKey{Project: entry.ProjectContext, Model: entry.SelectedModel}
	g.applyFeedbackToPattern(key, false)

	log.WithFields(log.Fields{
		"project":   entry.ProjectContext,
		"old_model": entry.SelectedModel,
		"new_model": newModel,
	}).Info("Autonomous decision overridden")

	return nil
}

// QualifyPattern checks whether (project, model) has earned a pattern store
// entry and creates one when it has. Returns whether a pattern now exists.
func (g *Gate) QualifyPattern(ctx context.Context, project, model string) (bool, error) {
	key := PatternKey{Project: project, Model: model}
	if _, ok := g.store.Get(key); ok {
		return true, nil
	}
	if g.qualifier == nil {
		return false, nil
	}

	stats, err := g.qualifier.EstimateStats(ctx, project, model)
	if err != nil {
		return false, fmt.Errorf("autopilot: stats estimation failed: %w", err)
	}

	if stats.Frequency < PatternFloor || stats.Count < MinSampleSize || stats.SuccessRate < MinSuccessRate {
		return false, nil
	}

	g.store.Update(key, func(p *Pattern) {
		p.Confidence = stats.Confidence
		p.SuccessRate = stats.SuccessRate
		p.UsageCount = stats.Count
		p.Stable = stats.Stable
		p.Enabled = true
	})

	log.WithFields(log.Fields{
		"project":      project,
		"model":        model,
		"success_rate": fmt.Sprintf("%.2f", stats.SuccessRate),
		"samples":      stats.Count,
	}).Info("Pattern qualified for autonomous routing")

	return true, nil
}

func (g *Gate) applyFeedbackToPattern(key PatternKey, success bool) {
	now := time.Now()
	g.store.Update(key, func(p *Pattern) {
		p.LastFeedback = now
		if success {
			p.Confidence += successConfidenceDelta
			p.SuccessRate += successRateDelta
		} else {
			p.Confidence -= failureConfidenceDelta
			p.SuccessRate -= failureRateDelta
		}
	})
}
