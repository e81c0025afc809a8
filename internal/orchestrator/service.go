// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package orchestrator wires the autonomous decision gate, the suggestion
// pipeline, and the workflow supervisor into one service. It manages their
// lifecycle and degrades gracefully when collaborators are missing or fail
// to initialize.
package orchestrator

import (
	"context"
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
	"github.com/stewardai/steward/internal/workflow"
)

// Collaborators are the external services steward consumes. Any of them may
// be nil; the corresponding feature then runs in fallback mode.
type Collaborators struct {
	Router             routing.Router
	SequencePredictor  suggest.SequencePredictor
	MemorySuggester    suggest.MemorySuggester
	CognitivePredictor cognitive.Predictor
	Engine             workflow.Engine
	Recorder           memory.Recorder
}

// SuggestOptions tunes one suggestion request.
type SuggestOptions struct {
	// Progress is how far along the current workflow is, in [0,1].
	Progress float64

	// Switching classifies the current context-switching severity.
	// Empty defaults to medium.
	Switching cognitive.SwitchingSeverity

	// Limit caps the ranked suggestions returned. 0 uses the configured
	// maximum.
	Limit int
}

// SuggestResult is the ranked outcome of one suggestion request.
type SuggestResult struct {
	Suggestions []*suggest.Suggestion `json:"suggestions"`
	Cognitive   *cognitive.Context    `json:"cognitive"`
}

// maxPendingSuggestions bounds the suggest-to-accept registry. Once exceeded,
// the oldest unaccepted suggestions are evicted; a daemon serving suggestions
// for months must not accumulate plans nobody acted on.
const maxPendingSuggestions = 50

// Service is the top-level orchestrator.
type Service struct {
	cfg     *config.Config
	collabs Collaborators

	mu          sync.RWMutex
	initialized bool
	initErrors  []error

	gate       *autopilot.Gate
	policy     *autopilot.PolicyEngine
	aggregator *suggest.Aggregator
	optimizer  *suggest.Optimizer
	ranker     *suggest.Ranker
	supervisor *workflow.Supervisor

	// pending holds suggestions returned to the caller, so Accept can
	// resolve an id back to its plan. pendingOrder tracks insertion order
	// for eviction; the two stay in sync under mu.
	pending      map[string]*suggest.Suggestion
	pendingOrder []string
}

// New creates an uninitialized service.
func New(cfg *config.Config, collabs Collaborators) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		cfg:     cfg,
		collabs: collabs,
		pending: make(map[string]*suggest.Suggestion),
	}
}

// Initialize starts all subsystems. Individual failures are recorded and
// logged but do not abort startup: the service remains usable in fallback
// mode and Ready reports false.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.Info("Initializing steward orchestrator...")
	s.initErrors = nil

	// Autonomy policy rules.
	s.policy = autopilot.NewPolicyEngine(s.cfg.Autopilot.PolicyDir)
	if err := s.policy.LoadRules(); err != nil {
		log.Warnf("Failed to load autonomy policy rules: %v", err)
		s.initErrors = append(s.initErrors, fmt.Errorf("policy: %w", err))
	}
	if s.cfg.Autopilot.PolicyHotReload {
		if err := s.policy.StartWatching(); err != nil {
			log.Warnf("Failed to watch policy directory: %v", err)
			s.initErrors = append(s.initErrors, fmt.Errorf("policy watcher: %w", err))
		}
	}

	// Autonomous decision gate.
	if s.collabs.Router != nil {
		var qualifier autopilot.Qualifier
		if s.collabs.Recorder != nil {
			qualifier = autopilot.NewHistoryQualifier(s.collabs.Recorder)
		}
		s.gate = autopilot.NewGate(s.cfg.Autopilot, s.collabs.Router, qualifier, s.policy)
	} else {
		log.Warn("No routing collaborator; autonomous gate disabled")
		s.initErrors = append(s.initErrors, fmt.Errorf("gate: no router collaborator"))
	}

	// Suggestion pipeline.
	s.aggregator = suggest.NewAggregator(s.collabs.SequencePredictor, s.collabs.MemorySuggester)
	s.optimizer = suggest.NewOptimizer()
	s.ranker = suggest.NewRanker()

	// Workflow supervisor.
	if s.collabs.Engine != nil {
		s.supervisor = workflow.NewSupervisor(
			s.collabs.Engine, s.collabs.Recorder, s.collabs.CognitivePredictor,
			s.gate, s.cfg.Workflow, s.cfg.Cognitive,
		)
	} else {
		log.Warn("No workflow engine collaborator; supervisor disabled")
		s.initErrors = append(s.initErrors, fmt.Errorf("supervisor: no engine collaborator"))
	}

	s.initialized = true
	if len(s.initErrors) > 0 {
		log.Warnf("Orchestrator initialized in degraded mode (%d subsystem failures)", len(s.initErrors))
	} else {
		log.Info("Orchestrator initialized")
	}
	return nil
}

// Ready reports whether every subsystem initialized cleanly. A degraded
// service still answers requests in fallback mode.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized && len(s.initErrors) == 0
}

// InitErrors returns the subsystem failures recorded during Initialize.
func (s *Service) InitErrors() []error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]error, len(s.initErrors))
	copy(out, s.initErrors)
	return out
}

// Gate returns the autonomous decision gate, or nil in degraded mode.
func (s *Service) Gate() *autopilot.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gate
}

// Supervisor returns the workflow supervisor, or nil in degraded mode.
func (s *Service) Supervisor() *workflow.Supervisor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.supervisor
}

// Suggest aggregates workflow proposals and the cognitive snapshot
// concurrently, optimizes each proposal against the snapshot, and returns
// the ranked top suggestions.
func (s *Service) Suggest(ctx context.Context, input routing.TaskInput, profile routing.UserProfile, opts SuggestOptions) (*SuggestResult, error) {
	s.mu.RLock()
	aggregator, optimizer, ranker := s.aggregator, s.optimizer, s.ranker
	s.mu.RUnlock()
	if aggregator == nil {
		return nil, fmt.Errorf("orchestrator: not initialized")
	}

	switching := opts.Switching
	if switching == "" {
		switching = cognitive.SwitchingMedium
	}

	project := input.ProjectHint
	if project == "" {
		project = routing.UnknownProject
	}

	var (
		wg          sync.WaitGroup
		suggestions []*suggest.Suggestion
		cogctx      *cognitive.Context
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		suggestions = aggregator.Aggregate(ctx, input.Task, project, suggest.Options{
			Progress: opts.Progress,
			Limit:    opts.Limit,
		})
	}()
	go func() {
		defer wg.Done()
		cogctx = cognitive.Snapshot(ctx, s.collabs.CognitivePredictor, time.Now(),
			profile.AccommodationsActive, s.breakPreferences(profile), switching)
	}()
	wg.Wait()

	for _, sg := range suggestions {
		optimizer.Optimize(sg, cogctx)
	}

	ranked := ranker.Rank(suggestions, cogctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = s.cfg.Workflow.MaxSuggestions
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	s.mu.Lock()
	for _, sg := range ranked {
		if _, ok := s.pending[sg.ID]; !ok {
			s.pendingOrder = append(s.pendingOrder, sg.ID)
		}
		s.pending[sg.ID] = sg
	}
	for len(s.pendingOrder) > maxPendingSuggestions {
		oldest := s.pendingOrder[0]
		s.pendingOrder = s.pendingOrder[1:]
		delete(s.pending, oldest)
	}
	s.mu.Unlock()

	return &SuggestResult{Suggestions: ranked, Cognitive: cogctx}, nil
}

// Accept materializes a previously suggested plan into a workflow. A
// successfully accepted suggestion is removed from the pending registry; to
// run the same plan again, request a fresh suggestion.
func (s *Service) Accept(ctx context.Context, suggestionID string, profile routing.UserProfile) (string, error) {
	s.mu.RLock()
	sg, ok := s.pending[suggestionID]
	supervisor := s.supervisor
	s.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("orchestrator: unknown suggestion %s", suggestionID)
	}
	if supervisor == nil {
		return "", fmt.Errorf("orchestrator: workflow supervisor unavailable")
	}

	workflowID, err := supervisor.Create(ctx, sg, profile)
	if err != nil {
		return "", err
	}
	s.forget(suggestionID)
	return workflowID, nil
}

func (s *Service) forget(suggestionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, suggestionID)
	for i, id := range s.pendingOrder {
		if id == suggestionID {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// Run executes an accepted workflow under supervision.
func (s *Service) Run(ctx context.Context, workflowID string, opts workflow.ExecOptions) (*workflow.ExecResult, error) {
	s.mu.RLock()
	supervisor := s.supervisor
	s.mu.RUnlock()
	if supervisor == nil {
		return nil, fmt.Errorf("orchestrator: workflow supervisor unavailable")
	}
	return supervisor.Execute(ctx, workflowID, opts)
}

// Shutdown stops subsystems in reverse order of initialization.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil
	}

	log.Info("Shutting down steward orchestrator...")

	if s.supervisor != nil {
		s.supervisor.Shutdown()
	}
	if s.policy != nil {
		s.policy.StopWatching()
	}

	s.initialized = false
	log.Info("Orchestrator shut down")
	return nil
}

func (s *Service) breakPreferences(profile routing.UserProfile) cognitive.BreakPreferences {
	prefs := cognitive.BreakPreferences{
		MicroInterval:  s.cfg.Cognitive.MicroBreakInterval,
		MicroDuration:  s.cfg.Cognitive.MicroBreakDuration,
		ActiveInterval: s.cfg.Cognitive.ActiveBreakInterval,
		ActiveDuration: s.cfg.Cognitive.ActiveBreakDuration,
	}
	if profile.MicroBreakInterval > 0 {
		prefs.MicroInterval = profile.MicroBreakInterval
	}
	return prefs
}
