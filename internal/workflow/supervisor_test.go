package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardai/steward/internal/autopilot"
	"github.com/stewardai/steward/internal/cognitive"
	"github.com/stewardai/steward/internal/config"
	"github.com/stewardai/steward/internal/memory"
	"github.com/stewardai/steward/internal/routing"
	"github.com/stewardai/steward/internal/suggest"
)

// fakeEngine is a scriptable orchestration engine.
type fakeEngine struct {
	createResult *CreateResult
	createErr    error

	execResult *ExecResult
	execErr    error
	execFn     func(opts ExecOptions) // inspects injected options

	createCalls int
	execCalls   atomic.Int32
}

func (f *fakeEngine) CreateWorkflow(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	f.createCalls++
	return f.createResult, f.createErr
}

func (f *fakeEngine) ExecuteWorkflow(ctx context.Context, workflowID string, opts ExecOptions) (*ExecResult, error) {
	f.execCalls.Add(1)
	if f.execFn != nil {
		f.execFn(opts)
	}
	return f.execResult, f.execErr
}

// fakeRecorder captures completion hand-offs.
type fakeRecorder struct {
	records []*memory.CompletionRecord
	err     error
}

func (f *fakeRecorder) RecordWorkflowCompletion(ctx context.Context, rec *memory.CompletionRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeRecorder) RoutingHistory(ctx context.Context, project, model string) ([]memory.HistoryEntry, error) {
	return nil, nil
}

// tickingPredictor counts capacity predictions.
type tickingPredictor struct {
	capacity float64
	calls    atomic.Int64
}

func (p *tickingPredictor) PredictCapacity(ctx context.Context, at time.Time, complexity cognitive.Load, switching cognitive.SwitchingSeverity) (*cognitive.CapacityPrediction, error) {
	p.calls.Add(1)
	return &cognitive.CapacityPrediction{Capacity: p.capacity, Confidence: 0.8, At: at}, nil
}

func (p *tickingPredictor) PredictHyperfocus(ctx context.Context, at time.Time) (*cognitive.HyperfocusPrediction, error) {
	return &cognitive.HyperfocusPrediction{}, nil
}

func acceptedSuggestion() *suggest.Suggestion {
	return &suggest.Suggestion{
		ID:             "sug-1",
		Name:           "plan",
		ProjectContext: "proj",
		Steps: []suggest.Step{
			{Phase: "Planning", EstimatedDuration: 20 * time.Minute},
			{Phase: "Implementation", EstimatedDuration: 50 * time.Minute},
			{Phase: "Review", EstimatedDuration: 20 * time.Minute},
		},
		TotalEstimatedDuration: 90 * time.Minute,
	}
}

func workflowConfig() config.WorkflowConfig {
	return config.WorkflowConfig{
		CognitiveMonitoring:   true,
		AutonomousRouting:     true,
		CapacityCheckInterval: 15 * time.Minute,
	}
}

func cognitiveConfig() config.CognitiveConfig {
	return config.CognitiveConfig{
		MicroBreakInterval: 25 * time.Minute,
		MicroBreakDuration: 5 * time.Minute,
	}
}

func newTestGate(t *testing.T) *autopilot.Gate {
	t.Helper()
	return autopilot.NewGate(config.AutopilotConfig{Enabled: true, ConfidenceThreshold: 0.9}, nil, nil, nil)
}

func TestSupervisor_CreateAndExecute(t *testing.T) {
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 3, SuccessRate: 1.0, Strategy: "sequential"},
	}
	recorder := &fakeRecorder{}
	sv := NewSupervisor(engine, recorder, nil, nil, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)
	assert.Equal(t, "wf-1", id)
	assert.True(t, sv.IsActive(id))
	assert.Equal(t, 1, sv.ActiveCount())

	result, err := sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	// Execution deregisters the workflow on every path.
	assert.False(t, sv.IsActive(id))
	assert.Equal(t, 0, sv.ActiveCount())

	// Completion handed off to memory.
	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, "wf-1", rec.WorkflowID)
	assert.Equal(t, "sug-1", rec.SuggestionID)
	assert.Equal(t, 3, rec.StepsCompleted)
	assert.Equal(t, 3, rec.StepsPlanned)
	assert.Equal(t, 90*time.Minute, rec.EstimatedDuration)
	assert.Equal(t, "sequential", rec.ExecutionStrategy)
}

func TestSupervisor_CreateNilSuggestion(t *testing.T) {
	sv := NewSupervisor(&fakeEngine{}, nil, nil, nil, workflowConfig(), cognitiveConfig())

	_, err := sv.Create(context.Background(), nil, routing.UserProfile{})
	assert.Error(t, err)
}

func TestSupervisor_CreateEngineFailure(t *testing.T) {
	engine := &fakeEngine{createErr: errors.New("engine down")}
	sv := NewSupervisor(engine, nil, nil, nil, workflowConfig(), cognitiveConfig())

	_, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.Error(t, err)
	assert.Equal(t, 0, sv.ActiveCount(), "failed creation registers nothing")
}

func TestSupervisor_CreateRejected(t *testing.T) {
	engine := &fakeEngine{createResult: &CreateResult{Success: false}}
	sv := NewSupervisor(engine, nil, nil, nil, workflowConfig(), cognitiveConfig())

	_, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	assert.ErrorIs(t, err, ErrCreateRejected)
}

func TestSupervisor_ExecuteUnknownWorkflow(t *testing.T) {
	sv := NewSupervisor(&fakeEngine{}, nil, nil, nil, workflowConfig(), cognitiveConfig())

	_, err := sv.Execute(context.Background(), "missing", ExecOptions{})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestSupervisor_ExecuteFailureStillCleansUp(t *testing.T) {
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execErr:      errors.New("step 2 crashed"),
	}
	recorder := &fakeRecorder{}
	sv := NewSupervisor(engine, recorder, nil, nil, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.Error(t, err)

	assert.False(t, sv.IsActive(id), "failed execution still deregisters")
	assert.Empty(t, recorder.records, "no completion hand-off on failure")
}

func TestSupervisor_MonitoringTicksStopAfterExecute(t *testing.T) {
	predictor := &tickingPredictor{capacity: 0.9}
	cfg := workflowConfig()
	cfg.CapacityCheckInterval = 5 * time.Millisecond
	cogCfg := cognitiveConfig()
	cogCfg.MicroBreakInterval = 5 * time.Millisecond

	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
		execFn:       func(ExecOptions) { time.Sleep(30 * time.Millisecond) },
	}
	sv := NewSupervisor(engine, nil, predictor, nil, cfg, cogCfg)

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	assert.Greater(t, predictor.calls.Load(), int64(0), "capacity checks ran during execution")

	// After Execute returns, the timers are cancelled: the count settles.
	settled := predictor.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, predictor.calls.Load(), "no capacity check after execution finished")
}

func TestSupervisor_MonitoringDisabled(t *testing.T) {
	predictor := &tickingPredictor{capacity: 0.9}
	cfg := workflowConfig()
	cfg.CognitiveMonitoring = false
	cfg.CapacityCheckInterval = time.Millisecond

	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
		execFn:       func(ExecOptions) { time.Sleep(20 * time.Millisecond) },
	}
	sv := NewSupervisor(engine, nil, predictor, nil, cfg, cognitiveConfig())

	id, _ := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	_, err := sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	assert.Zero(t, predictor.calls.Load(), "monitoring disabled means no capacity checks")
}

func TestSupervisor_AutonomousRoutingInjection(t *testing.T) {
	g := newTestGate(t)

	var seen *RoutingConfig
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
		execFn:       func(opts ExecOptions) { seen = opts.Routing },
	}
	sv := NewSupervisor(engine, nil, nil, g, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{EnableAutopilot: true})
	require.NoError(t, err)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	require.NotNil(t, seen, "routing config injected when autonomy is enabled")
	assert.Equal(t, g, seen.Gate)
	assert.Equal(t, g.Threshold(), seen.Threshold)
	assert.NotNil(t, seen.OnDecision)
}

func TestSupervisor_AutonomousRoutingRequiresOptIn(t *testing.T) {
	g := newTestGate(t)

	var seen *RoutingConfig
	set := false
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
		execFn: func(opts ExecOptions) {
			seen = opts.Routing
			set = true
		},
	}
	sv := NewSupervisor(engine, nil, nil, g, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{EnableAutopilot: false})
	require.NoError(t, err)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	require.True(t, set)
	assert.Nil(t, seen, "no routing config without the user's opt-in")
}

func TestSupervisor_AutonomousFraction(t *testing.T) {
	g := newTestGate(t)

	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 4, SuccessRate: 1.0},
		execFn: func(opts ExecOptions) {
			// The engine reports two autonomous decisions mid-run.
			opts.Routing.OnDecision(&autopilot.LogEntry{ID: "d-1"})
			opts.Routing.OnDecision(&autopilot.LogEntry{ID: "d-2"})
		},
	}
	recorder := &fakeRecorder{}
	sv := NewSupervisor(engine, recorder, nil, g, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{EnableAutopilot: true})
	require.NoError(t, err)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	assert.InDelta(t, 0.5, recorder.records[0].AutonomousFraction, 1e-9, "2 of 4 steps routed autonomously")
}

func TestSupervisor_DecisionsVisibleMidRun(t *testing.T) {
	g := newTestGate(t)

	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
	}
	sv := NewSupervisor(engine, nil, nil, g, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{EnableAutopilot: true})
	require.NoError(t, err)

	engine.execFn = func(opts ExecOptions) {
		opts.Routing.OnDecision(&autopilot.LogEntry{ID: "d-1"})
		entries := sv.Decisions(id)
		require.Len(t, entries, 1)
		assert.Equal(t, "d-1", entries[0].ID)
	}

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	require.NoError(t, err)

	assert.Nil(t, sv.Decisions(id), "decisions are gone once the workflow is deregistered")
}

func TestSupervisor_HandOffFailureDoesNotFailExecution(t *testing.T) {
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
	}
	recorder := &fakeRecorder{err: errors.New("store offline")}
	sv := NewSupervisor(engine, recorder, nil, nil, workflowConfig(), cognitiveConfig())

	id, _ := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	result, err := sv.Execute(context.Background(), id, ExecOptions{})

	require.NoError(t, err, "memory failures never fail the workflow")
	assert.True(t, result.Success)
}

func TestSupervisor_SecondExecuteRejected(t *testing.T) {
	// Two callers racing to execute the same workflow: the second must be
	// turned away, not silently replace the first one's monitor.
	release := make(chan struct{})
	engine := &fakeEngine{
		createResult: &CreateResult{Success: true, WorkflowID: "wf-1"},
		execResult:   &ExecResult{Success: true, StepsCompleted: 1},
		execFn:       func(ExecOptions) { <-release },
	}
	sv := NewSupervisor(engine, nil, nil, nil, workflowConfig(), cognitiveConfig())

	id, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := sv.Execute(context.Background(), id, ExecOptions{})
		firstDone <- err
	}()

	// Wait until the first Execute is inside the engine.
	require.Eventually(t, func() bool { return engine.execCalls.Load() == 1 }, time.Second, time.Millisecond)

	_, err = sv.Execute(context.Background(), id, ExecOptions{})
	assert.ErrorIs(t, err, ErrAlreadyExecuting)

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, int32(1), engine.execCalls.Load(), "the engine ran the workflow exactly once")
	assert.False(t, sv.IsActive(id))
}

func TestSupervisor_CleanupIdempotent(t *testing.T) {
	engine := &fakeEngine{createResult: &CreateResult{Success: true, WorkflowID: "wf-1"}}
	sv := NewSupervisor(engine, nil, nil, nil, workflowConfig(), cognitiveConfig())

	id, _ := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})

	sv.Cleanup(id)
	assert.False(t, sv.IsActive(id))
	sv.Cleanup(id) // no-op
	sv.Cleanup("never-existed")
}

func TestSupervisor_Shutdown(t *testing.T) {
	engine := &fakeEngine{createResult: &CreateResult{Success: true, WorkflowID: "wf-1"}}
	sv := NewSupervisor(engine, nil, nil, nil, workflowConfig(), cognitiveConfig())

	_, err := sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)

	engine.createResult = &CreateResult{Success: true, WorkflowID: "wf-2"}
	_, err = sv.Create(context.Background(), acceptedSuggestion(), routing.UserProfile{})
	require.NoError(t, err)

	require.Equal(t, 2, sv.ActiveCount())
	sv.Shutdown()
	assert.Equal(t, 0, sv.ActiveCount())
}

func TestMonitor_StopIdempotent(t *testing.T) {
	var ticks atomic.Int64
	m := startMonitor(2*time.Millisecond, 0, func() { ticks.Add(1) }, nil)

	time.Sleep(10 * time.Millisecond)
	m.Stop()
	m.Stop() // safe to call twice

	settled := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load(), "no tick after Stop returns")
}

func TestMonitor_ZeroIntervalsSkipTimers(t *testing.T) {
	m := startMonitor(0, 0, func() { t.Fatal("should not tick") }, func() { t.Fatal("should not tick") })
	m.Stop()
}
