// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package suggest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/stewardai/steward/internal/cognitive"
)

// Aggregator collects workflow proposals from the sequence predictor and the
// memory-backed suggester. It never fails hard: whatever source succeeds
// contributes, and when nothing does, a fixed fallback plan stands in.
type Aggregator struct {
	predictor SequencePredictor
	memory    MemorySuggester
}

// NewAggregator creates an aggregator. Either source may be nil.
func NewAggregator(predictor SequencePredictor, memory MemorySuggester) *Aggregator {
	return &Aggregator{predictor: predictor, memory: memory}
}

// Aggregate invokes both sources concurrently and normalizes their output
// into tagged suggestions. When both sources fail or return nothing, the
// fixed three-phase fallback plan is returned.
func (a *Aggregator) Aggregate(ctx context.Context, task, project string, opts Options) []*Suggestion {
	var (
		wg        sync.WaitGroup
		predicted *Suggestion
		memResult *MemoryResult
	)

	if a.predictor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := a.predictor.GenerateSuggestion(ctx, project, opts.Progress)
			if err != nil {
				log.Warnf("Sequence predictor failed: %v", err)
				return
			}
			predicted = s
		}()
	}

	if a.memory != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := a.memory.Suggestions(ctx, project, task, opts)
			if err != nil {
				log.Warnf("Memory suggester failed: %v", err)
				return
			}
			memResult = r
		}()
	}

	wg.Wait()

	var out []*Suggestion

	if memResult != nil && memResult.Success {
		suggestions := memResult.Suggestions
		if opts.Limit > 0 && len(suggestions) > opts.Limit {
			suggestions = suggestions[:opts.Limit]
		}
		for _, s := range suggestions {
			if s == nil || len(s.Steps) == 0 {
				continue
			}
			normalize(s, project)
			s.Source = SourceWorkflowMemory
			if s.BasedOnCompletions == 0 {
				s.BasedOnCompletions = memResult.BasedOnCompletions
			}
			out = append(out, s)
		}
	}

	if predicted != nil && len(predicted.Steps) > 0 {
		normalize(predicted, project)
		predicted.Source = SourceSequencePredictor
		out = append(out, predicted)
	}

	if len(out) == 0 {
		log.Debug("No suggestion source produced a plan, using fallback")
		out = append(out, FallbackSuggestion(project))
	}

	return out
}

// FallbackSuggestion returns the fixed three-phase plan used when no source
// produced anything: Planning → Implementation → Review.
func FallbackSuggestion(project string) *Suggestion {
	s := &Suggestion{
		ID:             uuid.NewString(),
		Name:           "Standard development workflow",
		ProjectContext: project,
		Source:         SourceFallbackEngine,
		Steps: []Step{
			{Phase: "Planning", EstimatedDuration: 20 * time.Minute, Load: cognitive.LoadMedium, Confidence: 0.7},
			{Phase: "Implementation", EstimatedDuration: 50 * time.Minute, Load: cognitive.LoadHigh, Confidence: 0.7},
			{Phase: "Review", EstimatedDuration: 20 * time.Minute, Load: cognitive.LoadMedium, Confidence: 0.7},
		},
	}
	s.TotalEstimatedDuration = totalDuration(s.Steps)
	return s
}

// normalize fills derived fields a source may have left empty. Step order is
// preserved exactly as produced by the source.
func normalize(s *Suggestion, project string) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.ProjectContext == "" {
		s.ProjectContext = project
	}
	if s.TotalEstimatedDuration == 0 {
		s.TotalEstimatedDuration = totalDuration(s.Steps)
	}
	for i := range s.Steps {
		if s.Steps[i].Load == "" {
			s.Steps[i].Load = cognitive.LoadMedium
		}
	}
}

func totalDuration(steps []Step) time.Duration {
	var total time.Duration
	for _, st := range steps {
		total += st.EstimatedDuration
	}
	return total
}
