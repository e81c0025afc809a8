// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package suggest

import (
	"fmt"
	"time"

	"github.com/stewardai/steward/internal/cognitive"
)

// Capacity thresholds used by the optimizer.
const (
	highCapacityThreshold = 0.8
	lowCapacityThreshold  = 0.6

	// longTaskDuration is the step length above which break insertion is
	// advised when accommodations are active.
	longTaskDuration = 90 * time.Minute
)

// morningAfternoonSlots is the fixed fallback timing for high-load steps when
// neither current capacity nor a predicted focus window favors them.
var morningAfternoonSlots = []string{"09:00-11:00", "14:00-16:00"}

// Optimizer annotates a suggestion's steps with timing hints, load-based
// advisories, and break recommendations derived from a cognitive snapshot.
// It never reorders or drops steps.
type Optimizer struct{}

// NewOptimizer creates an optimizer.
func NewOptimizer() *Optimizer {
	return &Optimizer{}
}

// Optimize annotates every step of s in place and attaches the
// workflow-level optimization summary. The input suggestion is returned.
func (o *Optimizer) Optimize(s *Suggestion, cogctx *cognitive.Context) *Suggestion {
	if s == nil {
		return nil
	}
	if cogctx == nil {
		cogctx = cognitive.DefaultContext(cognitive.BreakPreferences{})
	}

	accommodations := cogctx.AccommodationsActive
	hyperfocusAligned := false

	for i := range s.Steps {
		step := &s.Steps[i]

		step.Timing = o.timingFor(step, cogctx)
		if step.Timing.Preference == TimingNextFocusWindow {
			hyperfocusAligned = true
		}

		step.Advisories = step.Advisories[:0]
		if step.Load == cognitive.LoadHigh && cogctx.PredictedCapacity < lowCapacityThreshold {
			step.Advisories = append(step.Advisories, Advisory{
				Kind:    AdvisoryDeferHighLoad,
				Message: fmt.Sprintf("Predicted capacity %.2f is low for a high-load step; consider deferring '%s'", cogctx.PredictedCapacity, step.Phase),
			})
		}
		if accommodations && step.EstimatedDuration > longTaskDuration {
			step.Advisories = append(step.Advisories, Advisory{
				Kind:    AdvisoryBreakLongTask,
				Message: fmt.Sprintf("'%s' runs %s; split it with breaks every %s", step.Phase, step.EstimatedDuration, cogctx.Breaks.MicroInterval),
			})
		}
		if accommodations && step.ParallelEligible {
			step.Advisories = append(step.Advisories, Advisory{
				Kind:    AdvisoryParallelExecution,
				Message: fmt.Sprintf("'%s' can run alongside other steps; batching reduces restarts", step.Phase),
			})
		}
		if cogctx.Switching == cognitive.SwitchingHigh {
			step.Advisories = append(step.Advisories, Advisory{
				Kind:    AdvisoryMinimizeSwitching,
				Message: "Context-switching cost is high right now; finish this step before changing projects",
			})
		}
	}

	s.Optimization = &Optimization{
		HyperfocusAligned:     hyperfocusAligned,
		BreakRecommendations:  o.breakRecommendations(s, cogctx),
		AccommodationsApplied: accommodations,
		OptimizedAt:           time.Now(),
	}
	if hyperfocusAligned && cogctx.NextFocusWindow != nil {
		s.Optimization.HyperfocusNote = fmt.Sprintf("High-load work aligned with predicted focus window starting %s",
			cogctx.NextFocusWindow.Start.Format("15:04"))
	}
	if cogctx.Switching == cognitive.SwitchingHigh {
		s.Optimization.SwitchingNote = "Batch steps by project to minimize context switching"
	}

	return s
}

// timingFor picks the recommended timing window for one step.
// High-load steps prefer running now while capacity is high, then the next
// predicted focus window, then fixed morning/afternoon slots. Medium-load
// steps are flexible; low-load steps can run any time.
func (o *Optimizer) timingFor(step *Step, cogctx *cognitive.Context) *TimingHint {
	switch step.Load {
	case cognitive.LoadHigh:
		if cogctx.PredictedCapacity > highCapacityThreshold {
			return &TimingHint{
				Preference: TimingNow,
				Note:       fmt.Sprintf("Current capacity %.2f supports high-load work", cogctx.PredictedCapacity),
			}
		}
		if cogctx.NextFocusWindow != nil {
			return &TimingHint{
				Preference: TimingNextFocusWindow,
				Window:     cogctx.NextFocusWindow,
				Note:       "Schedule inside the next predicted focus window",
			}
		}
		return &TimingHint{
			Preference: TimingFixedSlots,
			Slots:      morningAfternoonSlots,
			Note:       "No focus window predicted; default high-focus slots",
		}
	case cognitive.LoadMedium:
		return &TimingHint{Preference: TimingFlexible, Note: "Medium load; schedule around high-load work"}
	default:
		return &TimingHint{Preference: TimingAnyTime, Note: "Low load; fits any gap"}
	}
}

func (o *Optimizer) breakRecommendations(s *Suggestion, cogctx *cognitive.Context) []string {
	var recs []string
	if cogctx.Breaks.MicroInterval > 0 {
		recs = append(recs, fmt.Sprintf("Micro break of %s every %s", cogctx.Breaks.MicroDuration, cogctx.Breaks.MicroInterval))
	}
	if cogctx.Breaks.ActiveInterval > 0 && s.TotalEstimatedDuration > cogctx.Breaks.ActiveInterval {
		recs = append(recs, fmt.Sprintf("Active break of %s every %s", cogctx.Breaks.ActiveDuration, cogctx.Breaks.ActiveInterval))
	}
	return recs
}
