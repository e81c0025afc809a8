// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package suggest

import (
	"sort"
	"time"

	"github.com/stewardai/steward/internal/cognitive"
)

// Scoring weights. The formula is additive starting from zero and the final
// score is floored at zero.
const (
	weightCompletionProbability = 30.0
	weightHistoryBase           = 20.0
	weightHistoryPerCompletion  = 2.0
	weightHistoryCap            = 10.0
	weightOptimized             = 15.0
	weightLoadAlignment         = 10.0
	weightDurationSweetSpot     = 5.0
	weightAccommodations        = 8.0

	defaultCompletionProbability = 0.5

	sweetSpotMin = 30 * time.Minute
	sweetSpotMax = 120 * time.Minute
)

// provenancePriority breaks score ties deterministically: history-backed
// plans beat fresh predictions, which beat the fallback. Remaining ties fall
// back to suggestion id so the order is reproducible across runs regardless
// of source arrival order.
var provenancePriority = map[Source]int{
	SourceWorkflowMemory:    0,
	SourceSequencePredictor: 1,
	SourceFallbackEngine:    2,
}

// Ranker scores and orders enriched suggestions.
type Ranker struct{}

// NewRanker creates a ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Score computes the deterministic weighted score for one suggestion.
func (r *Ranker) Score(s *Suggestion, cogctx *cognitive.Context) float64 {
	if s == nil {
		return 0
	}

	prob := s.CompletionProbability
	if prob == 0 {
		prob = defaultCompletionProbability
	}
	score := prob * weightCompletionProbability

	if s.Source == SourceWorkflowMemory {
		score += weightHistoryBase
		bonus := float64(s.BasedOnCompletions) * weightHistoryPerCompletion
		if bonus > weightHistoryCap {
			bonus = weightHistoryCap
		}
		score += bonus
	}

	if s.Optimization != nil {
		score += weightOptimized
	}

	if len(s.Steps) > 0 && cogctx != nil {
		high := 0
		for _, st := range s.Steps {
			if st.Load == cognitive.LoadHigh {
				high++
			}
		}
		highLoadRatio := float64(high) / float64(len(s.Steps))
		if cogctx.PredictedCapacity < 0.5 && highLoadRatio > 0.5 {
			score -= weightLoadAlignment
		}
		if cogctx.PredictedCapacity > 0.8 && highLoadRatio > 0.3 {
			score += weightLoadAlignment
		}
	}

	if s.TotalEstimatedDuration >= sweetSpotMin && s.TotalEstimatedDuration <= sweetSpotMax {
		score += weightDurationSweetSpot
	}

	if cogctx != nil && cogctx.AccommodationsActive && s.Optimization != nil && s.Optimization.AccommodationsApplied {
		score += weightAccommodations
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Rank returns suggestions sorted by descending score. Ties break on
// provenance priority, then suggestion id. The input slice is not modified.
func (r *Ranker) Rank(suggestions []*Suggestion, cogctx *cognitive.Context) []*Suggestion {
	out := make([]*Suggestion, len(suggestions))
	copy(out, suggestions)

	scores := make(map[*Suggestion]float64, len(out))
	for _, s := range out {
		scores[s] = r.Score(s, cogctx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i]], scores[out[j]]
		if si != sj {
			return si > sj
		}
		pi, pj := provenancePriority[out[i].Source], provenancePriority[out[j].Source]
		if pi != pj {
			return pi < pj
		}
		return out[i].ID < out[j].ID
	})

	return out
}
