// Copyright 2026 The steward Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package autopilot

import (
	"context"
	"math"

	"github.com/stewardai/steward/internal/memory"
)

// PatternStats is an estimate of how a (project, model) pair has performed
// historically.
type PatternStats struct {
	// Frequency is how often this model was used for this project relative
	// to all routings for the project, in [0,1].
	Frequency float64

	// Count is the raw number of observed routings.
	Count int

	// SuccessRate is the observed success rate, in [0,1].
	SuccessRate float64

	// Confidence blends success rate with response quality and damps small
	// samples; it seeds a newly created pattern's confidence.
	Confidence float64

	// Stable indicates the estimate has settled enough to trust.
	Stable bool
}

// Qualifier estimates pattern statistics from historical data. It is a
// strategy interface so tests can supply deterministic estimators instead of
// live history aggregation.
type Qualifier interface {
	EstimateStats(ctx context.Context, project, model string) (PatternStats, error)
}

// HistoryQualifier aggregates routing history from the memory collaborator.
type HistoryQualifier struct {
	recorder memory.Recorder

	// StabilityMinCount is the sample size above which an estimate is
	// considered stable. Defaults to 2x MinSampleSize.
	StabilityMinCount int
}

// NewHistoryQualifier creates a qualifier backed by the memory collaborator.
func NewHistoryQualifier(recorder memory.Recorder) *HistoryQualifier {
	return &HistoryQualifier{recorder: recorder, StabilityMinCount: 2 * MinSampleSize}
}

// EstimateStats computes frequency, success rate, and stability for the pair
// from recorded history. An empty history yields zero stats, not an error.
func (hq *HistoryQualifier) EstimateStats(ctx context.Context, project, model string) (PatternStats, error) {
	if hq.recorder == nil {
		return PatternStats{}, nil
	}

	entries, err := hq.recorder.RoutingHistory(ctx, project, "")
	if err != nil {
		return PatternStats{}, err
	}
	if len(entries) == 0 {
		return PatternStats{}, nil
	}

	total := 0
	matched := 0
	successes := 0
	qualitySum := 0.0
	for _, e := range entries {
		total++
		if e.Model != model {
			continue
		}
		matched++
		if e.Success {
			successes++
		}
		qualitySum += e.Quality
	}

	stats := PatternStats{Count: matched}
	if total > 0 {
		stats.Frequency = float64(matched) / float64(total)
	}
	if matched > 0 {
		stats.SuccessRate = float64(successes) / float64(matched)

		avgQuality := qualitySum / float64(matched)
		base := stats.SuccessRate
		if avgQuality > 0 {
			base = base*0.7 + avgQuality*0.3
		}
		// Damp small samples logarithmically so confidence grows with evidence.
		damp := 1.0
		if matched < 100 {
			damp = math.Log(float64(matched)+1) / math.Log(101)
		}
		stats.Confidence = base * damp
	}
	stats.Stable = matched >= hq.StabilityMinCount

	return stats, nil
}
