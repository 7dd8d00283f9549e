// Package engagement normalizes engagement scores and summarizes the recent
// attendance window.
package engagement

import (
	"math"

	"github.com/okian/rollcall/internal/domain/model"
)

const (
	minScore = 0
	maxScore = 100

	// DefaultScore is used when upstream records carry no engagement metric.
	DefaultScore = 100.0

	defaultEngagedThreshold = 75.0
)

// Level classifies a single engagement score.
type Level string

const (
	LevelEngaged Level = "engaged"
	LevelAtRisk  Level = "at_risk"
)

// Summary aggregates a window of log events.
type Summary struct {
	Events             int     `json:"events"`
	DistinctIdentities int     `json:"distinct_identities"`
	AverageEngagement  float64 `json:"average_engagement"`
	Engaged            int     `json:"engaged"`
	AtRisk             int     `json:"at_risk"`
}

// Option applies a configuration option to the Summarizer.
type Option func(*Summarizer)

// WithEngagedThreshold sets the score above which an event counts as engaged.
func WithEngagedThreshold(threshold float64) Option {
	return func(s *Summarizer) {
		if threshold >= minScore && threshold <= maxScore {
			s.engagedThreshold = threshold
		}
	}
}

// Summarizer computes Summary values.
type Summarizer struct {
	engagedThreshold float64
}

// NewSummarizer creates a summarizer with configuration options.
func NewSummarizer(opts ...Option) *Summarizer {
	s := &Summarizer{engagedThreshold: defaultEngagedThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clamp maps any score into [0, 100]. NaN becomes DefaultScore.
func Clamp(score float64) float64 {
	if math.IsNaN(score) {
		return DefaultScore
	}
	return math.Max(minScore, math.Min(maxScore, score))
}

// Classify returns the level of a single score.
func (s *Summarizer) Classify(score float64) Level {
	if Clamp(score) > s.engagedThreshold {
		return LevelEngaged
	}
	return LevelAtRisk
}

// Summarize aggregates events. The average is rounded to two decimals.
func (s *Summarizer) Summarize(events []model.LogEvent) Summary {
	out := Summary{Events: len(events)}
	if len(events) == 0 {
		return out
	}

	seen := make(map[string]struct{}, len(events))
	var total float64
	for _, e := range events {
		seen[e.IdentityID] = struct{}{}
		score := Clamp(e.EngagementScore)
		total += score
		if s.Classify(score) == LevelEngaged {
			out.Engaged++
		} else {
			out.AtRisk++
		}
	}
	out.DistinctIdentities = len(seen)
	out.AverageEngagement = math.Round(total/float64(len(events))*100) / 100
	return out
}
