// Package confidence derives a 0-1 reliability score for recurring
// patterns from their occurrence history.
package confidence

import (
	"math"
	"sort"
	"time"

	"github.com/cadence-dev/cadence/internal/model"
)

const (
	// saturationCount is where additional occurrences stop raising the
	// occurrence boost.
	saturationCount = 10
	// establishedCount is the history size at which anomaly damping
	// kicks in.
	establishedCount = 5
	// maxDrop bounds how far one scoring pass can pull an established
	// pattern's confidence down. Degradation is gradual, never
	// catastrophic from a single anomaly.
	maxDrop = 0.15
)

// Scorer computes confidence scores for recurring patterns.
type Scorer struct{}

// NewScorer creates a new confidence scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score derives a confidence value in [0,1] for the pattern given its
// linked occurrences. More, more regular occurrences raise the score;
// interval and amount variance lower it. For established patterns
// (>= 5 occurrences) the result is clamped to at most maxDrop below
// the pattern's current score.
func (s *Scorer) Score(p *model.RecurrencePattern, occurrences []model.Transaction) float64 {
	raw := s.rawScore(p, occurrences)

	if p.OccurrenceCount >= establishedCount && raw < p.ConfidenceScore-maxDrop {
		raw = p.ConfidenceScore - maxDrop
	}

	return clamp01(raw)
}

func (s *Scorer) rawScore(p *model.RecurrencePattern, occurrences []model.Transaction) float64 {
	count := p.OccurrenceCount
	if len(occurrences) > count {
		count = len(occurrences)
	}

	boost := float64(count) / float64(saturationCount)
	if boost > 1 {
		boost = 1
	}

	if len(occurrences) < 3 {
		// Too little history for variance analysis; score on volume alone.
		return 0.3 + 0.4*boost
	}

	sorted := make([]model.Transaction, len(occurrences))
	copy(sorted, occurrences)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	intervalFactor := s.intervalRegularity(p, sorted)
	amountFactor := s.amountConsistency(sorted)

	return (0.5 + 0.5*boost) * intervalFactor * amountFactor
}

// intervalRegularity grades how tightly the observed day deltas sit
// around the pattern's expected interval.
func (s *Scorer) intervalRegularity(p *model.RecurrencePattern, sorted []model.Transaction) float64 {
	expected := float64(p.EffectiveIntervalDays())

	var deltas []float64
	for i := 1; i < len(sorted); i++ {
		days := daysBetween(sorted[i-1].Date, sorted[i].Date)
		if days > 0 {
			deltas = append(deltas, days)
		}
	}
	if len(deltas) == 0 {
		return 0.3
	}

	m := mean(deltas)
	cv := coefficientOfVariation(deltas, m)

	// Penalize systematic drift away from the expected interval on top
	// of scatter within the observed deltas.
	if expected > 0 {
		drift := math.Abs(m-expected) / expected
		cv = math.Max(cv, drift)
	}

	return gradeVariation(cv, 0.10, 0.20, 0.35)
}

// amountConsistency grades the scatter of occurrence amounts.
func (s *Scorer) amountConsistency(sorted []model.Transaction) float64 {
	amounts := make([]float64, len(sorted))
	for i, txn := range sorted {
		amounts[i] = math.Abs(txn.Amount)
	}

	m := mean(amounts)
	if m == 0 {
		return 0.3
	}

	return gradeVariation(coefficientOfVariation(amounts, m), 0.05, 0.10, 0.25)
}

// gradeVariation maps a coefficient of variation to a factor, with
// thresholds for tight, acceptable, and loose scatter.
func gradeVariation(cv, tight, acceptable, loose float64) float64 {
	switch {
	case cv <= tight:
		return 1.0
	case cv <= acceptable:
		return 0.85
	case cv <= loose:
		return 0.6
	default:
		return 0.3
	}
}

func daysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func coefficientOfVariation(values []float64, m float64) float64 {
	if m == 0 {
		return 0
	}
	var sumSquares float64
	for _, v := range values {
		d := v - m
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares/float64(len(values))) / math.Abs(m)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
