package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cadence-dev/cadence/internal/model"
)

func monthlyOccurrences(n int, amount float64) []model.Transaction {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	txns := make([]model.Transaction, n)
	for i := range txns {
		txns[i] = model.Transaction{
			ID:           string(rune('a' + i)),
			MerchantName: "Netflix",
			Amount:       amount,
			Date:         start.AddDate(0, i, 0),
		}
	}
	return txns
}

func scoringPattern(count int) model.RecurrencePattern {
	return model.RecurrencePattern{
		ID:                     "pat-1",
		MerchantName:           "Netflix",
		Frequency:              model.FrequencyMonthly,
		Status:                 model.StatusActive,
		Amount:                 15.99,
		AmountTolerancePercent: model.DefaultTolerancePercent,
		OccurrenceCount:        count,
	}
}

func TestScore_RegularHistoryScoresHigh(t *testing.T) {
	s := NewScorer()
	p := scoringPattern(10)

	got := s.Score(&p, monthlyOccurrences(10, 15.99))

	assert.GreaterOrEqual(t, got, 0.8)
	assert.LessOrEqual(t, got, 1.0)
}

func TestScore_MonotonicInOccurrenceCount(t *testing.T) {
	s := NewScorer()

	var prev float64
	for _, n := range []int{3, 5, 8, 10, 15} {
		p := scoringPattern(n)
		got := s.Score(&p, monthlyOccurrences(n, 15.99))
		assert.GreaterOrEqual(t, got, prev,
			"confidence must not decrease as regular history grows (n=%d)", n)
		prev = got
	}
}

func TestScore_IrregularIntervalsScoreLower(t *testing.T) {
	s := NewScorer()
	p := scoringPattern(6)

	regular := s.Score(&p, monthlyOccurrences(6, 15.99))

	// Same merchant and amounts but chaotic spacing.
	irregular := monthlyOccurrences(6, 15.99)
	base := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i, offset := range []int{0, 4, 11, 40, 47, 89} {
		irregular[i].Date = base.AddDate(0, 0, offset)
	}
	p2 := scoringPattern(6)
	p2.ConfidenceScore = 0 // no prior to damp against

	assert.Less(t, s.Score(&p2, irregular), regular)
}

func TestScore_VariableAmountsScoreLower(t *testing.T) {
	s := NewScorer()

	p := scoringPattern(6)
	steady := s.Score(&p, monthlyOccurrences(6, 15.99))

	varied := monthlyOccurrences(6, 15.99)
	amounts := []float64{3.50, 9.00, 4.25, 8.10, 6.40, 3.90}
	for i := range varied {
		varied[i].Amount = amounts[i]
	}
	p2 := scoringPattern(6)

	assert.Less(t, s.Score(&p2, varied), steady)
}

func TestScore_SingleAnomalyDegradesGradually(t *testing.T) {
	s := NewScorer()
	p := scoringPattern(8)
	p.ConfidenceScore = 0.9

	occurrences := monthlyOccurrences(8, 15.99)
	// One wildly off-interval, off-amount occurrence.
	occurrences[7].Date = occurrences[6].Date.AddDate(0, 0, 200)
	occurrences[7].Amount = 180.00

	got := s.Score(&p, occurrences)

	assert.GreaterOrEqual(t, got, 0.5,
		"an established pattern must not collapse below 0.5 from one anomaly")
	assert.GreaterOrEqual(t, got, p.ConfidenceScore-maxDrop-1e-9)
	assert.Less(t, got, p.ConfidenceScore)
}

func TestScore_SparseHistoryUsesVolumeOnly(t *testing.T) {
	s := NewScorer()
	p := scoringPattern(1)

	got := s.Score(&p, monthlyOccurrences(1, 15.99))

	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 0.5)
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	s := NewScorer()

	for _, n := range []int{0, 1, 3, 10, 50} {
		p := scoringPattern(n)
		got := s.Score(&p, monthlyOccurrences(n, 15.99))
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}
