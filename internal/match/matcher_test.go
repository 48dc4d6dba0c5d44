package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-dev/cadence/internal/model"
)

func testPattern(merchant string, amount float64) model.RecurrencePattern {
	return model.RecurrencePattern{
		ID:                     "pat-" + merchant,
		MerchantName:           merchant,
		Frequency:              model.FrequencyMonthly,
		Status:                 model.StatusActive,
		Amount:                 amount,
		AmountTolerancePercent: model.DefaultTolerancePercent,
		IsActive:               true,
	}
}

func TestWithinTolerance(t *testing.T) {
	m := NewMatcher()
	p := testPattern("Netflix", 100.00)

	tests := []struct {
		name   string
		amount float64
		want   bool
	}{
		{"exact amount", 100.00, true},
		{"upper bound inclusive", 105.00, true},
		{"lower bound inclusive", 95.00, true},
		{"just above upper bound", 105.01, false},
		{"just below lower bound", 94.99, false},
		{"symmetric midpoints", 102.50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.WithinTolerance(&p, tt.amount))
		})
	}
}

func TestWithinTolerance_NegativeAmount(t *testing.T) {
	m := NewMatcher()
	p := testPattern("Rent", -1500.00)

	assert.True(t, m.WithinTolerance(&p, -1500.00))
	assert.True(t, m.WithinTolerance(&p, -1425.00))
	assert.True(t, m.WithinTolerance(&p, -1575.00))
	assert.False(t, m.WithinTolerance(&p, -1600.00))
}

func TestScoreCandidate(t *testing.T) {
	m := NewMatcher()
	p := testPattern("Netflix", 15.99)

	tests := []struct {
		name     string
		merchant string
		amount   float64
		want     Tier
	}{
		{"exact merchant and amount", "Netflix", 15.99, TierExact},
		{"case-insensitive merchant", "NETFLIX", 15.99, TierExact},
		{"exact merchant at tolerance edge", "netflix", 16.79, TierExact},
		{"substring merchant within fuzzy band", "Netflix.com", 17.99, TierFuzzy},
		{"substring other direction", "Net", 15.99, TierFuzzy},
		{"exact merchant outside own band but in fuzzy band", "Netflix", 19.99, TierFuzzy},
		{"merchant mismatch", "Spotify", 15.99, TierNone},
		{"amount far off", "Netflix", 99.00, TierNone},
		{"empty merchant", "", 15.99, TierNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := model.Transaction{MerchantName: tt.merchant, Amount: tt.amount}
			assert.Equal(t, tt.want, m.ScoreCandidate(&p, txn))
		})
	}
}

func TestScoreCandidate_DescriptionPattern(t *testing.T) {
	m := NewMatcher()
	p := testPattern("City Power", 82.50)
	p.DescriptionPattern = `(?i)^CITY PWR AUTOPAY`

	match := model.Transaction{Name: "CITY PWR AUTOPAY 03/24", MerchantName: "Cty Pwr", Amount: 82.50}
	assert.Equal(t, TierExact, m.ScoreCandidate(&p, match))

	outOfBand := model.Transaction{Name: "CITY PWR AUTOPAY 03/24", MerchantName: "Cty Pwr", Amount: 120.00}
	assert.Equal(t, TierNone, m.ScoreCandidate(&p, outOfBand))

	// Invalid regex never matches but must not break merchant scoring.
	p.DescriptionPattern = `([`
	byMerchant := model.Transaction{Name: "irrelevant", MerchantName: "City Power", Amount: 82.50}
	assert.Equal(t, TierExact, m.ScoreCandidate(&p, byMerchant))
}

func TestScoreCandidate_FuzzyAbsoluteFloor(t *testing.T) {
	m := NewMatcher()
	// 10% of $4 is only $0.40; the fuzzy band floor of $5 must win.
	p := testPattern("Coffee Club", 4.00)
	txn := model.Transaction{MerchantName: "Coffee Club Inc", Amount: 8.50}

	assert.Equal(t, TierFuzzy, m.ScoreCandidate(&p, txn))
}

func TestBest_PrefersExactOverFuzzy(t *testing.T) {
	m := NewMatcher()
	exact := testPattern("Netflix", 15.99)
	fuzzy := testPattern("Netflix Premium", 16.99)

	txn := model.Transaction{MerchantName: "Netflix", Amount: 15.99, Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)}
	candidates := m.Evaluate([]model.RecurrencePattern{fuzzy, exact}, txn)
	require.Len(t, candidates, 2)

	best, ambiguous := m.Best(candidates, txn)
	require.False(t, ambiguous)
	require.NotNil(t, best)
	assert.Equal(t, exact.ID, best.Pattern.ID)
	assert.Equal(t, TierExact, best.Tier)
}

func TestBest_TieBreakByExpectedDate(t *testing.T) {
	m := NewMatcher()
	txnDate := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	near := testPattern("Netflix", 15.99)
	near.ID = "near"
	near.NextExpectedDate = txnDate.AddDate(0, 0, 2)

	far := testPattern("Netflix", 15.99)
	far.ID = "far"
	far.NextExpectedDate = txnDate.AddDate(0, 0, 20)

	txn := model.Transaction{MerchantName: "Netflix", Amount: 15.99, Date: txnDate}
	best, ambiguous := m.Best(m.Evaluate([]model.RecurrencePattern{far, near}, txn), txn)
	require.False(t, ambiguous)
	assert.Equal(t, "near", best.Pattern.ID)
}

func TestBest_TieBreakByConfidence(t *testing.T) {
	m := NewMatcher()
	txnDate := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	expected := txnDate.AddDate(0, 0, 3)

	low := testPattern("Netflix", 15.99)
	low.ID = "low"
	low.NextExpectedDate = expected
	low.ConfidenceScore = 0.4

	high := testPattern("Netflix", 15.99)
	high.ID = "high"
	high.NextExpectedDate = expected
	high.ConfidenceScore = 0.9

	txn := model.Transaction{MerchantName: "Netflix", Amount: 15.99, Date: txnDate}
	best, ambiguous := m.Best(m.Evaluate([]model.RecurrencePattern{low, high}, txn), txn)
	require.False(t, ambiguous)
	assert.Equal(t, "high", best.Pattern.ID)
}

func TestBest_MultipleFuzzyIsAmbiguous(t *testing.T) {
	m := NewMatcher()
	a := testPattern("Amazon Prime", 14.99)
	b := testPattern("Amazon Music", 16.99)

	txn := model.Transaction{MerchantName: "Amazon", Amount: 15.99}
	candidates := m.Evaluate([]model.RecurrencePattern{a, b}, txn)
	require.Len(t, candidates, 2)

	best, ambiguous := m.Best(candidates, txn)
	assert.Nil(t, best)
	assert.True(t, ambiguous)
}

func TestBest_SingleFuzzyWins(t *testing.T) {
	m := NewMatcher()
	p := testPattern("Amazon Prime", 14.99)

	txn := model.Transaction{MerchantName: "Amazon", Amount: 14.99}
	best, ambiguous := m.Best(m.Evaluate([]model.RecurrencePattern{p}, txn), txn)
	require.False(t, ambiguous)
	require.NotNil(t, best)
	assert.Equal(t, TierFuzzy, best.Tier)
}

func TestBest_NoCandidates(t *testing.T) {
	m := NewMatcher()
	best, ambiguous := m.Best(nil, model.Transaction{})
	assert.Nil(t, best)
	assert.False(t, ambiguous)
}
