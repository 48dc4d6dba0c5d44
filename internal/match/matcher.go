// Package match decides whether transactions belong to recurring patterns.
package match

import (
	"math"
	"strings"

	"github.com/cadence-dev/cadence/internal/common"
	"github.com/cadence-dev/cadence/internal/model"
)

// Tier classifies how strongly a transaction matches a pattern.
type Tier string

const (
	// TierExact means merchant equality and amount within the pattern's
	// own tolerance band.
	TierExact Tier = "EXACT"
	// TierFuzzy means a merchant substring match with a widened amount band.
	TierFuzzy Tier = "FUZZY"
	// TierNone means no match.
	TierNone Tier = "NONE"
)

// Fuzzy matching widens the amount band to max(10%, $5 absolute).
const (
	fuzzyTolerancePercent = 10.0
	fuzzyToleranceFloor   = 5.0
)

// Candidate pairs a pattern with the tier it matched at.
type Candidate struct {
	Pattern model.RecurrencePattern
	Tier    Tier
}

// Matcher evaluates amount/merchant pairs against recurring patterns.
type Matcher struct{}

// NewMatcher creates a new tolerance matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// WithinTolerance reports whether amount lies inside the pattern's
// tolerance band. The band is symmetric around the pattern amount and
// inclusive at both ends.
func (m *Matcher) WithinTolerance(p *model.RecurrencePattern, amount float64) bool {
	band := math.Abs(p.Amount) * p.AmountTolerancePercent / 100
	return amount >= p.Amount-band && amount <= p.Amount+band
}

// ScoreCandidate classifies how well a transaction fits a pattern.
func (m *Matcher) ScoreCandidate(p *model.RecurrencePattern, txn model.Transaction) Tier {
	merchant := txn.Merchant()
	if merchant == "" {
		return TierNone
	}

	if strings.EqualFold(p.MerchantName, merchant) && m.WithinTolerance(p, txn.Amount) {
		return TierExact
	}

	// A user-supplied description pattern matching the raw transaction
	// name counts the same as merchant equality.
	if p.DescriptionPattern != "" && m.WithinTolerance(p, txn.Amount) {
		if ok, err := common.MatchRegex(p.DescriptionPattern, txn.Name); err == nil && ok {
			return TierExact
		}
	}

	if merchantContains(p.MerchantName, merchant) && m.withinFuzzyTolerance(p, txn.Amount) {
		return TierFuzzy
	}

	return TierNone
}

// Evaluate scores a transaction against every given pattern and returns
// the candidates that matched at EXACT or FUZZY tier.
func (m *Matcher) Evaluate(patterns []model.RecurrencePattern, txn model.Transaction) []Candidate {
	var candidates []Candidate
	for _, p := range patterns {
		tier := m.ScoreCandidate(&p, txn)
		if tier == TierNone {
			continue
		}
		candidates = append(candidates, Candidate{Pattern: p, Tier: tier})
	}
	return candidates
}

// Best selects the winning candidate for a transaction, or reports
// ambiguity. Multiple FUZZY candidates with no EXACT winner are never
// auto-linked; the caller surfaces them for user choice.
//
// Tie-break order: EXACT over FUZZY, then smallest day delta between
// the pattern's next expected date and the transaction date, then
// higher confidence score.
func (m *Matcher) Best(candidates []Candidate, txn model.Transaction) (*Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	var exact, fuzzy []Candidate
	for _, c := range candidates {
		switch c.Tier {
		case TierExact:
			exact = append(exact, c)
		case TierFuzzy:
			fuzzy = append(fuzzy, c)
		case TierNone:
		}
	}

	if len(exact) > 0 {
		best := pickClosest(exact, txn)
		return &best, false
	}

	if len(fuzzy) == 1 {
		return &fuzzy[0], false
	}

	// Multiple fuzzy candidates, no exact winner.
	return nil, true
}

func pickClosest(candidates []Candidate, txn model.Transaction) Candidate {
	best := candidates[0]
	bestDelta := expectedDayDelta(&best.Pattern, txn)
	for _, c := range candidates[1:] {
		delta := expectedDayDelta(&c.Pattern, txn)
		if delta < bestDelta || (delta == bestDelta && c.Pattern.ConfidenceScore > best.Pattern.ConfidenceScore) {
			best = c
			bestDelta = delta
		}
	}
	return best
}

// expectedDayDelta returns the absolute day distance between the
// pattern's next expected date and the transaction date. Patterns
// without a projection sort last.
func expectedDayDelta(p *model.RecurrencePattern, txn model.Transaction) int {
	if p.NextExpectedDate.IsZero() {
		return math.MaxInt32
	}
	hours := p.NextExpectedDate.Sub(txn.Date).Hours()
	return int(math.Abs(math.Round(hours / 24)))
}

func (m *Matcher) withinFuzzyTolerance(p *model.RecurrencePattern, amount float64) bool {
	band := math.Abs(p.Amount) * fuzzyTolerancePercent / 100
	if band < fuzzyToleranceFloor {
		band = fuzzyToleranceFloor
	}
	return amount >= p.Amount-band && amount <= p.Amount+band
}

func merchantContains(patternName, merchant string) bool {
	a := strings.ToLower(strings.TrimSpace(patternName))
	b := strings.ToLower(strings.TrimSpace(merchant))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
