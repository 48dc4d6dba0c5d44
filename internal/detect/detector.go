// Package detect scans unlinked transactions for new recurring-pattern
// candidates.
package detect

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-dev/cadence/internal/confidence"
	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/schedule"
)

// Clustering thresholds. These are a starting point to be tuned against
// real transaction data.
const (
	// minGroupSize is the smallest merchant group worth analyzing.
	minGroupSize = 3
	// minBucketMembers is how many transactions must participate in one
	// frequency bucket before a pattern is proposed. n transactions in a
	// bucket correspond to n-1 consecutive in-bucket day-deltas.
	minBucketMembers = 3
	// bucketTolerance widens each frequency bucket by +/-20%.
	bucketTolerance = 0.20
	// amountClusterPercent is the spread around the mean within which
	// amounts count as a single cluster.
	amountClusterPercent = 5.0
)

// bucketIntervals maps each named frequency to its nominal interval in
// days, using average month lengths so the MONTHLY bucket covers 24-37
// days at +/-20%.
var bucketIntervals = map[model.Frequency]float64{
	model.FrequencyWeekly:       7,
	model.FrequencyBiWeekly:     14,
	model.FrequencyMonthly:      30.44,
	model.FrequencyBiMonthly:    60.88,
	model.FrequencyQuarterly:    91.31,
	model.FrequencySemiAnnually: 182.63,
	model.FrequencyAnnually:     365.25,
}

// Detector proposes candidate recurring patterns from transaction history.
type Detector struct {
	scorer *confidence.Scorer
}

// NewDetector creates a detector using the given confidence scorer.
func NewDetector(scorer *confidence.Scorer) *Detector {
	return &Detector{scorer: scorer}
}

// DetectCandidates groups unlinked, processed transactions by normalized
// merchant, looks for a dominant day-delta frequency bucket, and emits
// PENDING_CONFIRMATION candidates. Groups whose dominant bucket misses
// the delta quorum produce nothing; their transactions stay unlinked
// for the next pass.
func (d *Detector) DetectCandidates(transactions []model.Transaction) []model.RecurrencePattern {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		if txn.PatternID != "" || !txn.Processed {
			continue
		}
		key := model.NormalizeMerchant(txn.Merchant())
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], txn)
	}

	var candidates []model.RecurrencePattern
	for _, group := range groups {
		if len(group) < minGroupSize {
			continue
		}
		if p := d.analyzeGroup(group); p != nil {
			candidates = append(candidates, *p)
		}
	}

	// Stable output order for callers and tests.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].MerchantName < candidates[j].MerchantName
	})
	return candidates
}

func (d *Detector) analyzeGroup(group []model.Transaction) *model.RecurrencePattern {
	sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

	deltas := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		deltas = append(deltas, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}

	frequency, members := d.dominantBucket(group, deltas)
	if frequency == "" || len(members) < minBucketMembers {
		return nil
	}

	method := model.DetectionAmountAndMerchant
	amount, clustered := clusterAmount(members)
	if !clustered {
		method = model.DetectionMerchantOnly
	}

	first := members[0].Date
	last := members[len(members)-1].Date
	now := time.Now().UTC()

	p := &model.RecurrencePattern{
		ID:                     uuid.NewString(),
		MerchantName:           members[0].Merchant(),
		Category:               dominantCategory(members),
		CategoryType:           dominantCategoryType(members),
		Frequency:              frequency,
		IntervalDays:           frequency.DefaultIntervalDays(),
		Status:                 model.StatusPendingConfirmation,
		DetectionMethod:        method,
		Amount:                 amount,
		AmountTolerancePercent: model.DefaultTolerancePercent,
		FirstOccurrence:        first,
		LastOccurrence:         last,
		NextExpectedDate:       schedule.NextDate(frequency, frequency.DefaultIntervalDays(), last),
		OccurrenceCount:        len(members),
		IsActive:               true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	score := d.scorer.Score(p, members)
	if method == model.DetectionMerchantOnly {
		// Without an amount cluster the match signal is weaker.
		score *= 0.75
	}
	p.ConfidenceScore = score

	return p
}

// dominantBucket finds the frequency bucket holding the most day-deltas
// and returns the transactions participating in those deltas. A delta at
// index i involves group[i] and group[i+1].
func (d *Detector) dominantBucket(group []model.Transaction, deltas []float64) (model.Frequency, []model.Transaction) {
	var bestFreq model.Frequency
	var bestHits []int

	for _, freq := range model.Frequencies {
		nominal, ok := bucketIntervals[freq]
		if !ok {
			continue
		}
		lo := math.Floor(nominal * (1 - bucketTolerance))
		hi := math.Ceil(nominal * (1 + bucketTolerance))

		var hits []int
		for i, delta := range deltas {
			if delta >= lo && delta <= hi {
				hits = append(hits, i)
			}
		}
		if len(hits) > len(bestHits) {
			bestFreq = freq
			bestHits = hits
		}
	}

	// Quorum: len(group)-1 deltas for a minimum-size group, capped at
	// minBucketMembers for larger ones, so a couple of coincidental
	// deltas inside a chaotic history never propose a pattern.
	quorum := minBucketMembers
	if len(group)-1 < quorum {
		quorum = len(group) - 1
	}
	if len(bestHits) < quorum {
		return "", nil
	}

	memberSet := make(map[int]bool)
	for _, i := range bestHits {
		memberSet[i] = true
		memberSet[i+1] = true
	}
	indexes := make([]int, 0, len(memberSet))
	for i := range memberSet {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	members := make([]model.Transaction, len(indexes))
	for i, idx := range indexes {
		members[i] = group[idx]
	}
	return bestFreq, members
}

// clusterAmount returns the mean amount and whether every member sits
// within the default 5% tolerance of that mean.
func clusterAmount(members []model.Transaction) (float64, bool) {
	var sum float64
	for _, txn := range members {
		sum += txn.Amount
	}
	mean := sum / float64(len(members))

	band := math.Abs(mean) * amountClusterPercent / 100
	for _, txn := range members {
		if txn.Amount < mean-band || txn.Amount > mean+band {
			return mean, false
		}
	}
	return mean, true
}

func dominantCategory(members []model.Transaction) string {
	counts := make(map[string]int)
	for _, txn := range members {
		if txn.Category != "" {
			counts[txn.Category]++
		}
	}
	var best string
	for category, n := range counts {
		if n > counts[best] || best == "" {
			best = category
		}
	}
	return best
}

func dominantCategoryType(members []model.Transaction) model.CategoryType {
	counts := make(map[model.CategoryType]int)
	for _, txn := range members {
		if txn.CategoryType != "" {
			counts[txn.CategoryType]++
		}
	}
	var best model.CategoryType
	for t, n := range counts {
		if n > counts[best] || best == "" {
			best = t
		}
	}
	return best
}
