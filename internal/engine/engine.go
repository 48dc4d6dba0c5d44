// Package engine implements the reconciliation orchestrator that links
// incoming transactions to recurring patterns and proposes new ones.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cadence-dev/cadence/internal/common"
	"github.com/cadence-dev/cadence/internal/confidence"
	"github.com/cadence-dev/cadence/internal/detect"
	"github.com/cadence-dev/cadence/internal/match"
	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/schedule"
	"github.com/cadence-dev/cadence/internal/service"
)

// ReconciliationEngine orchestrates matching, occurrence recording,
// detection and pattern lifecycle transitions against the storage layer.
type ReconciliationEngine struct {
	storage   service.Storage
	matcher   *match.Matcher
	projector *schedule.Projector
	scorer    *confidence.Scorer
	detector  *detect.Detector
	now       func() time.Time
	config    Config
}

// Config holds tunable thresholds for the reconciliation engine.
type Config struct {
	// PromotionOccurrences is how many consistent occurrences a
	// PENDING_CONFIRMATION pattern must accumulate through reconcile
	// passes before it is auto-promoted to ACTIVE.
	PromotionOccurrences int
	// IrregularConfidenceThreshold demotes an ACTIVE pattern to
	// IRREGULAR when a new occurrence drops its confidence below it.
	IrregularConfidenceThreshold float64
	// StaleCycles is how many full expected cycles may pass without an
	// occurrence before an ACTIVE or IRREGULAR pattern is considered
	// potentially ended.
	StaleCycles int
	Retry       service.RetryOptions
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		PromotionOccurrences:         3,
		IrregularConfidenceThreshold: 0.4,
		StaleCycles:                  2,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
		},
	}
}

// New creates a reconciliation engine with default configuration.
func New(storage service.Storage) *ReconciliationEngine {
	return NewWithConfig(storage, DefaultConfig())
}

// NewWithConfig creates a reconciliation engine with custom configuration.
func NewWithConfig(storage service.Storage, config Config) *ReconciliationEngine {
	matcher := match.NewMatcher()
	scorer := confidence.NewScorer()
	return &ReconciliationEngine{
		storage:   storage,
		matcher:   matcher,
		projector: schedule.NewProjector(matcher),
		scorer:    scorer,
		detector:  detect.NewDetector(scorer),
		now:       func() time.Time { return time.Now().UTC() },
		config:    config,
	}
}

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	Matched   int
	Unmatched int
	// Ambiguous transactions had multiple fuzzy candidates and no exact
	// one; they are left unlinked for the user to resolve.
	Ambiguous []AmbiguousMatch
	// ConflictedPatterns were skipped this pass after exhausting
	// optimistic-lock retries.
	ConflictedPatterns []string
	StaleFlagged       int
}

// AmbiguousMatch surfaces the candidate set for a transaction that could
// not be auto-linked.
type AmbiguousMatch struct {
	Transaction model.Transaction
	Candidates  []model.RecurrencePattern
}

// Reconcile matches the given transactions against active and pending
// patterns, recording an occurrence for each match. Unmatched
// transactions stay unlinked for the next Analyze pass. Merchant groups
// are processed independently; the pass can be cancelled between groups.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, transactions []model.Transaction) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	stale, err := e.CheckStale(ctx)
	if err != nil {
		return nil, fmt.Errorf("stale check failed: %w", err)
	}
	result.StaleFlagged = stale

	if len(transactions) == 0 {
		return result, nil
	}

	if err := e.storage.SaveTransactions(ctx, transactions); err != nil {
		return nil, fmt.Errorf("failed to save transactions: %w", err)
	}

	groups := groupByMerchant(transactions)
	merchants := make([]string, 0, len(groups))
	for merchant := range groups {
		merchants = append(merchants, merchant)
	}
	sort.Strings(merchants)

	conflicted := make(map[string]bool)

	for _, merchant := range merchants {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		patterns, err := e.storage.GetMatchablePatterns(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load patterns: %w", err)
		}

		for _, txn := range groups[merchant] {
			e.reconcileOne(ctx, txn, patterns, conflicted, result)
		}
	}

	for id := range conflicted {
		result.ConflictedPatterns = append(result.ConflictedPatterns, id)
	}
	sort.Strings(result.ConflictedPatterns)

	slog.Info("reconcile pass complete",
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"ambiguous", len(result.Ambiguous),
		"conflicted_patterns", len(result.ConflictedPatterns))
	return result, nil
}

func (e *ReconciliationEngine) reconcileOne(ctx context.Context, txn model.Transaction, patterns []model.RecurrencePattern, conflicted map[string]bool, result *ReconcileResult) {
	if txn.PatternID != "" {
		return
	}

	candidates := e.matcher.Evaluate(patterns, txn)
	best, ambiguous := e.matcher.Best(candidates, txn)
	if ambiguous {
		ambiguousSet := make([]model.RecurrencePattern, 0, len(candidates))
		for _, c := range candidates {
			ambiguousSet = append(ambiguousSet, c.Pattern)
		}
		result.Ambiguous = append(result.Ambiguous, AmbiguousMatch{Transaction: txn, Candidates: ambiguousSet})
		slog.Warn("ambiguous match left unlinked",
			"transaction", txn.ID,
			"merchant", txn.Merchant(),
			"candidates", len(ambiguousSet))
		return
	}
	if best == nil {
		result.Unmatched++
		return
	}

	patternID := best.Pattern.ID
	if conflicted[patternID] {
		result.Unmatched++
		return
	}

	if err := e.recordOccurrence(ctx, patternID, txn.Date, txn.Amount); err != nil {
		if errors.Is(err, common.ErrMaxRetries) {
			conflicted[patternID] = true
			result.Unmatched++
			slog.Warn("pattern skipped for this pass after repeated conflicts",
				"pattern", patternID, "transaction", txn.ID)
			return
		}
		slog.Error("failed to record occurrence",
			"pattern", patternID, "transaction", txn.ID, "error", err)
		result.Unmatched++
		return
	}

	if err := e.storage.LinkTransaction(ctx, txn.ID, patternID); err != nil {
		slog.Error("failed to link transaction",
			"transaction", txn.ID, "pattern", patternID, "error", err)
		return
	}
	result.Matched++
}

// recordOccurrence applies one occurrence to a pattern under optimistic
// locking: re-read, mutate, compare-and-swap, retry on conflict.
func (e *ReconciliationEngine) recordOccurrence(ctx context.Context, patternID string, date time.Time, amount float64) error {
	return common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}

		previousStatus := pattern.Status
		e.projector.RecordOccurrence(pattern, date, amount)

		occurrences, err := e.storage.GetTransactionsForPattern(ctx, patternID)
		if err != nil {
			return err
		}
		pattern.ConfidenceScore = e.scorer.Score(pattern, occurrences)

		e.applyLifecycleTransitions(pattern, amount)

		if err := e.storage.UpdatePatternVersioned(ctx, pattern); err != nil {
			return err
		}

		if pattern.Status != previousStatus {
			e.appendTransition(ctx, pattern.ID, previousStatus, pattern.Status,
				fmt.Sprintf("Occurrence on %s", date.Format("2006-01-02")))
		}
		return nil
	}, e.config.Retry)
}

// applyLifecycleTransitions runs the automated parts of the pattern
// state machine after an occurrence has been recorded.
func (e *ReconciliationEngine) applyLifecycleTransitions(pattern *model.RecurrencePattern, observedAmount float64) {
	switch pattern.Status {
	case model.StatusPendingConfirmation:
		if e.matcher.WithinTolerance(pattern, observedAmount) {
			pattern.PendingStreak++
			if pattern.PendingStreak >= e.config.PromotionOccurrences {
				pattern.Status = model.StatusActive
				slog.Info("pattern auto-promoted",
					"pattern", pattern.ID, "merchant", pattern.MerchantName)
			}
		} else {
			pattern.PendingStreak = 0
		}
	case model.StatusActive:
		if pattern.ConfidenceScore < e.config.IrregularConfidenceThreshold {
			pattern.Status = model.StatusIrregular
			slog.Warn("pattern demoted to irregular",
				"pattern", pattern.ID,
				"merchant", pattern.MerchantName,
				"confidence", pattern.ConfidenceScore)
		}
	case model.StatusIrregular:
		// An occurrence that restores confidence reactivates the pattern.
		if pattern.ConfidenceScore >= e.config.IrregularConfidenceThreshold {
			pattern.Status = model.StatusActive
		}
	}
}

// CheckStale flags ACTIVE and IRREGULAR patterns that have gone more
// than StaleCycles full expected cycles without an occurrence as
// potentially ended. It returns how many patterns were flagged.
func (e *ReconciliationEngine) CheckStale(ctx context.Context) (int, error) {
	patterns, err := e.storage.GetPatternsByStatus(ctx, model.StatusActive, model.StatusIrregular)
	if err != nil {
		return 0, fmt.Errorf("failed to load patterns: %w", err)
	}

	today := e.now()
	flagged := 0
	for i := range patterns {
		pattern := &patterns[i]
		if pattern.NextExpectedDate.IsZero() {
			continue
		}
		staleAfter := pattern.NextExpectedDate.AddDate(0, 0, e.config.StaleCycles*pattern.EffectiveIntervalDays())
		if !today.After(staleAfter) {
			continue
		}

		err := common.WithRetry(ctx, func() error {
			fresh, err := e.storage.GetPattern(ctx, pattern.ID)
			if err != nil {
				return err
			}
			if fresh.Status != model.StatusActive && fresh.Status != model.StatusIrregular {
				return nil
			}
			previousStatus := fresh.Status
			fresh.Status = model.StatusEnded
			fresh.Notes = appendNote(fresh.Notes,
				fmt.Sprintf("No occurrence for %d expected cycles; potentially ended", e.config.StaleCycles))
			if err := e.storage.UpdatePatternVersioned(ctx, fresh); err != nil {
				return err
			}
			e.appendTransition(ctx, fresh.ID, previousStatus, model.StatusEnded,
				fmt.Sprintf("No occurrence for %d expected cycles", e.config.StaleCycles))
			return nil
		}, e.config.Retry)
		if err != nil {
			slog.Error("failed to flag stale pattern", "pattern", pattern.ID, "error", err)
			continue
		}

		flagged++
		slog.Info("pattern flagged as potentially ended",
			"pattern", pattern.ID,
			"merchant", pattern.MerchantName,
			"next_expected", pattern.NextExpectedDate.Format("2006-01-02"))
	}
	return flagged, nil
}

// Analyze runs the pattern detector over all unlinked processed
// transactions and persists new PENDING_CONFIRMATION candidates. It is
// idempotent: a merchant that already has an active or pending pattern
// covering the candidate amount is skipped.
func (e *ReconciliationEngine) Analyze(ctx context.Context) ([]model.RecurrencePattern, error) {
	unlinked, err := e.storage.GetUnlinkedTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load unlinked transactions: %w", err)
	}
	if len(unlinked) == 0 {
		return nil, nil
	}

	candidates := e.detector.DetectCandidates(unlinked)

	var created []model.RecurrencePattern
	for i := range candidates {
		select {
		case <-ctx.Done():
			return created, ctx.Err()
		default:
		}
		candidate := &candidates[i]

		existing, err := e.storage.FindPotentialPatterns(ctx, candidate.MerchantName, candidate.Amount)
		if err != nil {
			return created, fmt.Errorf("duplicate guard failed for %s: %w", candidate.MerchantName, err)
		}
		if len(existing) > 0 {
			slog.Debug("skipping already-detected series",
				"merchant", candidate.MerchantName, "amount", candidate.Amount)
			continue
		}

		if err := e.storage.CreatePattern(ctx, candidate); err != nil {
			if errors.Is(err, common.ErrDuplicateEntry) {
				continue
			}
			return created, fmt.Errorf("failed to create pattern for %s: %w", candidate.MerchantName, err)
		}
		e.appendTransition(ctx, candidate.ID, "", model.StatusPendingConfirmation,
			fmt.Sprintf("Detected from %d transactions", candidate.OccurrenceCount))

		e.linkFoundingTransactions(ctx, candidate, unlinked)
		created = append(created, *candidate)
	}

	slog.Info("analyze pass complete", "candidates", len(candidates), "created", len(created))
	return created, nil
}

// linkFoundingTransactions links the unlinked transactions that gave
// rise to a freshly detected pattern. Only transactions the matcher
// still recognizes are linked; outliers stay unlinked.
func (e *ReconciliationEngine) linkFoundingTransactions(ctx context.Context, pattern *model.RecurrencePattern, unlinked []model.Transaction) {
	key := model.NormalizeMerchant(pattern.MerchantName)
	for _, txn := range unlinked {
		if model.NormalizeMerchant(txn.Merchant()) != key {
			continue
		}
		if e.matcher.ScoreCandidate(pattern, txn) == match.TierNone {
			continue
		}
		if err := e.storage.LinkTransaction(ctx, txn.ID, pattern.ID); err != nil {
			slog.Error("failed to link founding transaction",
				"transaction", txn.ID, "pattern", pattern.ID, "error", err)
		}
	}
}

func (e *ReconciliationEngine) appendTransition(ctx context.Context, patternID string, from, to model.PatternStatus, note string) {
	event := &model.PatternEvent{
		PatternID:  patternID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	}
	if err := e.storage.AppendPatternEvent(ctx, event); err != nil {
		slog.Error("failed to append pattern event", "pattern", patternID, "error", err)
	}
}

func groupByMerchant(transactions []model.Transaction) map[string][]model.Transaction {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		key := model.NormalizeMerchant(txn.Merchant())
		groups[key] = append(groups[key], txn)
	}
	return groups
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
