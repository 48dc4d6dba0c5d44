package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-dev/cadence/internal/common"
	"github.com/cadence-dev/cadence/internal/match"
	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/schedule"
)

// MarkAsPaid records a user-confirmed occurrence on the given date. On a
// PENDING_CONFIRMATION pattern it also promotes the pattern to ACTIVE
// and marks it user-confirmed.
func (e *ReconciliationEngine) MarkAsPaid(ctx context.Context, patternID string, date time.Time) error {
	return common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}

		previousStatus := pattern.Status
		// The observed amount equals the nominal one here, so the blend
		// is a no-op and only the schedule advances.
		e.projector.RecordOccurrence(pattern, date, pattern.Amount)

		if pattern.Status == model.StatusPendingConfirmation {
			pattern.Status = model.StatusActive
			pattern.UserConfirmed = true
		}

		if err := e.storage.UpdatePatternVersioned(ctx, pattern); err != nil {
			return err
		}

		if pattern.Status != previousStatus {
			e.appendTransition(ctx, pattern.ID, previousStatus, pattern.Status,
				fmt.Sprintf("Marked as paid on %s", date.Format("2006-01-02")))
		}
		return nil
	}, e.config.Retry)
}

// SkipOccurrence advances the pattern past one expected occurrence
// without counting it.
func (e *ReconciliationEngine) SkipOccurrence(ctx context.Context, patternID string) error {
	return common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}
		e.projector.SkipOccurrence(pattern)
		return e.storage.UpdatePatternVersioned(ctx, pattern)
	}, e.config.Retry)
}

// Pause suspends an ACTIVE pattern. Paused patterns are excluded from
// matching, due/overdue queries and monthly totals until resumed.
func (e *ReconciliationEngine) Pause(ctx context.Context, patternID string) error {
	return e.transition(ctx, patternID, model.StatusActive, model.StatusPaused, "Paused by user")
}

// Resume reactivates a PAUSED pattern.
func (e *ReconciliationEngine) Resume(ctx context.Context, patternID string) error {
	return e.transition(ctx, patternID, model.StatusPaused, model.StatusActive, "Resumed by user")
}

func (e *ReconciliationEngine) transition(ctx context.Context, patternID string, from, to model.PatternStatus, note string) error {
	return common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}
		if pattern.Status != from {
			return common.NewUserError(
				fmt.Sprintf("Pattern is currently %s and cannot change to %s.", pattern.Status, to),
				fmt.Errorf("pattern %s is %s, not %s", patternID, pattern.Status, from))
		}
		pattern.Status = to
		if err := e.storage.UpdatePatternVersioned(ctx, pattern); err != nil {
			return err
		}
		e.appendTransition(ctx, patternID, from, to, note)
		return nil
	}, e.config.Retry)
}

// Delete soft-deletes a pattern: history is preserved, the pattern is
// just deactivated and marked ENDED.
func (e *ReconciliationEngine) Delete(ctx context.Context, patternID string) error {
	return common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}
		previousStatus := pattern.Status
		pattern.Status = model.StatusEnded
		pattern.IsActive = false
		if err := e.storage.UpdatePatternVersioned(ctx, pattern); err != nil {
			return err
		}
		if previousStatus != model.StatusEnded {
			e.appendTransition(ctx, patternID, previousStatus, model.StatusEnded, "Deleted by user")
		}
		slog.Info("pattern soft-deleted", "pattern", patternID, "merchant", pattern.MerchantName)
		return nil
	}, e.config.Retry)
}

// CreateUserPattern registers a recurring pattern defined explicitly by
// the user: status ACTIVE, detection method USER_DEFINED, confirmed from
// the start. The next expected date is projected from LastOccurrence
// when given, otherwise from today. Validation failures are reported to
// the caller and nothing is written.
func (e *ReconciliationEngine) CreateUserPattern(ctx context.Context, pattern *model.RecurrencePattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.NewString()
	}
	pattern.Status = model.StatusActive
	pattern.DetectionMethod = model.DetectionUserDefined
	pattern.UserConfirmed = true
	pattern.IsActive = true
	if pattern.Frequency != model.FrequencyCustom {
		pattern.IntervalDays = pattern.Frequency.DefaultIntervalDays()
	}
	if pattern.AmountTolerancePercent == 0 {
		pattern.AmountTolerancePercent = model.DefaultTolerancePercent
	}

	anchor := pattern.LastOccurrence
	if anchor.IsZero() {
		anchor = e.now()
	}
	pattern.NextExpectedDate = schedule.NextDate(pattern.Frequency, pattern.IntervalDays, anchor)

	if err := pattern.Validate(); err != nil {
		return common.NewUserError(fmt.Sprintf("Invalid pattern: %v", err), err)
	}

	if err := e.storage.CreatePattern(ctx, pattern); err != nil {
		return err
	}
	e.appendTransition(ctx, pattern.ID, "", model.StatusActive, "Created by user")
	slog.Info("user pattern created",
		"pattern", pattern.ID,
		"merchant", pattern.MerchantName,
		"frequency", pattern.Frequency)
	return nil
}

// PatternPatch carries user edits; nil fields are left unchanged.
type PatternPatch struct {
	MerchantName           *string
	DescriptionPattern     *string
	Category               *string
	CategoryType           *model.CategoryType
	Amount                 *float64
	AmountTolerancePercent *float64
	Frequency              *model.Frequency
	IntervalDays           *int
	Notes                  *string
}

func (patch PatternPatch) applyTo(pattern *model.RecurrencePattern) {
	if patch.MerchantName != nil {
		pattern.MerchantName = *patch.MerchantName
	}
	if patch.DescriptionPattern != nil {
		pattern.DescriptionPattern = *patch.DescriptionPattern
	}
	if patch.Category != nil {
		pattern.Category = *patch.Category
	}
	if patch.CategoryType != nil {
		pattern.CategoryType = *patch.CategoryType
	}
	if patch.Amount != nil {
		pattern.Amount = *patch.Amount
	}
	if patch.AmountTolerancePercent != nil {
		pattern.AmountTolerancePercent = *patch.AmountTolerancePercent
	}
	if patch.Frequency != nil {
		pattern.Frequency = *patch.Frequency
	}
	if patch.IntervalDays != nil {
		pattern.IntervalDays = *patch.IntervalDays
	}
	if patch.Notes != nil {
		pattern.Notes = *patch.Notes
	}
}

// Update applies user edits to a pattern, marks it customized and
// re-validates the result. Validation failures are reported to the
// caller and nothing is written. The write compares-and-swaps on the
// pattern version, re-reading and re-applying the patch on conflict,
// so a concurrent recorded occurrence is never overwritten by a stale
// edit snapshot.
func (e *ReconciliationEngine) Update(ctx context.Context, patternID string, patch PatternPatch) (*model.RecurrencePattern, error) {
	var updated *model.RecurrencePattern
	err := common.WithRetry(ctx, func() error {
		pattern, err := e.storage.GetPattern(ctx, patternID)
		if err != nil {
			return err
		}

		patch.applyTo(pattern)
		pattern.UserCustomized = true

		if err := pattern.Validate(); err != nil {
			return common.NewUserError(fmt.Sprintf("Invalid pattern update: %v", err), err)
		}

		if err := e.storage.UpdatePatternVersioned(ctx, pattern); err != nil {
			return err
		}
		updated = pattern
		return nil
	}, e.config.Retry)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindMatchingPatterns returns the patterns a transaction could belong
// to, best candidates first. Used by detail views for manual linking.
func (e *ReconciliationEngine) FindMatchingPatterns(ctx context.Context, txn model.Transaction) ([]model.RecurrencePattern, error) {
	patterns, err := e.storage.GetMatchablePatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}

	candidates := e.matcher.Evaluate(patterns, txn)
	matches := make([]model.RecurrencePattern, 0, len(candidates))
	for _, c := range candidates {
		if c.Tier == match.TierExact {
			matches = append(matches, c.Pattern)
		}
	}
	for _, c := range candidates {
		if c.Tier == match.TierFuzzy {
			matches = append(matches, c.Pattern)
		}
	}
	return matches, nil
}

// ListActive returns every ACTIVE pattern.
func (e *ReconciliationEngine) ListActive(ctx context.Context) ([]model.RecurrencePattern, error) {
	return e.storage.GetPatternsByStatus(ctx, model.StatusActive)
}

// ListPending returns patterns awaiting user confirmation.
func (e *ReconciliationEngine) ListPending(ctx context.Context) ([]model.RecurrencePattern, error) {
	return e.storage.GetPatternsByStatus(ctx, model.StatusPendingConfirmation)
}

// ListDueSoon returns ACTIVE patterns expected within the next N days.
func (e *ReconciliationEngine) ListDueSoon(ctx context.Context, days int) ([]model.RecurrencePattern, error) {
	today := e.now()
	return e.storage.GetDueSoonPatterns(ctx, today, today.AddDate(0, 0, days))
}

// ListOverdue returns ACTIVE patterns past their expected date plus the
// grace period.
func (e *ReconciliationEngine) ListOverdue(ctx context.Context) ([]model.RecurrencePattern, error) {
	return e.storage.GetOverduePatterns(ctx, e.now())
}
