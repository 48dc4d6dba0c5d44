package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadence-dev/cadence/internal/common"
	"github.com/cadence-dev/cadence/internal/model"
)

const patternColumns = `id, merchant_name, description_pattern, category, category_type,
	amount, amount_tolerance_percent, frequency, interval_days,
	first_occurrence, last_occurrence, next_expected_date,
	occurrence_count, pending_streak, confidence_score, status, detection_method,
	user_confirmed, user_customized, is_active, notes, version,
	created_at, updated_at`

// CreatePattern persists a new recurrence pattern.
func (s *SQLiteStorage) CreatePattern(ctx context.Context, pattern *model.RecurrencePattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	now := time.Now().UTC()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	if pattern.UpdatedAt.IsZero() {
		pattern.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurrence_patterns (
			id, merchant_name, merchant_key, description_pattern, category, category_type,
			amount, amount_tolerance_percent, frequency, interval_days,
			first_occurrence, last_occurrence, next_expected_date,
			occurrence_count, pending_streak, confidence_score, status, detection_method,
			user_confirmed, user_customized, is_active, notes, version,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pattern.ID, pattern.MerchantName, model.NormalizeMerchant(pattern.MerchantName),
		pattern.DescriptionPattern, pattern.Category, string(pattern.CategoryType),
		pattern.Amount, pattern.AmountTolerancePercent, string(pattern.Frequency), pattern.IntervalDays,
		nullTime(pattern.FirstOccurrence), nullTime(pattern.LastOccurrence), nullTime(pattern.NextExpectedDate),
		pattern.OccurrenceCount, pattern.PendingStreak, pattern.ConfidenceScore, string(pattern.Status), string(pattern.DetectionMethod),
		pattern.UserConfirmed, pattern.UserCustomized, pattern.IsActive, pattern.Notes, pattern.Version,
		pattern.CreatedAt, pattern.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("pattern %s: %w", pattern.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create pattern: %w", err)
	}

	slog.Info("created recurrence pattern",
		"id", pattern.ID,
		"merchant", pattern.MerchantName,
		"frequency", pattern.Frequency)
	return nil
}

// GetPattern retrieves a pattern by ID.
func (s *SQLiteStorage) GetPattern(ctx context.Context, id string) (*model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns WHERE id = ?`, patternColumns)
	pattern, err := scanPattern(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pattern %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern: %w", err)
	}
	return pattern, nil
}

// GetPatternsByStatus returns patterns in any of the given statuses,
// most recently updated first.
func (s *SQLiteStorage) GetPatternsByStatus(ctx context.Context, statuses ...model.PatternStatus) ([]model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: statuses", ErrEmptySlice)
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns
		WHERE status IN (%s)
		ORDER BY updated_at DESC`, patternColumns, strings.Join(placeholders, ", "))
	return s.queryPatterns(ctx, query, args...)
}

// GetMatchablePatterns returns the patterns new transactions should be
// matched against: active and pending-confirmation ones.
func (s *SQLiteStorage) GetMatchablePatterns(ctx context.Context) ([]model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns
		WHERE is_active = 1 AND status IN (?, ?)
		ORDER BY merchant_name ASC`, patternColumns)
	return s.queryPatterns(ctx, query, string(model.StatusActive), string(model.StatusPendingConfirmation))
}

// GetOverduePatterns returns ACTIVE patterns whose next expected date
// plus the grace period has passed as of the given date.
func (s *SQLiteStorage) GetOverduePatterns(ctx context.Context, asOf time.Time) ([]model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	cutoff := asOf.AddDate(0, 0, -model.GracePeriodDays)
	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns
		WHERE status = ? AND next_expected_date IS NOT NULL AND next_expected_date < ?
		ORDER BY next_expected_date ASC`, patternColumns)
	return s.queryPatterns(ctx, query, string(model.StatusActive), cutoff)
}

// GetDueSoonPatterns returns ACTIVE patterns expected in [from, to].
func (s *SQLiteStorage) GetDueSoonPatterns(ctx context.Context, from, to time.Time) ([]model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, ErrInvalidDateRange
	}

	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns
		WHERE status = ? AND next_expected_date >= ? AND next_expected_date <= ?
		ORDER BY next_expected_date ASC`, patternColumns)
	return s.queryPatterns(ctx, query, string(model.StatusActive), from, to)
}

// FindPotentialPatterns returns active or pending patterns with the
// same normalized merchant whose tolerance band covers the amount.
// Used both for interactive "find matches" lookups and as the detector's
// duplicate guard.
func (s *SQLiteStorage) FindPotentialPatterns(ctx context.Context, merchantName string, amount float64) ([]model.RecurrencePattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(merchantName, "merchantName"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM recurrence_patterns
		WHERE merchant_key = ?
		  AND is_active = 1
		  AND status IN (?, ?)
		  AND ABS(amount - ?) <= ABS(amount) * amount_tolerance_percent / 100.0
		ORDER BY confidence_score DESC`, patternColumns)
	return s.queryPatterns(ctx, query,
		model.NormalizeMerchant(merchantName),
		string(model.StatusActive), string(model.StatusPendingConfirmation),
		amount)
}

// UpdatePattern writes the pattern unconditionally and bumps its
// version. Reserved for single-writer paths such as user edits; batch
// occurrence recording must go through UpdatePatternVersioned.
func (s *SQLiteStorage) UpdatePattern(ctx context.Context, pattern *model.RecurrencePattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	pattern.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, updatePatternSQL+` WHERE id = ?`,
		patternUpdateArgs(pattern, pattern.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("pattern %s: %w", pattern.ID, common.ErrNotFound)
	}

	pattern.Version++
	return nil
}

// UpdatePatternVersioned writes the pattern only if its version column
// still matches pattern.Version, then increments it. A mismatch means a
// concurrent writer got there first; the caller re-reads and retries.
func (s *SQLiteStorage) UpdatePatternVersioned(ctx context.Context, pattern *model.RecurrencePattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePattern(pattern); err != nil {
		return err
	}

	pattern.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, updatePatternSQL+` WHERE id = ? AND version = ?`,
		patternUpdateArgs(pattern, pattern.ID, pattern.Version)...)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM recurrence_patterns WHERE id = ?)`,
			pattern.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check pattern existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("pattern %s: %w", pattern.ID, common.ErrNotFound)
		}
		return fmt.Errorf("pattern %s: %w", pattern.ID, common.ErrConflict)
	}

	pattern.Version++
	return nil
}

// updatePatternSQL bumps version on every write; both update paths share it.
const updatePatternSQL = `
	UPDATE recurrence_patterns SET
		merchant_name = ?,
		merchant_key = ?,
		description_pattern = ?,
		category = ?,
		category_type = ?,
		amount = ?,
		amount_tolerance_percent = ?,
		frequency = ?,
		interval_days = ?,
		first_occurrence = ?,
		last_occurrence = ?,
		next_expected_date = ?,
		occurrence_count = ?,
		pending_streak = ?,
		confidence_score = ?,
		status = ?,
		detection_method = ?,
		user_confirmed = ?,
		user_customized = ?,
		is_active = ?,
		notes = ?,
		version = version + 1,
		updated_at = ?`

func patternUpdateArgs(p *model.RecurrencePattern, whereArgs ...any) []any {
	args := []any{
		p.MerchantName, model.NormalizeMerchant(p.MerchantName),
		p.DescriptionPattern, p.Category, string(p.CategoryType),
		p.Amount, p.AmountTolerancePercent, string(p.Frequency), p.IntervalDays,
		nullTime(p.FirstOccurrence), nullTime(p.LastOccurrence), nullTime(p.NextExpectedDate),
		p.OccurrenceCount, p.PendingStreak, p.ConfidenceScore, string(p.Status), string(p.DetectionMethod),
		p.UserConfirmed, p.UserCustomized, p.IsActive, p.Notes,
		p.UpdatedAt,
	}
	return append(args, whereArgs...)
}

// AppendPatternEvent records one status transition or notable action.
func (s *SQLiteStorage) AppendPatternEvent(ctx context.Context, event *model.PatternEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: event", ErrNilParameter)
	}
	if err := validateString(event.PatternID, "event.PatternID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO pattern_events (pattern_id, from_status, to_status, note)
		VALUES (?, ?, ?, ?)`,
		event.PatternID, string(event.FromStatus), string(event.ToStatus), event.Note)
	if err != nil {
		return fmt.Errorf("failed to append pattern event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	return nil
}

// GetPatternEvents returns a pattern's audit trail, oldest first.
func (s *SQLiteStorage) GetPatternEvents(ctx context.Context, patternID string) ([]model.PatternEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pattern_id, from_status, to_status, note, created_at
		FROM pattern_events
		WHERE pattern_id = ?
		ORDER BY id ASC`, patternID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.PatternEvent
	for rows.Next() {
		var event model.PatternEvent
		var fromStatus, toStatus string
		if err := rows.Scan(&event.ID, &event.PatternID, &fromStatus, &toStatus, &event.Note, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pattern event: %w", err)
		}
		event.FromStatus = model.PatternStatus(fromStatus)
		event.ToStatus = model.PatternStatus(toStatus)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pattern events: %w", err)
	}
	return events, nil
}

func (s *SQLiteStorage) queryPatterns(ctx context.Context, query string, args ...any) ([]model.RecurrencePattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.RecurrencePattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, *pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}
	return patterns, nil
}

func scanPattern(row rowScanner) (*model.RecurrencePattern, error) {
	var p model.RecurrencePattern
	var frequency, status, detectionMethod, categoryType string
	var first, last, next sql.NullTime

	err := row.Scan(
		&p.ID, &p.MerchantName, &p.DescriptionPattern, &p.Category, &categoryType,
		&p.Amount, &p.AmountTolerancePercent, &frequency, &p.IntervalDays,
		&first, &last, &next,
		&p.OccurrenceCount, &p.PendingStreak, &p.ConfidenceScore, &status, &detectionMethod,
		&p.UserConfirmed, &p.UserCustomized, &p.IsActive, &p.Notes, &p.Version,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Frequency = model.Frequency(frequency)
	p.Status = model.PatternStatus(status)
	p.DetectionMethod = model.DetectionMethod(detectionMethod)
	p.CategoryType = model.CategoryType(categoryType)
	p.FirstOccurrence = first.Time
	p.LastOccurrence = last.Time
	p.NextExpectedDate = next.Time
	return &p, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
