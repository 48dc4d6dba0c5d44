package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/service"
)

// GetCategoryStats aggregates transaction counts and totals per category
// over a date range.
func (s *SQLiteStorage) GetCategoryStats(ctx context.Context, start, end time.Time) ([]service.CategoryStat, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(category, ''), COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE date >= ? AND date <= ?
		GROUP BY category
		ORDER BY category ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query category stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var stats []service.CategoryStat
	for rows.Next() {
		var stat service.CategoryStat
		if err := rows.Scan(&stat.Category, &stat.Count, &stat.TotalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan category stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category stats: %w", err)
	}
	return stats, nil
}

// GetMonthlyRecurringTotals computes the frequency-weighted monthly
// commitment per category across active patterns. A weekly $10 pattern
// contributes roughly $43.49/month, an annual $120 pattern $10/month.
func (s *SQLiteStorage) GetMonthlyRecurringTotals(ctx context.Context) ([]service.MonthlyCategoryTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	patterns, err := s.GetPatternsByStatus(ctx, model.StatusActive)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]*service.MonthlyCategoryTotal)
	for i := range patterns {
		p := &patterns[i]
		total, ok := byCategory[p.Category]
		if !ok {
			total = &service.MonthlyCategoryTotal{Category: p.Category}
			byCategory[p.Category] = total
		}
		total.MonthlyAmount += p.MonthlyAmount()
		total.PatternCount++
	}

	totals := make([]service.MonthlyCategoryTotal, 0, len(byCategory))
	for _, total := range byCategory {
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Category < totals[j].Category })
	return totals, nil
}
