// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/cadence-dev/cadence/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	MerchantName string
	PatternID    string
	UnlinkedOnly bool
	Limit        int
	Offset       int
}

// Storage defines the contract for the persistence gateway.
type Storage interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	GetUnlinkedTransactions(ctx context.Context) ([]model.Transaction, error)
	GetTransactionsForPattern(ctx context.Context, patternID string) ([]model.Transaction, error)
	LinkTransaction(ctx context.Context, transactionID, patternID string) error

	// Pattern operations
	CreatePattern(ctx context.Context, pattern *model.RecurrencePattern) error
	GetPattern(ctx context.Context, id string) (*model.RecurrencePattern, error)
	GetPatternsByStatus(ctx context.Context, statuses ...model.PatternStatus) ([]model.RecurrencePattern, error)
	GetMatchablePatterns(ctx context.Context) ([]model.RecurrencePattern, error)
	GetOverduePatterns(ctx context.Context, asOf time.Time) ([]model.RecurrencePattern, error)
	GetDueSoonPatterns(ctx context.Context, from, to time.Time) ([]model.RecurrencePattern, error)
	FindPotentialPatterns(ctx context.Context, merchantName string, amount float64) ([]model.RecurrencePattern, error)
	UpdatePattern(ctx context.Context, pattern *model.RecurrencePattern) error
	UpdatePatternVersioned(ctx context.Context, pattern *model.RecurrencePattern) error

	// Audit trail
	AppendPatternEvent(ctx context.Context, event *model.PatternEvent) error
	GetPatternEvents(ctx context.Context, patternID string) ([]model.PatternEvent, error)

	// Aggregation queries consumed by external views
	GetCategoryStats(ctx context.Context, start, end time.Time) ([]CategoryStat, error)
	GetMonthlyRecurringTotals(ctx context.Context) ([]MonthlyCategoryTotal, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// CategoryStat aggregates linked transactions for one category over a
// date range.
type CategoryStat struct {
	Category    string
	Count       int
	TotalAmount float64
}

// MonthlyCategoryTotal is the frequency-weighted monthly commitment for
// one category across its active patterns.
type MonthlyCategoryTotal struct {
	Category      string
	MonthlyAmount float64
	PatternCount  int
}

// DateRange represents a time period with start and end dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}
