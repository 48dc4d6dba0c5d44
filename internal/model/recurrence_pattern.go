package model

import (
	"fmt"
	"time"
)

// PatternStatus tracks where a recurring pattern is in its lifecycle.
type PatternStatus string

// Pattern status constants.
const (
	StatusActive              PatternStatus = "ACTIVE"
	StatusPaused              PatternStatus = "PAUSED"
	StatusEnded               PatternStatus = "ENDED"
	StatusIrregular           PatternStatus = "IRREGULAR"
	StatusPendingConfirmation PatternStatus = "PENDING_CONFIRMATION"
)

// IsValid reports whether s is a known pattern status.
func (s PatternStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusEnded, StatusIrregular, StatusPendingConfirmation:
		return true
	}
	return false
}

// DetectionMethod records how a recurring pattern was originally identified.
type DetectionMethod string

// Detection method constants.
const (
	DetectionAmountAndMerchant  DetectionMethod = "AMOUNT_AND_MERCHANT"
	DetectionMerchantOnly       DetectionMethod = "MERCHANT_ONLY"
	DetectionDescriptionPattern DetectionMethod = "DESCRIPTION_PATTERN"
	DetectionAmountAndDate      DetectionMethod = "AMOUNT_AND_DATE"
	DetectionMachineLearning    DetectionMethod = "MACHINE_LEARNING"
	DetectionUserDefined        DetectionMethod = "USER_DEFINED"
)

const (
	// DefaultTolerancePercent is the amount tolerance applied to new patterns.
	DefaultTolerancePercent = 5.0
	// GracePeriodDays is the buffer after NextExpectedDate before a
	// pattern counts as overdue.
	GracePeriodDays = 3
)

// RecurrencePattern represents one detected or user-defined recurring
// payment series. Linked transactions hold the back-reference via
// Transaction.PatternID; the pattern never carries a live collection.
type RecurrencePattern struct {
	FirstOccurrence        time.Time
	LastOccurrence         time.Time
	NextExpectedDate       time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ID                     string
	MerchantName           string
	DescriptionPattern     string
	Category               string
	Notes                  string
	Frequency              Frequency
	Status                 PatternStatus
	DetectionMethod        DetectionMethod
	CategoryType           CategoryType
	Amount                 float64
	AmountTolerancePercent float64
	ConfidenceScore        float64
	IntervalDays           int
	OccurrenceCount        int
	// PendingStreak counts consecutive in-tolerance occurrences matched
	// while the pattern awaits confirmation; reaching the promotion
	// threshold activates it automatically.
	PendingStreak int
	Version       int64
	UserConfirmed          bool
	UserCustomized         bool
	IsActive               bool
}

// EffectiveIntervalDays returns the interval the pattern actually runs
// on: the frequency's fixed day count, or IntervalDays for CUSTOM.
func (p *RecurrencePattern) EffectiveIntervalDays() int {
	if p.Frequency == FrequencyCustom {
		return p.IntervalDays
	}
	return p.Frequency.DefaultIntervalDays()
}

// IsOverdue reports whether the pattern is past its expected date plus
// the grace period. Only ACTIVE patterns can be overdue.
func (p *RecurrencePattern) IsOverdue(today time.Time) bool {
	if p.Status != StatusActive {
		return false
	}
	if p.NextExpectedDate.IsZero() {
		return false
	}
	return today.After(p.NextExpectedDate.AddDate(0, 0, GracePeriodDays))
}

// IsDueWithin reports whether the pattern's next expected date falls in
// [today, today+days]. Only ACTIVE patterns are considered due.
func (p *RecurrencePattern) IsDueWithin(today time.Time, days int) bool {
	if p.Status != StatusActive || p.NextExpectedDate.IsZero() {
		return false
	}
	end := today.AddDate(0, 0, days)
	return !p.NextExpectedDate.Before(today) && !p.NextExpectedDate.After(end)
}

// MonthlyAmount converts the pattern's amount to an average monthly
// contribution using its effective interval.
func (p *RecurrencePattern) MonthlyAmount() float64 {
	interval := p.EffectiveIntervalDays()
	if interval <= 0 {
		return 0
	}
	// 30.44 = 365.25 / 12, average days per month.
	return p.Amount * (30.44 / float64(interval))
}

// Validate ensures the pattern satisfies its structural invariants.
func (p *RecurrencePattern) Validate() error {
	if p.MerchantName == "" {
		return fmt.Errorf("merchant name is required")
	}
	if !p.Frequency.IsValid() {
		return fmt.Errorf("invalid frequency %q", p.Frequency)
	}
	if p.Frequency == FrequencyCustom && p.IntervalDays <= 0 {
		return fmt.Errorf("custom frequency requires interval days greater than zero")
	}
	if p.AmountTolerancePercent < 0 || p.AmountTolerancePercent > 100 {
		return fmt.Errorf("amount tolerance must be between 0 and 100")
	}
	if p.ConfidenceScore < 0 || p.ConfidenceScore > 1 {
		return fmt.Errorf("confidence score must be between 0 and 1")
	}
	if p.Status != "" && !p.Status.IsValid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	if p.OccurrenceCount < 0 {
		return fmt.Errorf("occurrence count cannot be negative")
	}
	return nil
}
