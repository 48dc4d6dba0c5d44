package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/service"
)

func samplePattern() model.RecurrencePattern {
	return model.RecurrencePattern{
		ID:                     "pat-1",
		MerchantName:           "Netflix",
		Frequency:              model.FrequencyMonthly,
		Status:                 model.StatusActive,
		DetectionMethod:        model.DetectionAmountAndMerchant,
		Amount:                 15.99,
		AmountTolerancePercent: 5,
		ConfidenceScore:        0.85,
		OccurrenceCount:        6,
		NextExpectedDate:       time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
		IsActive:               true,
	}
}

func TestRenderPatternTable(t *testing.T) {
	asOf := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		out := RenderPatternTable(nil, asOf)
		assert.Contains(t, out, "No patterns")
	})

	t.Run("rows", func(t *testing.T) {
		out := RenderPatternTable([]model.RecurrencePattern{samplePattern()}, asOf)
		assert.Contains(t, out, "Netflix")
		assert.Contains(t, out, "15.99")
		assert.Contains(t, out, "2024-05-05")
		assert.Contains(t, out, "ACTIVE")
		assert.NotContains(t, out, "OVERDUE")
	})

	t.Run("overdue marker", func(t *testing.T) {
		late := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
		out := RenderPatternTable([]model.RecurrencePattern{samplePattern()}, late)
		assert.Contains(t, out, "OVERDUE")
	})
}

func TestRenderPatternDetail(t *testing.T) {
	p := samplePattern()
	p.Notes = "confirmed by user"
	events := []model.PatternEvent{
		{
			CreatedAt:  time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC),
			PatternID:  "pat-1",
			FromStatus: model.StatusPendingConfirmation,
			ToStatus:   model.StatusActive,
			Note:       "Marked as paid on 2024-03-05",
		},
	}

	out := RenderPatternDetail(&p, events)
	assert.Contains(t, out, "Netflix")
	assert.Contains(t, out, "MONTHLY")
	assert.Contains(t, out, "confirmed by user")
	assert.Contains(t, out, "Marked as paid on 2024-03-05")
	assert.Contains(t, out, "2024-03-05 12:00")
}

func TestRenderCategoryStats(t *testing.T) {
	out := RenderCategoryStats([]service.CategoryStat{
		{Category: "Entertainment", Count: 3, TotalAmount: 41.97},
		{Category: "", Count: 1, TotalAmount: 5.00},
	})
	assert.Contains(t, out, "Entertainment")
	assert.Contains(t, out, "41.97")
	assert.Contains(t, out, "(uncategorized)")
}

func TestRenderMonthlyTotals(t *testing.T) {
	out := RenderMonthlyTotals([]service.MonthlyCategoryTotal{
		{Category: "Entertainment", PatternCount: 2, MonthlyAmount: 25.98},
		{Category: "Household", PatternCount: 1, MonthlyAmount: 260.91},
	})
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "286.89")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := truncate("A Very Long Merchant Name Indeed", 10)
	assert.Equal(t, 10, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}
