package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadence-dev/cadence/internal/match"
	"github.com/cadence-dev/cadence/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDate(t *testing.T) {
	tests := []struct {
		from         time.Time
		want         time.Time
		name         string
		frequency    model.Frequency
		intervalDays int
	}{
		{name: "weekly", frequency: model.FrequencyWeekly, from: date(2024, 3, 5), want: date(2024, 3, 12)},
		{name: "bi-weekly", frequency: model.FrequencyBiWeekly, from: date(2024, 3, 5), want: date(2024, 3, 19)},
		{name: "monthly", frequency: model.FrequencyMonthly, from: date(2024, 3, 5), want: date(2024, 4, 5)},
		{name: "monthly clamps leap february", frequency: model.FrequencyMonthly, from: date(2024, 1, 31), want: date(2024, 2, 29)},
		{name: "monthly clamps non-leap february", frequency: model.FrequencyMonthly, from: date(2023, 1, 31), want: date(2023, 2, 28)},
		{name: "monthly clamps 30-day month", frequency: model.FrequencyMonthly, from: date(2024, 3, 31), want: date(2024, 4, 30)},
		{name: "monthly across year boundary", frequency: model.FrequencyMonthly, from: date(2023, 12, 15), want: date(2024, 1, 15)},
		{name: "bi-monthly", frequency: model.FrequencyBiMonthly, from: date(2024, 1, 15), want: date(2024, 3, 15)},
		{name: "quarterly", frequency: model.FrequencyQuarterly, from: date(2024, 1, 31), want: date(2024, 4, 30)},
		{name: "semi-annually", frequency: model.FrequencySemiAnnually, from: date(2024, 1, 10), want: date(2024, 7, 10)},
		{name: "annually", frequency: model.FrequencyAnnually, from: date(2024, 2, 29), want: date(2025, 2, 28)},
		{name: "custom interval", frequency: model.FrequencyCustom, intervalDays: 45, from: date(2024, 1, 1), want: date(2024, 2, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDate(tt.frequency, tt.intervalDays, tt.from)
			assert.True(t, got.Equal(tt.want), "NextDate() = %s, want %s", got, tt.want)
		})
	}
}

func newTestPattern() model.RecurrencePattern {
	return model.RecurrencePattern{
		ID:                     "pat-1",
		MerchantName:           "Netflix",
		Frequency:              model.FrequencyMonthly,
		Status:                 model.StatusActive,
		Amount:                 15.99,
		AmountTolerancePercent: model.DefaultTolerancePercent,
		OccurrenceCount:        3,
		FirstOccurrence:        date(2024, 1, 5),
		LastOccurrence:         date(2024, 3, 5),
		NextExpectedDate:       date(2024, 4, 5),
		IsActive:               true,
	}
}

func TestRecordOccurrence(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()

	pr.RecordOccurrence(&p, date(2024, 4, 5), 15.99)

	assert.Equal(t, 4, p.OccurrenceCount)
	assert.True(t, p.LastOccurrence.Equal(date(2024, 4, 5)))
	assert.True(t, p.NextExpectedDate.Equal(date(2024, 5, 5)))
	assert.InDelta(t, 15.99, p.Amount, 0.001)
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestRecordOccurrence_BlendsInToleranceAmount(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()
	p.Amount = 100.00
	p.OccurrenceCount = 9 // becomes 10 after recording, full blend weight

	pr.RecordOccurrence(&p, date(2024, 4, 5), 104.00)

	// weight 1.0, step 0.1: 100*0.9 + 104*0.1 = 100.40
	assert.InDelta(t, 100.40, p.Amount, 0.001)
}

func TestRecordOccurrence_IgnoresOutOfToleranceAmount(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()
	p.Amount = 100.00

	pr.RecordOccurrence(&p, date(2024, 4, 5), 180.00)

	assert.InDelta(t, 100.00, p.Amount, 0.001)
	assert.Equal(t, 4, p.OccurrenceCount)
}

func TestRecordOccurrence_WeightGrowsWithHistory(t *testing.T) {
	pr := NewProjector(match.NewMatcher())

	young := newTestPattern()
	young.Amount = 100.00
	young.OccurrenceCount = 0

	old := newTestPattern()
	old.Amount = 100.00
	old.OccurrenceCount = 20

	pr.RecordOccurrence(&young, date(2024, 4, 5), 104.00)
	pr.RecordOccurrence(&old, date(2024, 4, 5), 104.00)

	// weight caps at 1.0 for established patterns; young pattern moves less.
	assert.InDelta(t, 100.04, young.Amount, 0.001)
	assert.InDelta(t, 100.40, old.Amount, 0.001)
}

func TestRecordOccurrence_NeverDecreasesCount(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()

	for i := 0; i < 5; i++ {
		before := p.OccurrenceCount
		pr.RecordOccurrence(&p, p.NextExpectedDate, 15.99)
		require.Equal(t, before+1, p.OccurrenceCount)
	}
}

func TestRecordOccurrence_SetsFirstOccurrence(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()
	p.FirstOccurrence = time.Time{}
	p.OccurrenceCount = 0

	pr.RecordOccurrence(&p, date(2024, 4, 5), 15.99)

	assert.True(t, p.FirstOccurrence.Equal(date(2024, 4, 5)))
}

func TestSkipOccurrence(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()
	p.NextExpectedDate = date(2024, 5, 1)

	pr.SkipOccurrence(&p)

	assert.True(t, p.NextExpectedDate.Equal(date(2024, 6, 1)))
	assert.Equal(t, 3, p.OccurrenceCount, "skip must not change occurrence count")
	assert.True(t, strings.Contains(p.Notes, "2024-05-01"), "note should mention the skipped date")
}

func TestSkipOccurrence_AppendsNotes(t *testing.T) {
	pr := NewProjector(match.NewMatcher())
	p := newTestPattern()
	p.Notes = "user created"
	p.NextExpectedDate = date(2024, 5, 1)

	pr.SkipOccurrence(&p)
	pr.SkipOccurrence(&p)

	lines := strings.Split(p.Notes, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "user created", lines[0])
	assert.Contains(t, lines[1], "2024-05-01")
	assert.Contains(t, lines[2], "2024-06-01")
}
