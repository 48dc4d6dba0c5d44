// Package schedule projects when the next occurrence of a recurring
// pattern is due and applies occurrence updates to pattern state.
package schedule

import (
	"fmt"
	"time"

	"github.com/cadence-dev/cadence/internal/match"
	"github.com/cadence-dev/cadence/internal/model"
)

// Amount blend parameters. An observed in-tolerance amount is folded
// into the pattern's nominal amount via a capped weighted average:
// weight = min(occurrenceCount, blendCap) / blendCap, and the new
// amount moves by weight*blendStep toward the observation. Treat these
// as tunable heuristics, not calibrated constants.
const (
	blendCap  = 10
	blendStep = 0.1
)

// Projector computes next expected dates and records occurrences.
type Projector struct {
	matcher *match.Matcher
}

// NewProjector creates a projector using the given tolerance matcher.
func NewProjector(matcher *match.Matcher) *Projector {
	return &Projector{matcher: matcher}
}

// NextDate returns the next expected date after from for the given
// cadence. Month-based frequencies advance by calendar months and clamp
// to the last day of the target month when the anchor day does not
// exist (Jan 31 -> Feb 28/29).
func NextDate(frequency model.Frequency, intervalDays int, from time.Time) time.Time {
	switch frequency {
	case model.FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case model.FrequencyBiWeekly:
		return from.AddDate(0, 0, 14)
	case model.FrequencyMonthly:
		return addMonthsClamped(from, 1)
	case model.FrequencyBiMonthly:
		return addMonthsClamped(from, 2)
	case model.FrequencyQuarterly:
		return addMonthsClamped(from, 3)
	case model.FrequencySemiAnnually:
		return addMonthsClamped(from, 6)
	case model.FrequencyAnnually:
		return addMonthsClamped(from, 12)
	case model.FrequencyCustom:
		return from.AddDate(0, 0, intervalDays)
	}
	return from
}

// addMonthsClamped advances by whole calendar months, clamping the day
// of month instead of letting time.AddDate normalize past month end.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// RecordOccurrence applies one confirmed occurrence to the pattern:
// last-occurrence and projection advance, the occurrence count grows by
// one, and an in-tolerance observed amount is blended into the nominal
// amount. The count never decreases.
func (pr *Projector) RecordOccurrence(p *model.RecurrencePattern, occurrenceDate time.Time, observedAmount float64) {
	if p.FirstOccurrence.IsZero() || occurrenceDate.Before(p.FirstOccurrence) {
		p.FirstOccurrence = occurrenceDate
	}
	p.LastOccurrence = occurrenceDate
	p.NextExpectedDate = NextDate(p.Frequency, p.IntervalDays, occurrenceDate)
	p.OccurrenceCount++

	if pr.matcher.WithinTolerance(p, observedAmount) {
		count := p.OccurrenceCount
		if count > blendCap {
			count = blendCap
		}
		weight := float64(count) / float64(blendCap)
		p.Amount = p.Amount*(1-weight*blendStep) + observedAmount*(weight*blendStep)
	}

	p.UpdatedAt = time.Now().UTC()
}

// SkipOccurrence advances the projection from the current expected date
// (not from today) without recording an occurrence. A human-readable
// note is appended so the gap is explained in the pattern history.
func (pr *Projector) SkipOccurrence(p *model.RecurrencePattern) {
	skipped := p.NextExpectedDate
	p.NextExpectedDate = NextDate(p.Frequency, p.IntervalDays, skipped)

	note := fmt.Sprintf("Skipped occurrence expected on %s", skipped.Format("2006-01-02"))
	if p.Notes == "" {
		p.Notes = note
	} else {
		p.Notes += "\n" + note
	}

	p.UpdatedAt = time.Now().UTC()
}
