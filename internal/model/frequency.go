package model

import "fmt"

// Frequency identifies the cadence of a recurring payment series.
type Frequency string

const (
	// FrequencyWeekly repeats every 7 days.
	FrequencyWeekly Frequency = "WEEKLY"
	// FrequencyBiWeekly repeats every 14 days.
	FrequencyBiWeekly Frequency = "BI_WEEKLY"
	// FrequencyMonthly repeats every calendar month.
	FrequencyMonthly Frequency = "MONTHLY"
	// FrequencyBiMonthly repeats every two calendar months.
	FrequencyBiMonthly Frequency = "BI_MONTHLY"
	// FrequencyQuarterly repeats every three calendar months.
	FrequencyQuarterly Frequency = "QUARTERLY"
	// FrequencySemiAnnually repeats every six calendar months.
	FrequencySemiAnnually Frequency = "SEMI_ANNUALLY"
	// FrequencyAnnually repeats every calendar year.
	FrequencyAnnually Frequency = "ANNUALLY"
	// FrequencyCustom repeats every IntervalDays days.
	FrequencyCustom Frequency = "CUSTOM"
)

// Frequencies lists every valid frequency in ascending interval order.
var Frequencies = []Frequency{
	FrequencyWeekly,
	FrequencyBiWeekly,
	FrequencyMonthly,
	FrequencyBiMonthly,
	FrequencyQuarterly,
	FrequencySemiAnnually,
	FrequencyAnnually,
	FrequencyCustom,
}

// DefaultIntervalDays returns the nominal day count for a frequency.
// CUSTOM has no fixed interval and returns 0; the pattern's IntervalDays
// field is authoritative in that case.
func (f Frequency) DefaultIntervalDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiWeekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyBiMonthly:
		return 61
	case FrequencyQuarterly:
		return 91
	case FrequencySemiAnnually:
		return 182
	case FrequencyAnnually:
		return 365
	case FrequencyCustom:
		return 0
	}
	return 0
}

// IsValid reports whether f is a known frequency.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyBiMonthly,
		FrequencyQuarterly, FrequencySemiAnnually, FrequencyAnnually, FrequencyCustom:
		return true
	}
	return false
}

// ParseFrequency converts a stored string into a Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if !f.IsValid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}
