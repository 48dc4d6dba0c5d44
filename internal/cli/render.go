package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/service"
)

// RenderPatternTable formats patterns as an aligned table. The asOf date
// drives the overdue marker so output is reproducible.
func RenderPatternTable(patterns []model.RecurrencePattern, asOf time.Time) string {
	if len(patterns) == 0 {
		return SubtleStyle.Render("No patterns found.")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-36s %-24s %-12s %10s %12s %6s %s",
		"ID", "MERCHANT", "FREQUENCY", "AMOUNT", "NEXT DUE", "CONF", "STATUS")
	b.WriteString(TableHeaderStyle.Render(header))
	b.WriteString("\n")

	for _, p := range patterns {
		next := "-"
		if !p.NextExpectedDate.IsZero() {
			next = p.NextExpectedDate.Format("2006-01-02")
		}
		row := fmt.Sprintf("%-36s %-24s %-12s %10.2f %12s %5.0f%% %s",
			p.ID, truncate(p.MerchantName, 24), p.Frequency,
			p.Amount, next, p.ConfidenceScore*100, renderStatus(&p, asOf))
		b.WriteString(TableCellStyle.Render(row))
		b.WriteString("\n")
	}
	return b.String()
}

func renderStatus(p *model.RecurrencePattern, asOf time.Time) string {
	if p.IsOverdue(asOf) {
		return ErrorStyle.Render(OverdueIcon + " OVERDUE")
	}
	switch p.Status {
	case model.StatusActive:
		return SuccessStyle.Render(string(p.Status))
	case model.StatusPendingConfirmation, model.StatusIrregular:
		return WarningStyle.Render(string(p.Status))
	default:
		return SubtleStyle.Render(string(p.Status))
	}
}

// RenderPatternDetail formats one pattern with its audit trail.
func RenderPatternDetail(p *model.RecurrencePattern, events []model.PatternEvent) string {
	var b strings.Builder
	b.WriteString(FormatTitle(p.MerchantName))
	b.WriteString("\n")

	write := func(label, value string) {
		b.WriteString(fmt.Sprintf("%-18s %s\n", SubtleStyle.Render(label), value))
	}
	write("ID", p.ID)
	write("Status", string(p.Status))
	write("Frequency", fmt.Sprintf("%s (every %d days)", p.Frequency, p.EffectiveIntervalDays()))
	write("Amount", fmt.Sprintf("%.2f ± %.0f%%", p.Amount, p.AmountTolerancePercent))
	write("Confidence", fmt.Sprintf("%.0f%%", p.ConfidenceScore*100))
	write("Occurrences", fmt.Sprintf("%d", p.OccurrenceCount))
	if !p.NextExpectedDate.IsZero() {
		write("Next expected", p.NextExpectedDate.Format("2006-01-02"))
	}
	if !p.LastOccurrence.IsZero() {
		write("Last occurrence", p.LastOccurrence.Format("2006-01-02"))
	}
	write("Detection", string(p.DetectionMethod))
	if p.Category != "" {
		write("Category", fmt.Sprintf("%s (%s)", p.Category, p.CategoryType))
	}
	if p.Notes != "" {
		write("Notes", p.Notes)
	}

	if len(events) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTitle("History"))
		b.WriteString("\n")
		for _, event := range events {
			line := fmt.Sprintf("%s  %s",
				event.CreatedAt.Format("2006-01-02 15:04"), describeEvent(event))
			b.WriteString(SubtleStyle.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func describeEvent(event model.PatternEvent) string {
	switch {
	case event.FromStatus == "" && event.Note != "":
		return event.Note
	case event.Note != "":
		return fmt.Sprintf("%s → %s (%s)", event.FromStatus, event.ToStatus, event.Note)
	default:
		return fmt.Sprintf("%s → %s", event.FromStatus, event.ToStatus)
	}
}

// RenderCategoryStats formats per-category transaction totals.
func RenderCategoryStats(stats []service.CategoryStat) string {
	if len(stats) == 0 {
		return SubtleStyle.Render("No transactions in range.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-24s %8s %12s", "CATEGORY", "COUNT", "TOTAL")))
	b.WriteString("\n")
	for _, stat := range stats {
		category := stat.Category
		if category == "" {
			category = "(uncategorized)"
		}
		b.WriteString(fmt.Sprintf("%-24s %8d %12.2f\n", truncate(category, 24), stat.Count, stat.TotalAmount))
	}
	return b.String()
}

// RenderMonthlyTotals formats the frequency-weighted monthly commitment
// per category.
func RenderMonthlyTotals(totals []service.MonthlyCategoryTotal) string {
	if len(totals) == 0 {
		return SubtleStyle.Render("No active recurring patterns.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-24s %9s %12s", "CATEGORY", "PATTERNS", "PER MONTH")))
	b.WriteString("\n")
	var grand float64
	for _, total := range totals {
		category := total.Category
		if category == "" {
			category = "(uncategorized)"
		}
		b.WriteString(fmt.Sprintf("%-24s %9d %12.2f\n", truncate(category, 24), total.PatternCount, total.MonthlyAmount))
		grand += total.MonthlyAmount
	}
	b.WriteString(TableCellStyle.Render(fmt.Sprintf("%-24s %9s %12.2f", "TOTAL", "", grand)))
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
