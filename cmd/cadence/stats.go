package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
)

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show category statistics and monthly recurring totals",
		Long: `Show per-category transaction totals for a date range, plus the
frequency-weighted monthly commitment of all active recurring patterns.`,
		RunE: runStats,
	}

	cmd.Flags().String("from", "", "Start date (YYYY-MM-DD, default: 3 months ago)")
	cmd.Flags().String("to", "", "End date (YYYY-MM-DD, default: today)")
	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	to := time.Now().UTC()
	from := to.AddDate(0, -3, 0)

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --from date %q, expected YYYY-MM-DD", raw)
		}
		from = parsed
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --to date %q, expected YYYY-MM-DD", raw)
		}
		to = parsed
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.GetCategoryStats(ctx, from, to)
	if err != nil {
		return err
	}
	totals, err := store.GetMonthlyRecurringTotals(ctx)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("%s Transactions %s to %s",
		cli.ChartIcon, from.Format("2006-01-02"), to.Format("2006-01-02"))))
	fmt.Println(cli.RenderCategoryStats(stats))
	fmt.Println(cli.FormatTitle("Monthly recurring commitments"))
	fmt.Println(cli.RenderMonthlyTotals(totals))
	return nil
}
