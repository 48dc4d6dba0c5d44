package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
	"github.com/cadence-dev/cadence/internal/engine"
	"github.com/cadence-dev/cadence/internal/model"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage recurring patterns",
	}

	cmd.AddCommand(patternsAddCmd())
	cmd.AddCommand(patternsShowCmd())
	cmd.AddCommand(patternsPaidCmd())
	cmd.AddCommand(patternsSkipCmd())
	cmd.AddCommand(patternsPauseCmd())
	cmd.AddCommand(patternsResumeCmd())
	cmd.AddCommand(patternsDeleteCmd())
	cmd.AddCommand(patternsEditCmd())
	return cmd
}

func patternsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Define a recurring pattern by hand",
		Long: `Define a recurring pattern the detector has not (or will not) find.
The pattern starts ACTIVE and immediately participates in matching.

Examples:
  cadence patterns add --merchant "Netflix" --amount 15.99 --frequency MONTHLY
  cadence patterns add --merchant "Rent" --amount -1500 --frequency MONTHLY --last-paid 2024-03-01
  cadence patterns add --merchant "Water Bill" --amount -42 --frequency CUSTOM --interval 45`,
		RunE: runPatternsAdd,
	}

	cmd.Flags().String("merchant", "", "Merchant name (required)")
	cmd.Flags().Float64("amount", 0, "Nominal amount (required)")
	cmd.Flags().String("frequency", "", "Frequency (WEEKLY, BI_WEEKLY, MONTHLY, BI_MONTHLY, QUARTERLY, SEMI_ANNUALLY, ANNUALLY, CUSTOM) (required)")
	cmd.Flags().Int("interval", 0, "Interval in days (CUSTOM frequency only)")
	cmd.Flags().Float64("tolerance", model.DefaultTolerancePercent, "Amount tolerance percent (0-100)")
	cmd.Flags().String("category", "", "Budget category")
	cmd.Flags().String("notes", "", "Free-text notes")
	cmd.Flags().String("last-paid", "", "Date of the most recent payment (YYYY-MM-DD, default: today)")
	_ = cmd.MarkFlagRequired("merchant")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("frequency")
	return cmd
}

func runPatternsAdd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	merchant, _ := cmd.Flags().GetString("merchant")
	amount, _ := cmd.Flags().GetFloat64("amount")
	rawFrequency, _ := cmd.Flags().GetString("frequency")
	interval, _ := cmd.Flags().GetInt("interval")
	tolerance, _ := cmd.Flags().GetFloat64("tolerance")
	category, _ := cmd.Flags().GetString("category")
	notes, _ := cmd.Flags().GetString("notes")

	frequency, err := model.ParseFrequency(rawFrequency)
	if err != nil {
		return err
	}

	pattern := model.RecurrencePattern{
		MerchantName:           merchant,
		Amount:                 amount,
		Frequency:              frequency,
		IntervalDays:           interval,
		AmountTolerancePercent: tolerance,
		Category:               category,
		Notes:                  notes,
	}

	if raw, _ := cmd.Flags().GetString("last-paid"); raw != "" {
		lastPaid, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --last-paid date %q, expected YYYY-MM-DD", raw)
		}
		pattern.FirstOccurrence = lastPaid
		pattern.LastOccurrence = lastPaid
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := engine.New(store).CreateUserPattern(ctx, &pattern); err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Pattern created, next expected %s",
		pattern.NextExpectedDate.Format("2006-01-02"))))
	fmt.Println(cli.RenderPatternDetail(&pattern, nil))
	return nil
}

func patternsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a pattern with its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			pattern, err := store.GetPattern(ctx, args[0])
			if err != nil {
				return err
			}
			events, err := store.GetPatternEvents(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Println(cli.RenderPatternDetail(pattern, events))
			return nil
		},
	}
}

func patternsPaidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paid <id> [date]",
		Short: "Record a payment (confirms a pending pattern)",
		Long: `Record that the pattern's expected payment happened. The date defaults
to today. On a pattern awaiting confirmation this also activates it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			date := time.Now().UTC().Truncate(24 * time.Hour)
			if len(args) == 2 {
				parsed, err := time.Parse("2006-01-02", args[1])
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
				}
				date = parsed
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := engine.New(store).MarkAsPaid(ctx, args[0], date); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Recorded payment on %s", date.Format("2006-01-02"))))
			return nil
		},
	}
}

func patternsSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Skip the next expected occurrence",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternAction("Skipped next occurrence", (*engine.ReconciliationEngine).SkipOccurrence),
	}
}

func patternsPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <id>",
		Short: "Pause an active pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternAction("Pattern paused", (*engine.ReconciliationEngine).Pause),
	}
}

func patternsResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Resume a paused pattern",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternAction("Pattern resumed", (*engine.ReconciliationEngine).Resume),
	}
}

func patternsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pattern (history is kept)",
		Args:  cobra.ExactArgs(1),
		RunE:  runPatternAction("Pattern deleted", (*engine.ReconciliationEngine).Delete),
	}
}

func runPatternAction(message string, action func(*engine.ReconciliationEngine, context.Context, string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := initStorage(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := action(engine.New(store), ctx, args[0]); err != nil {
			return err
		}
		fmt.Println(cli.FormatSuccess(message))
		return nil
	}
}

func patternsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a pattern",
		Long: `Edit a pattern's fields. Only the flags you pass are changed; the
pattern is marked user-customized and re-validated.`,
		Args: cobra.ExactArgs(1),
		RunE: runPatternsEdit,
	}

	cmd.Flags().String("merchant", "", "Merchant name")
	cmd.Flags().Float64("amount", 0, "Nominal amount")
	cmd.Flags().Float64("tolerance", 0, "Amount tolerance percent (0-100)")
	cmd.Flags().String("frequency", "", "Frequency (WEEKLY, BI_WEEKLY, MONTHLY, BI_MONTHLY, QUARTERLY, SEMI_ANNUALLY, ANNUALLY, CUSTOM)")
	cmd.Flags().Int("interval", 0, "Interval in days (CUSTOM frequency only)")
	cmd.Flags().String("category", "", "Budget category")
	cmd.Flags().String("notes", "", "Free-text notes")
	return cmd
}

func runPatternsEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var patch engine.PatternPatch
	if cmd.Flags().Changed("merchant") {
		v, _ := cmd.Flags().GetString("merchant")
		patch.MerchantName = &v
	}
	if cmd.Flags().Changed("amount") {
		v, _ := cmd.Flags().GetFloat64("amount")
		patch.Amount = &v
	}
	if cmd.Flags().Changed("tolerance") {
		v, _ := cmd.Flags().GetFloat64("tolerance")
		patch.AmountTolerancePercent = &v
	}
	if cmd.Flags().Changed("frequency") {
		raw, _ := cmd.Flags().GetString("frequency")
		frequency, err := model.ParseFrequency(raw)
		if err != nil {
			return err
		}
		patch.Frequency = &frequency
	}
	if cmd.Flags().Changed("interval") {
		v, _ := cmd.Flags().GetInt("interval")
		patch.IntervalDays = &v
	}
	if cmd.Flags().Changed("category") {
		v, _ := cmd.Flags().GetString("category")
		patch.Category = &v
	}
	if cmd.Flags().Changed("notes") {
		v, _ := cmd.Flags().GetString("notes")
		patch.Notes = &v
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	updated, err := engine.New(store).Update(ctx, args[0], patch)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess("Pattern updated"))
	fmt.Println(cli.RenderPatternDetail(updated, nil))
	return nil
}
