package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
	"github.com/cadence-dev/cadence/internal/engine"
	"github.com/cadence-dev/cadence/internal/model"
)

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recurring patterns",
		Long: `List recurring patterns. By default only ACTIVE patterns are shown;
use --due, --overdue, --pending or --all to change the selection.`,
		RunE: runList,
	}

	cmd.Flags().Int("due", 0, "Only patterns due within N days")
	cmd.Flags().Bool("overdue", false, "Only patterns past their expected date plus grace period")
	cmd.Flags().Bool("pending", false, "Only patterns awaiting confirmation")
	cmd.Flags().Bool("all", false, "Include paused, ended and irregular patterns")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	dueDays, _ := cmd.Flags().GetInt("due")
	overdue, _ := cmd.Flags().GetBool("overdue")
	pending, _ := cmd.Flags().GetBool("pending")
	all, _ := cmd.Flags().GetBool("all")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng := engine.New(store)

	var patterns []model.RecurrencePattern
	var title string
	switch {
	case overdue:
		patterns, err = eng.ListOverdue(ctx)
		title = "Overdue patterns"
	case dueDays > 0:
		patterns, err = eng.ListDueSoon(ctx, dueDays)
		title = fmt.Sprintf("Patterns due within %d days", dueDays)
	case pending:
		patterns, err = eng.ListPending(ctx)
		title = "Patterns awaiting confirmation"
	case all:
		patterns, err = store.GetPatternsByStatus(ctx,
			model.StatusActive, model.StatusPaused, model.StatusEnded,
			model.StatusIrregular, model.StatusPendingConfirmation)
		title = "All patterns"
	default:
		patterns, err = eng.ListActive(ctx)
		title = "Active patterns"
	}
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatTitle(title))
	fmt.Println(cli.RenderPatternTable(patterns, time.Now().UTC()))
	return nil
}
