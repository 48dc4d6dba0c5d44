package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
	"github.com/cadence-dev/cadence/internal/engine"
)

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Detect new recurring patterns in unlinked transactions",
		Long: `Scan all unlinked transactions for recurring series and propose new
patterns. Proposed patterns await confirmation ('cadence patterns paid'
confirms one); re-running without new data creates no duplicates.`,
		RunE: runAnalyze,
	}
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	created, err := engine.New(store).Analyze(ctx)
	if err != nil {
		return err
	}

	if len(created) == 0 {
		fmt.Println(cli.FormatSuccess("No new recurring patterns found."))
		return nil
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Detected %d new patterns", len(created))))
	fmt.Println(cli.RenderPatternTable(created, time.Now().UTC()))
	fmt.Println(cli.FormatWarning("Confirm with 'cadence patterns paid <id> <date>' or remove with 'cadence patterns delete <id>'"))
	return nil
}
