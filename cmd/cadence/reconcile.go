package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
	"github.com/cadence-dev/cadence/internal/engine"
	"github.com/cadence-dev/cadence/internal/service"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Match unlinked transactions against known patterns",
		Long: `Run a reconciliation pass: every unlinked transaction is matched
against active and pending patterns, matched occurrences are recorded
and the patterns' schedules advance. Transactions with multiple
plausible candidates are listed for manual resolution.`,
		RunE: runReconcile,
	}
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.GetTransactions(ctx, service.TransactionFilter{UnlinkedOnly: true})
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	eng := engine.New(store)
	result, err := eng.Reconcile(ctx, transactions)
	if err != nil {
		return err
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Matched %d transactions, %d left unlinked", result.Matched, result.Unmatched)))
	if result.StaleFlagged > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d patterns flagged as potentially ended", result.StaleFlagged)))
	}
	if len(result.ConflictedPatterns) > 0 {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d patterns skipped after write conflicts; re-run to catch up", len(result.ConflictedPatterns))))
	}

	for _, ambiguous := range result.Ambiguous {
		fmt.Println(cli.FormatWarning(fmt.Sprintf(
			"%s %q %.2f matches %d patterns; link manually with 'cadence patterns show'",
			ambiguous.Transaction.Date.Format("2006-01-02"),
			ambiguous.Transaction.Merchant(),
			ambiguous.Transaction.Amount,
			len(ambiguous.Candidates))))
	}
	return nil
}
