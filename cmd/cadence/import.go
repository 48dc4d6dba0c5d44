package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cadence-dev/cadence/internal/cli"
	csvimport "github.com/cadence-dev/cadence/internal/csv"
	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import transactions from OFX/QFX or CSV files",
		Long: `Import bank transactions from OFX, QFX or CSV exports. Duplicate
transactions (same date, amount, merchant and account) are skipped, so
re-importing a statement is safe.

Examples:
  cadence import ~/Downloads/checking_jan.qfx
  cadence import ~/Downloads/*.qfx ~/Downloads/card.csv
  cadence import --dry-run statement.ofx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	files, err := expandGlobs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to import")
	}

	var all []model.Transaction
	seen := make(map[string]bool)

	bar := progressbar.Default(int64(len(files)), "importing")
	for _, path := range files {
		transactions, err := parseFile(ctx, path)
		if err != nil {
			slog.Error("failed to parse file", "file", path, "error", err)
			_ = bar.Add(1)
			continue
		}

		kept := 0
		for _, txn := range transactions {
			if seen[txn.Hash] {
				continue
			}
			seen[txn.Hash] = true
			all = append(all, txn)
			kept++
		}
		slog.Info("parsed file", "file", filepath.Base(path), "transactions", kept)
		_ = bar.Add(1)
	}

	if len(all) == 0 {
		fmt.Println(cli.FormatWarning("No new transactions found."))
		return nil
	}

	if dryRun {
		fmt.Println(cli.FormatTitle(fmt.Sprintf("Dry run: %d transactions would be imported", len(all))))
		for _, txn := range all {
			fmt.Printf("  %s  %-30s %10.2f\n", txn.Date.Format("2006-01-02"), txn.Merchant(), txn.Amount)
		}
		return nil
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveTransactions(ctx, all); err != nil {
		return fmt.Errorf("failed to save transactions: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Imported %d transactions from %d files", len(all), len(files))))
	return nil
}

func parseFile(ctx context.Context, path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvimport.NewImporter().Parse(f)
	case ".ofx", ".qfx":
		return ofx.NewParser().ParseFile(ctx, f)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("no files match pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}
