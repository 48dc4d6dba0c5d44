package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cadence-dev/cadence/internal/common"
	"github.com/cadence-dev/cadence/internal/model"
	"github.com/cadence-dev/cadence/internal/service"
)

const transactionColumns = `id, hash, date, name, merchant_name, account_id,
	amount, category, category_type, processed, pattern_id`

// SaveTransactions saves multiple transactions to the database.
// Duplicates (same hash) are silently ignored so re-importing a
// statement is safe.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, hash, date, name, merchant_name, account_id,
			amount, category, category_type, processed, pattern_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range transactions {
		txn := &transactions[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		if _, err := stmt.ExecContext(ctx,
			txn.ID, txn.Hash, txn.Date, txn.Name, txn.MerchantName, txn.AccountID,
			txn.Amount, txn.Category, string(txn.CategoryType), txn.Processed,
			nullString(txn.PatternID),
		); err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}

	return tx.Commit()
}

// GetTransactionByID retrieves a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = ?`, transactionColumns)
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return txn, nil
}

// GetTransactions retrieves transactions according to the filter.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, ErrInvalidDateRange
	}

	var conditions []string
	var args []any

	if filter.StartDate != nil {
		conditions = append(conditions, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conditions = append(conditions, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.MerchantName != "" {
		conditions = append(conditions, "merchant_name = ?")
		args = append(args, filter.MerchantName)
	}
	if filter.PatternID != "" {
		conditions = append(conditions, "pattern_id = ?")
		args = append(args, filter.PatternID)
	}
	if filter.UnlinkedOnly {
		conditions = append(conditions, "pattern_id IS NULL")
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions`, transactionColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	return s.queryTransactions(ctx, query, args...)
}

// GetUnlinkedTransactions returns processed transactions that are not
// yet linked to any pattern, ordered by date.
func (s *SQLiteStorage) GetUnlinkedTransactions(ctx context.Context) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE pattern_id IS NULL AND processed = 1
		ORDER BY date ASC`, transactionColumns)
	return s.queryTransactions(ctx, query)
}

// GetTransactionsForPattern returns all occurrences linked to a pattern,
// ordered by date. The pattern holds no live collection; this query is
// the only way to enumerate its occurrences.
func (s *SQLiteStorage) GetTransactionsForPattern(ctx context.Context, patternID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE pattern_id = ?
		ORDER BY date ASC`, transactionColumns)
	return s.queryTransactions(ctx, query, patternID)
}

// LinkTransaction points a transaction at a pattern and copies the
// pattern's category tags onto it.
func (s *SQLiteStorage) LinkTransaction(ctx context.Context, transactionID, patternID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}
	if err := validateString(patternID, "patternID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			pattern_id = ?,
			category = COALESCE((SELECT category FROM recurrence_patterns WHERE id = ?), category),
			category_type = COALESCE((SELECT category_type FROM recurrence_patterns WHERE id = ?), category_type)
		WHERE id = ?`,
		patternID, patternID, patternID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to link transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var merchantName, accountID, category, categoryType, patternID sql.NullString
	var date time.Time

	err := row.Scan(
		&txn.ID, &txn.Hash, &date, &txn.Name, &merchantName, &accountID,
		&txn.Amount, &category, &categoryType, &txn.Processed, &patternID,
	)
	if err != nil {
		return nil, err
	}

	txn.Date = date
	txn.MerchantName = merchantName.String
	txn.AccountID = accountID.String
	txn.Category = category.String
	txn.CategoryType = model.CategoryType(categoryType.String)
	txn.PatternID = patternID.String
	return &txn, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
