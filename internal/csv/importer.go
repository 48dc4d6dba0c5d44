// Package csv imports bank transactions from CSV exports.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cadence-dev/cadence/internal/model"
)

// Importer parses generic bank CSV exports. The file must carry a
// header row; column names are matched case-insensitively against a
// small set of aliases so exports from different banks work unchanged.
type Importer struct{}

// NewImporter creates a CSV importer.
func NewImporter() *Importer {
	return &Importer{}
}

var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
}

var columnAliases = map[string][]string{
	"date":     {"date", "posted", "transaction date", "posting date"},
	"name":     {"name", "description", "details", "memo"},
	"merchant": {"merchant", "merchant name", "payee"},
	"amount":   {"amount", "value", "debit"},
	"account":  {"account", "account id", "account number"},
	"category": {"category"},
}

// Parse reads a CSV export and returns normalized transactions.
func (im *Importer) Parse(reader io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(reader)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	columns, err := mapColumns(records[0])
	if err != nil {
		return nil, err
	}

	var transactions []model.Transaction
	for i, record := range records[1:] {
		txn, err := parseRow(record, columns)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		transactions = append(transactions, txn)
	}

	slog.Info("parsed CSV file", "transactions", len(transactions))
	return transactions, nil
}

// mapColumns resolves header names to field indexes. Date, name and
// amount are required; the rest are optional.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int)
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(cell))
		for field, aliases := range columnAliases {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					columns[field] = i
					break
				}
			}
		}
	}

	for _, required := range []string{"date", "name", "amount"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header is missing a %q column", required)
		}
	}
	return columns, nil
}

func parseRow(record []string, columns map[string]int) (model.Transaction, error) {
	cell := func(field string) string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := parseDate(cell("date"))
	if err != nil {
		return model.Transaction{}, err
	}

	raw := strings.ReplaceAll(cell("amount"), ",", "")
	raw = strings.TrimPrefix(raw, "$")
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount %q: %w", cell("amount"), err)
	}
	if amount < 0 {
		amount = -amount
	}

	name := cell("name")
	if name == "" {
		return model.Transaction{}, fmt.Errorf("empty transaction name")
	}

	txn := model.Transaction{
		ID:           uuid.NewString(),
		Date:         date,
		Name:         name,
		MerchantName: cell("merchant"),
		AccountID:    cell("account"),
		Category:     cell("category"),
		Amount:       amount,
		Processed:    true,
	}
	txn.Hash = txn.GenerateHash()
	return txn, nil
}

func parseDate(value string) (time.Time, error) {
	for _, format := range dateFormats {
		if date, err := time.Parse(format, value); err == nil {
			return date, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
