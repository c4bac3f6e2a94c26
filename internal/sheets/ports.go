// Package sheets defines the export port for writing the ledger and its
// summary to a spreadsheet, plus the row layout shared by its adapters.
package sheets

import (
	"context"
	"time"

	"budgetbuddy/internal/core"
)

// Report is one export: the transactions shown and their summary.
type Report struct {
	Label        string // month filter or "all"
	Transactions []core.Transaction
	Summary      core.Summary
	GeneratedAt  time.Time
}

// Ports for outbound adapters.
type (
	// Exporter replaces the previous export with report.
	Exporter interface {
		Export(ctx context.Context, report Report) error
	}
)

// TransactionHeader is the first row of the transactions sheet.
var TransactionHeader = []any{"Date", "Type", "Category", "Amount", "Note", "ID"}

// TransactionRows lays out the transactions sheet, header included.
// Amounts are plain decimals so the spreadsheet can parse them as numbers.
func TransactionRows(txs []core.Transaction) [][]any {
	rows := make([][]any, 0, len(txs)+1)
	rows = append(rows, TransactionHeader)
	for _, tx := range txs {
		rows = append(rows, []any{
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Amount.Decimal().StringFixed(2),
			tx.Note,
			tx.ID.String(),
		})
	}
	return rows
}

// SummaryRows lays out the summary sheet: totals then expenses per category.
func SummaryRows(r Report) [][]any {
	s := r.Summary
	rows := [][]any{
		{"Period", r.Label},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Income", s.Income.Decimal().StringFixed(2)},
		{"Expenses", s.Expense.Decimal().StringFixed(2)},
		{"Balance", s.Balance().Decimal().StringFixed(2)},
		{},
		{"Category", "Spent"},
	}
	for _, c := range s.Categories() {
		rows = append(rows, []any{c.Name, c.Amount.Decimal().StringFixed(2)})
	}
	return rows
}
