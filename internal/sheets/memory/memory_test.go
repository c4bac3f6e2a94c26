package memory

import (
	"context"
	"testing"
	"time"

	"budgetbuddy/internal/core"
	ports "budgetbuddy/internal/sheets"
)

func TestStoreExportReplacesPrevious(t *testing.T) {
	s := New()
	ctx := context.Background()
	first := ports.Report{
		Label: "all",
		Transactions: []core.Transaction{
			{ID: "1", Amount: core.Money{Cents: 100}, Type: core.Income, Category: "pay", Date: core.NewDate(2025, 1, 1)},
			{ID: "2", Amount: core.Money{Cents: 50}, Type: core.Expense, Category: "food", Date: core.NewDate(2025, 1, 2)},
		},
		GeneratedAt: time.Now(),
	}
	if err := s.Export(ctx, first); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if got := len(s.Transactions()); got != 3 {
		t.Errorf("transaction rows = %d, want 3", got)
	}

	second := first
	second.Transactions = first.Transactions[:1]
	if err := s.Export(ctx, second); err != nil {
		t.Fatal(err)
	}
	if got := len(s.Transactions()); got != 2 {
		t.Errorf("transaction rows after second export = %d, want 2", got)
	}
	if s.Exports() != 2 {
		t.Errorf("Exports = %d", s.Exports())
	}
	if rows := s.Summary(); len(rows) == 0 || rows[0][1] != "all" {
		t.Errorf("summary rows = %v", rows)
	}
}
