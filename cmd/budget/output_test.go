package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/dashboard"
	"budgetbuddy/internal/edit"
)

func sampleTxs() []core.Transaction {
	return []core.Transaction{
		{ID: "2", Amount: core.Money{Cents: 4000}, Type: core.Expense, Category: "Food", Note: "weekly\nshop", Date: core.NewDate(2025, 3, 5)},
		{ID: "1", Amount: core.Money{Cents: 10000}, Type: core.Income, Category: "Salary", Date: core.NewDate(2025, 3, 1)},
	}
}

func TestPrintTransactionsPlain(t *testing.T) {
	var buf bytes.Buffer
	if err := printTransactions(&buf, sampleTxs(), false); err != nil {
		t.Fatal(err)
	}
	want := "2025-03-05\tEXPENSE\tFood\t40.00\tweekly shop\t2\n" +
		"2025-03-01\tINCOME\tSalary\t100.00\t\t1\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrintTransactionsPretty(t *testing.T) {
	var buf bytes.Buffer
	if err := printTransactions(&buf, sampleTxs(), true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"DATE", "-$40.00", "$100.00", "Salary"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	buf.Reset()
	_ = printTransactions(&buf, nil, true)
	if !strings.Contains(buf.String(), "No transactions") {
		t.Errorf("expected empty notice, got %q", buf.String())
	}
}

func TestPrintView(t *testing.T) {
	sum := core.Summarize(sampleTxs())
	view := dashboard.View{
		Month:      dashboard.Month{Year: 2025, Month: time.March},
		Summary:    sum,
		Balance:    sum.Balance(),
		Categories: sum.Categories(),
	}
	var buf bytes.Buffer
	if err := printView(&buf, view); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"2025-03", "$100.00", "$40.00", "$60.00", "Food"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "Skipped") {
		t.Errorf("unexpected skipped line in %q", out)
	}
}

func TestPrintRows(t *testing.T) {
	var buf bytes.Buffer
	err := printRows(&buf, [][]any{{"Date", "Amount"}, {"2025-03-01", "10.00"}}, [][]any{{"Income", "10.00"}})
	if err != nil {
		t.Fatal(err)
	}
	want := "Date\tAmount\n2025-03-01\t10.00\n\nIncome\t10.00\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestDescribeEvent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := &amqp.TransactionEvent{
		Op: "create", ID: "7", Type: "EXPENSE", Amount: decimal.RequireFromString("12.5"),
		Category: "Food", Date: "2025-03-01", Timestamp: now.Add(-3 * time.Minute),
	}
	got := describeEvent(evt, now)
	for _, want := range []string{"create", "12.50", "Food", "3 minutes ago"} {
		if !strings.Contains(got, want) {
			t.Errorf("%q missing %q", got, want)
		}
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", fmt.Errorf("submit: %w", core.ErrEmptyCategory), "category is required"},
		{"auth", core.ErrAuth, "Please log in again."},
		{"not found", core.ErrNotFound, "Transaction no longer exists"},
		{"plain", errors.New(`unknown flag: --bogus`), "unknown flag: --bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorText(tt.err); got != tt.want {
				t.Errorf("errorText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDraftFlagsApplyOnlyChanged(t *testing.T) {
	cmd := newEditCmd(&rootOptions{})
	if err := cmd.Flags().Parse([]string{"--amount", "9.99", "--type", "income"}); err != nil {
		t.Fatal(err)
	}
	flags := &draftFlags{}
	// Re-read the values bound by newEditCmd through the flag set.
	flags.amount, _ = cmd.Flags().GetString("amount")
	flags.typ, _ = cmd.Flags().GetString("type")

	d := edit.Draft{Amount: "1", Type: core.Expense, Category: "Food", Date: "2025-03-01"}
	flags.apply(cmd, &d)
	if d.Amount != "9.99" || d.Type != "income" || d.Category != "Food" || d.Date != "2025-03-01" {
		t.Fatalf("unexpected draft %+v", d)
	}
	if _, err := d.Transaction(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}
}

func TestAddSeedKeepsDefaultType(t *testing.T) {
	now := time.Date(2025, 3, 9, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		args []string
		want core.TransactionType
	}{
		{"default", []string{"--amount", "5", "--category", "Gift"}, core.Income},
		{"explicit expense", []string{"--amount", "5", "--category", "Food", "--type", "EXPENSE"}, core.Expense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newAddCmd(&rootOptions{})
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			flags := &draftFlags{}
			flags.amount, _ = cmd.Flags().GetString("amount")
			flags.typ, _ = cmd.Flags().GetString("type")
			flags.category, _ = cmd.Flags().GetString("category")

			s := edit.NewSession(nil, nil)
			if err := s.Compose(); err != nil {
				t.Fatal(err)
			}
			if err := s.Update(func(d *edit.Draft) { flags.seed(cmd, d, now) }); err != nil {
				t.Fatal(err)
			}
			d := s.Draft()
			if d.Type != tt.want || d.Date != "2025-03-09" {
				t.Fatalf("draft = %+v, want type %s on 2025-03-09", d, tt.want)
			}
			if _, err := d.Transaction(); err != nil {
				t.Fatalf("expected valid draft, got %v", err)
			}
		})
	}
}
