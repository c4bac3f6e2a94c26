package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/dashboard"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// printTransactions writes one row per transaction. On a terminal the
// columns are aligned and amounts formatted; otherwise rows are plain
// tab-separated values with decimal amounts, for piping into other tools.
func printTransactions(w io.Writer, txs []core.Transaction, pretty bool) error {
	if pretty && len(txs) == 0 {
		_, err := fmt.Fprintln(w, "No transactions yet.")
		return err
	}
	out := w
	var tw *tabwriter.Writer
	if pretty {
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		out = tw
		fmt.Fprintln(out, "DATE\tTYPE\tCATEGORY\tAMOUNT\tNOTE\tID")
	}
	for _, tx := range txs {
		amount := tx.Amount.Decimal().StringFixed(2)
		if pretty {
			amount = signed(tx)
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Date.String(), tx.Type, tx.Category, amount, oneLine(tx.Note), tx.ID)
	}
	if tw != nil {
		return tw.Flush()
	}
	return nil
}

func printView(w io.Writer, v dashboard.View) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Period\t%s\n", v.Month)
	fmt.Fprintf(tw, "Income\t%s\n", v.Summary.Income)
	fmt.Fprintf(tw, "Expenses\t%s\n", v.Summary.Expense)
	fmt.Fprintf(tw, "Balance\t%s\n", v.Balance)
	fmt.Fprintf(tw, "Transactions\t%s\n", humanize.Comma(int64(v.Summary.Count)))
	if v.Summary.Skipped > 0 {
		fmt.Fprintf(tw, "Skipped\t%d (invalid amount or type)\n", v.Summary.Skipped)
	}
	if len(v.Categories) > 0 {
		fmt.Fprintln(tw, "\t")
		fmt.Fprintln(tw, "CATEGORY\tSPENT")
		for _, c := range v.Categories {
			fmt.Fprintf(tw, "%s\t%s\n", c.Name, c.Amount)
		}
	}
	return tw.Flush()
}

// printRows dumps export sheets as tab-separated values.
func printRows(w io.Writer, sheets ...[][]any) error {
	for i, rows := range sheets {
		if i > 0 {
			fmt.Fprintln(w)
		}
		for _, row := range rows {
			cells := make([]string, len(row))
			for j, c := range row {
				cells[j] = fmt.Sprint(c)
			}
			if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(tx core.Transaction) string {
	return fmt.Sprintf("%s %s %s on %s (%s)", tx.ID, signed(tx), tx.Category, tx.Date, strings.ToLower(string(tx.Type)))
}

func describeEvent(evt *amqp.TransactionEvent, now time.Time) string {
	when := humanize.RelTime(evt.Timestamp, now, "ago", "from now")
	return fmt.Sprintf("%-6s %s %s %s %s on %s (%s)",
		evt.Op, evt.ID, evt.Type, evt.Amount.StringFixed(2), evt.Category, evt.Date, when)
}

// signed shows expenses as negative amounts.
func signed(tx core.Transaction) string {
	if tx.Type == core.Expense {
		return core.Money{Cents: -tx.Amount.Cents}.String()
	}
	return tx.Amount.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
