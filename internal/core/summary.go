package core

import "sort"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Summary is the aggregate view over a set of transactions.
type Summary struct {
	Income     Money
	Expense    Money
	ByCategory map[string]Money // expense totals only
	Count      int              // entries that contributed
	Skipped    int              // entries excluded as corrupt
}

// Summarize aggregates txs in a single pass. Entries with a non-positive
// amount or an unknown type are excluded and counted in Skipped instead of
// failing the whole aggregation. The result does not depend on the order of
// txs.
func Summarize(txs []Transaction) Summary {
	s := Summary{ByCategory: make(map[string]Money)}
	for _, tx := range txs {
		if tx.Amount.Cents <= 0 {
			s.Skipped++
			continue
		}
		switch tx.Type {
		case Income:
			s.Income = s.Income.Add(tx.Amount)
		case Expense:
			s.Expense = s.Expense.Add(tx.Amount)
			s.ByCategory[tx.Category] = s.ByCategory[tx.Category].Add(tx.Amount)
		default:
			s.Skipped++
			continue
		}
		s.Count++
	}
	return s
}

// Balance is income minus expenses; it can be negative.
func (s Summary) Balance() Money {
	return s.Income.Sub(s.Expense)
}

// Categories lists the expense buckets largest first, ties broken by name.
func (s Summary) Categories() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.ByCategory))
	for name, amt := range s.ByCategory {
		out = append(out, CategoryAmount{Name: name, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// InMonth keeps the transactions dated in the given year and month.
func InMonth(txs []Transaction, year, month int) []Transaction {
	var out []Transaction
	for _, tx := range txs {
		if tx.Date.Year() == year && int(tx.Date.Month()) == month {
			out = append(out, tx)
		}
	}
	return out
}
