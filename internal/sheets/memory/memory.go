package memory

import (
	"context"
	"sync"

	ports "budgetbuddy/internal/sheets"
)

var _ ports.Exporter = (*Store)(nil)

// Store keeps the last export in memory. It stands in for a spreadsheet when
// none is configured; the CLI prints its rows instead.
type Store struct {
	mu      sync.Mutex
	txRows  [][]any
	sumRows [][]any
	exports int
}

func New() *Store {
	return &Store{}
}

// Export replaces the stored rows with report.
func (s *Store) Export(_ context.Context, report ports.Report) error {
	txRows := ports.TransactionRows(report.Transactions)
	sumRows := ports.SummaryRows(report)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.txRows = txRows
	s.sumRows = sumRows
	s.exports++
	return nil
}

// Transactions returns the rows of the last export's transactions sheet.
func (s *Store) Transactions() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.txRows...)
}

// Summary returns the rows of the last export's summary sheet.
func (s *Store) Summary() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.sumRows...)
}

func (s *Store) Exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exports
}
