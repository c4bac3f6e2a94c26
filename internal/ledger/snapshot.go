package ledger

import (
	"sort"

	"budgetbuddy/internal/core"
)

// ChangeOp names what produced a snapshot.
type ChangeOp string

const (
	ChangeLoad   ChangeOp = "load"
	ChangeCreate ChangeOp = "create"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
	ChangeReset  ChangeOp = "reset"
)

// Change describes the mutation behind a snapshot. Tx is the record after a
// create or update and the removed record after a delete.
type Change struct {
	Op ChangeOp
	ID core.ID
	Tx core.Transaction
}

// Snapshot is an immutable view of the collection. Items must not be
// modified; the store never changes a slice it has handed out.
type Snapshot struct {
	Version uint64
	Items   []core.Transaction
	Change  Change
	Err     error // load failure, if the collection is empty because of one
}

func (s Snapshot) Len() int {
	return len(s.Items)
}

// SortedByDate returns a copy of the items, newest date first. Entries with
// the same date keep collection order.
func (s Snapshot) SortedByDate() []core.Transaction {
	out := make([]core.Transaction, len(s.Items))
	copy(out, s.Items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date)
	})
	return out
}

func indexOf(items []core.Transaction, id core.ID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
