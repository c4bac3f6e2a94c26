// Package ledger owns the local transaction collection and keeps it in step
// with the remote store. Every mutation waits for the remote store to confirm
// before the local collection changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"budgetbuddy/internal/api"
	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

// Remote is the REST collaborator. *api.Client implements it.
type Remote interface {
	ListTransactions(ctx context.Context, token string) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, token string, tx core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, token string, id core.ID, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, token string, id core.ID) error
}

// Credentials supplies the bearer token. Clear is called when the remote
// store rejects the token. *auth.Session implements it.
type Credentials interface {
	Token() (string, error)
	Clear(ctx context.Context) error
}

var _ Remote = (*api.Client)(nil)

type Option func(*Store)

// WithReconcile makes Update reload the collection after a confirmed update,
// so server-side normalization replaces the locally merged record.
func WithReconcile(enabled bool) Option {
	return func(s *Store) { s.reconcile = enabled }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) { s.log = log.OrDiscard(logger).WithComponent(log.ComponentLedger) }
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Store is safe for concurrent use. The mutex is never held across a remote
// call.
type Store struct {
	remote    Remote
	creds     Credentials
	log       *log.Logger
	reconcile bool

	mu      sync.Mutex
	items   []core.Transaction
	version uint64
	loadGen uint64
	err     error
	subs    []subscriber
	nextSub int

	// notifyMu is taken before mu is released so snapshots are delivered in
	// version order.
	notifyMu sync.Mutex
}

func NewStore(remote Remote, creds Credentials, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		creds:  creds,
		log:    log.Discard().WithComponent(log.ComponentLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to receive every new snapshot. fn runs on the
// goroutine that made the change and must not call mutating Store methods.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(Change{})
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Err reports the failure of the last Load, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Get(id core.ID) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	return core.Transaction{}, false
}

// Reset empties the collection and abandons any load in flight.
func (s *Store) Reset() {
	s.mu.Lock()
	s.loadGen++
	s.err = nil
	s.commitAndUnlock(nil, Change{Op: ChangeReset})
}

// Load replaces the collection with the remote one. On failure the
// collection is emptied and Err reports the failure. A Load that finishes
// after a newer Load or Reset started is discarded.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	token, err := s.creds.Token()
	if err != nil {
		return s.failLoad(gen, fmt.Errorf("%w: %w", core.ErrFetch, core.ErrAuth))
	}

	items, err := s.remote.ListTransactions(ctx, token)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to load transactions",
			log.NewFields().WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		return s.failLoad(gen, s.remoteError(ctx, core.ErrFetch, err))
	}
	items = dedupe(items)

	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		s.log.DebugContext(ctx, "Discarding superseded load", log.FieldOperation, log.OpLoad)
		return nil
	}
	s.err = nil
	s.commitAndUnlock(items, Change{Op: ChangeLoad})

	s.log.InfoContext(ctx, "Transactions loaded", log.FieldOperation, log.OpLoad, log.FieldCount, len(items))
	return nil
}

func (s *Store) failLoad(gen uint64, err error) error {
	s.mu.Lock()
	if gen != s.loadGen {
		s.mu.Unlock()
		return err
	}
	s.err = err
	s.commitAndUnlock(nil, Change{Op: ChangeLoad})
	return err
}

// Create validates candidate, sends it to the remote store and, once
// confirmed, inserts the stored record at the front of the collection.
func (s *Store) Create(ctx context.Context, candidate core.Transaction) (core.Transaction, error) {
	candidate = candidate.Normalize()
	candidate.ID = ""
	if err := candidate.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := s.creds.Token()
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.remote.CreateTransaction(ctx, token, candidate)
	if err != nil {
		s.log.WarnContext(ctx, "Create rejected",
			log.NewFields().WithOperation(log.OpCreate).WithTransaction(candidate).WithError(err).ToSlice()...)
		return core.Transaction{}, s.remoteError(ctx, core.ErrRemote, err)
	}
	created = created.Normalize()
	if err := created.Validate(); err != nil {
		// The server confirmed the insert but echoed a record we would not
		// accept locally. Keep what was sent under the server's id.
		s.log.WarnContext(ctx, "Create echo invalid, keeping submitted fields",
			log.NewFields().WithOperation(log.OpCreate).WithTransaction(created).WithError(err).ToSlice()...)
		id := created.ID
		created = candidate
		created.ID = id
	}

	s.mu.Lock()
	items := make([]core.Transaction, 0, len(s.items)+1)
	items = append(items, created)
	for _, tx := range s.items {
		if tx.ID != created.ID {
			items = append(items, tx)
		}
	}
	s.commitAndUnlock(items, Change{Op: ChangeCreate, ID: created.ID, Tx: created})

	s.log.InfoContext(ctx, "Transaction created",
		log.NewFields().WithOperation(log.OpCreate).WithTransaction(created).ToSlice()...)
	return created, nil
}

// Update merges patch into the record with the given id, sends the merged
// record and replaces the local one once confirmed.
func (s *Store) Update(ctx context.Context, id core.ID, patch core.Patch) (core.Transaction, error) {
	current, ok := s.Get(id)
	if !ok {
		return core.Transaction{}, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	merged := patch.Apply(current).Normalize()
	merged.ID = id
	if err := merged.Validate(); err != nil {
		return core.Transaction{}, err
	}
	token, err := s.creds.Token()
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.remote.UpdateTransaction(ctx, token, id, merged); err != nil {
		s.log.WarnContext(ctx, "Update rejected",
			log.NewFields().WithOperation(log.OpUpdate).WithTransaction(merged).WithError(err).ToSlice()...)
		return core.Transaction{}, s.remoteError(ctx, core.ErrRemote, err)
	}

	s.mu.Lock()
	i := indexOf(s.items, id)
	if i < 0 {
		s.mu.Unlock()
		s.log.InfoContext(ctx, "Updated transaction no longer in collection",
			log.FieldOperation, log.OpUpdate, log.FieldTxID, id.String())
		return merged, nil
	}
	items := make([]core.Transaction, len(s.items))
	copy(items, s.items)
	items[i] = merged
	s.commitAndUnlock(items, Change{Op: ChangeUpdate, ID: id, Tx: merged})

	s.log.InfoContext(ctx, "Transaction updated",
		log.NewFields().WithOperation(log.OpUpdate).WithTransaction(merged).ToSlice()...)

	if s.reconcile {
		if err := s.Load(ctx); err != nil {
			s.log.WarnContext(ctx, "Reload after update failed", log.FieldError, err.Error())
		} else if canonical, ok := s.Get(id); ok {
			merged = canonical
		}
	}
	return merged, nil
}

// Delete removes the record once the remote store confirms.
func (s *Store) Delete(ctx context.Context, id core.ID) error {
	current, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	token, err := s.creds.Token()
	if err != nil {
		return err
	}

	if err := s.remote.DeleteTransaction(ctx, token, id); err != nil {
		s.log.WarnContext(ctx, "Delete rejected",
			log.NewFields().WithOperation(log.OpDelete).WithTransaction(current).WithError(err).ToSlice()...)
		return s.remoteError(ctx, core.ErrRemote, err)
	}

	s.mu.Lock()
	i := indexOf(s.items, id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	items := make([]core.Transaction, 0, len(s.items)-1)
	items = append(items, s.items[:i]...)
	items = append(items, s.items[i+1:]...)
	s.commitAndUnlock(items, Change{Op: ChangeDelete, ID: id, Tx: current})

	s.log.InfoContext(ctx, "Transaction deleted", log.FieldOperation, log.OpDelete, log.FieldTxID, id.String())
	return nil
}

// remoteError wraps a remote failure in kind. A rejected credential also
// matches core.ErrAuth and clears the session.
func (s *Store) remoteError(ctx context.Context, kind, err error) error {
	if !errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", kind, err)
	}
	if s.creds != nil {
		if cerr := s.creds.Clear(ctx); cerr != nil {
			s.log.ErrorContext(ctx, "Failed to clear rejected credential", log.FieldError, cerr.Error())
		}
	}
	return fmt.Errorf("%w: %w: %w", kind, core.ErrAuth, err)
}

func (s *Store) snapshotLocked(change Change) Snapshot {
	return Snapshot{Version: s.version, Items: s.items, Change: change, Err: s.err}
}

// commitAndUnlock installs items as a new version, releases mu and delivers
// the snapshot. mu must be held.
func (s *Store) commitAndUnlock(items []core.Transaction, change Change) {
	s.items = items
	s.version++
	snap := s.snapshotLocked(change)
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// dedupe keeps the first record for each id.
func dedupe(items []core.Transaction) []core.Transaction {
	seen := make(map[core.ID]struct{}, len(items))
	out := make([]core.Transaction, 0, len(items))
	for _, tx := range items {
		if _, ok := seen[tx.ID]; ok {
			continue
		}
		seen[tx.ID] = struct{}{}
		out = append(out, tx)
	}
	return out
}
