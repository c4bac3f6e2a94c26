// Package edit implements the draft workflow used to create and change
// transactions: Idle, Composing, Editing and Submitting.
package edit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

type State int

const (
	Idle State = iota
	Composing
	Editing
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Composing:
		return "composing"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	ErrInvalidTransition = errors.New("invalid edit transition")
	ErrSubmitting        = errors.New("a submission is already in flight")
)

// Draft holds the form fields as typed by the user.
type Draft struct {
	Amount   string
	Type     core.TransactionType
	Category string
	Note     string
	Date     string
}

func emptyDraft() Draft {
	return Draft{Type: core.Income}
}

// DraftFrom seeds a draft from a stored transaction.
func DraftFrom(tx core.Transaction) Draft {
	return Draft{
		Amount:   tx.Amount.Input(),
		Type:     tx.Type,
		Category: tx.Category,
		Note:     tx.Note,
		Date:     tx.Date.String(),
	}
}

// Transaction parses and validates the draft. Errors wrap core.ErrValidation.
func (d Draft) Transaction() (core.Transaction, error) {
	amount, err := core.ParseMoney(d.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	typ, err := core.ParseTransactionType(string(d.Type))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Amount:   amount,
		Type:     typ,
		Category: d.Category,
		Note:     d.Note,
		Date:     date,
	}.Normalize()
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// Store is the part of the ledger the session drives.
type Store interface {
	Get(id core.ID) (core.Transaction, bool)
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id core.ID, patch core.Patch) (core.Transaction, error)
}

// Session is safe for concurrent use, but only one submission can be in
// flight at a time.
type Session struct {
	store Store
	log   *log.Logger

	mu      sync.Mutex
	state   State
	prev    State
	id      core.ID
	draft   Draft
	formErr error
	resets  uint64
}

func NewSession(store Store, logger *log.Logger) *Session {
	return &Session{
		store: store,
		log:   log.OrDiscard(logger).WithComponent(log.ComponentEdit),
		draft: emptyDraft(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EditingID returns the id of the record being edited, including while its
// update is being submitted.
func (s *Session) EditingID() (core.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != ""
}

func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// FormError is the error of the last failed submit, cleared by any
// transition and by a successful submit.
func (s *Session) FormError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formErr
}

// Compose starts a new entry with an empty draft.
func (s *Session) Compose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Submitting:
		return ErrSubmitting
	case Editing:
		return fmt.Errorf("%w: compose while editing %s", ErrInvalidTransition, s.id)
	}
	s.enter(Composing, "", emptyDraft())
	return nil
}

// Edit starts editing the stored record id.
func (s *Session) Edit(id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Submitting {
		return ErrSubmitting
	}
	tx, ok := s.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	s.enter(Editing, id, DraftFrom(tx))
	return nil
}

// Cancel discards the draft without contacting the remote store.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Submitting:
		return ErrSubmitting
	case Idle:
		return fmt.Errorf("%w: nothing to cancel", ErrInvalidTransition)
	}
	s.enter(Idle, "", emptyDraft())
	return nil
}

// Reset drops any draft and returns to Idle. It is used when the
// credential changes, so nothing typed under one account is submitted under
// another. A submission already in flight completes, but the session then
// settles in Idle instead of restoring its draft.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if s.state != Submitting {
		s.enter(Idle, "", emptyDraft())
	}
}

// Update applies fn to the draft. Field edits are only accepted while
// composing or editing.
func (s *Session) Update(fn func(*Draft)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Submitting:
		return ErrSubmitting
	case Idle:
		return fmt.Errorf("%w: no draft", ErrInvalidTransition)
	}
	fn(&s.draft)
	return nil
}

func (s *Session) SetAmount(v string) error {
	return s.Update(func(d *Draft) { d.Amount = v })
}

func (s *Session) SetType(v core.TransactionType) error {
	return s.Update(func(d *Draft) { d.Type = v })
}

func (s *Session) SetCategory(v string) error {
	return s.Update(func(d *Draft) { d.Category = v })
}

func (s *Session) SetNote(v string) error {
	return s.Update(func(d *Draft) { d.Note = v })
}

// SetDate accepts YYYY-MM-DD; a full timestamp is reduced to its date.
func (s *Session) SetDate(v string) error {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, 'T'); i == len(core.DateLayout) {
		v = v[:i]
	}
	return s.Update(func(d *Draft) { d.Date = v })
}

// Submit validates the draft and, if it is valid, creates or updates the
// record through the store. An invalid draft never leaves the current
// state. On failure the draft is kept and the previous state restored.
func (s *Session) Submit(ctx context.Context) (core.Transaction, error) {
	s.mu.Lock()
	switch s.state {
	case Submitting:
		s.mu.Unlock()
		return core.Transaction{}, ErrSubmitting
	case Idle:
		s.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("%w: no draft to submit", ErrInvalidTransition)
	}
	tx, err := s.draft.Transaction()
	if err != nil {
		s.formErr = err
		s.mu.Unlock()
		s.log.DebugContext(ctx, "Draft rejected",
			log.NewFields().WithOperation(log.OpValidate).WithError(err).ToSlice()...)
		return core.Transaction{}, err
	}
	s.prev, s.state, s.formErr = s.state, Submitting, nil
	prev, id, resets := s.prev, s.id, s.resets
	s.mu.Unlock()

	var saved core.Transaction
	if prev == Editing {
		saved, err = s.store.Update(ctx, id, core.PatchFrom(tx))
	} else {
		saved, err = s.store.Create(ctx, tx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resets != resets {
		s.enter(Idle, "", emptyDraft())
		if err != nil {
			return core.Transaction{}, err
		}
		return saved, nil
	}
	if err != nil {
		s.state = prev
		s.formErr = err
		s.log.WarnContext(ctx, "Submit failed",
			log.NewFields().WithOperation(log.OpSubmit).WithError(err).ToSlice()...)
		return core.Transaction{}, err
	}
	s.enter(Idle, "", emptyDraft())
	s.log.DebugContext(ctx, "Draft submitted", log.FieldOperation, log.OpSubmit, log.FieldTxID, saved.ID.String())
	return saved, nil
}

func (s *Session) enter(state State, id core.ID, draft Draft) {
	s.state = state
	s.id = id
	s.draft = draft
	s.formErr = nil
}
