package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// DateLayout is the wire and input format for calendar dates.
const DateLayout = "2006-01-02"

const maxNoteLength = 500

type (
	TransactionType string

	// ID is the opaque identifier assigned by the remote store.
	ID string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID       ID
		Amount   Money
		Type     TransactionType
		Category string
		Note     string
		Date     Date
	}

	// Patch holds replacement values for an existing transaction. Nil fields
	// keep the current value.
	Patch struct {
		Amount   *Money
		Type     *TransactionType
		Category *string
		Note     *string
		Date     *Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and keeps only the
// calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	if i := strings.IndexByte(s, 'T'); i == len(DateLayout) {
		s = s[:i]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Before orders dates, ignoring anything below day precision.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// ParseTransactionType is case-insensitive.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate checks the invariants every persisted transaction must hold.
// The ID is not checked: candidates are validated before the remote store
// assigns one.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Note) > maxNoteLength {
		return ErrNoteTooLong
	}
	return t.Date.Validate()
}

// Normalize trims free-form fields. It is applied before validation so the
// stored record matches what is sent to the remote store.
func (t Transaction) Normalize() Transaction {
	t.Category = strings.TrimSpace(t.Category)
	t.Note = strings.TrimSpace(t.Note)
	return t
}

// Apply returns tx with the patch's non-nil fields replaced. The ID is kept.
func (p Patch) Apply(tx Transaction) Transaction {
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.Note != nil {
		tx.Note = *p.Note
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
	return tx
}

// PatchFrom builds a patch replacing every editable field with tx's values.
func PatchFrom(tx Transaction) Patch {
	return Patch{
		Amount:   &tx.Amount,
		Type:     &tx.Type,
		Category: &tx.Category,
		Note:     &tx.Note,
		Date:     &tx.Date,
	}
}
