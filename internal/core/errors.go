package core

import (
	"errors"
	"fmt"
)

// Error categories. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("not authenticated")
	ErrFetch      = errors.New("failed to load transactions")
	ErrRemote     = errors.New("remote store rejected the change")
	ErrNotFound   = errors.New("transaction not found")
)

var (
	ErrInvalidAmount = fmt.Errorf("%w: amount must be a number greater than zero", ErrValidation)
	ErrInvalidType   = fmt.Errorf("%w: type must be INCOME or EXPENSE", ErrValidation)
	ErrEmptyCategory = fmt.Errorf("%w: category is required", ErrValidation)
	ErrMissingDate   = fmt.Errorf("%w: date is required", ErrValidation)
	ErrInvalidDate   = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	ErrNoteTooLong   = fmt.Errorf("%w: note too long (max %d characters)", ErrValidation, maxNoteLength)
)

// Messager is implemented by errors that carry a message meant for the user,
// such as the error field of a remote response.
type Messager interface {
	UserMessage() string
}

// UserMessage returns the text to show for err. A message carried by the
// remote store wins; otherwise a fixed text per error category is used.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var m Messager
	if errors.As(err, &m) && m.UserMessage() != "" {
		return m.UserMessage()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return validationMessage(err)
	case errors.Is(err, ErrAuth):
		return "Please log in again."
	case errors.Is(err, ErrFetch):
		return "Failed to load transactions"
	case errors.Is(err, ErrNotFound):
		return "Transaction no longer exists"
	case errors.Is(err, ErrRemote):
		return "Failed to save transaction"
	default:
		return "Something went wrong"
	}
}

func validationMessage(err error) string {
	for _, field := range []error{ErrInvalidAmount, ErrInvalidType, ErrEmptyCategory, ErrMissingDate, ErrInvalidDate, ErrNoteTooLong} {
		if errors.Is(err, field) {
			return field.Error()[len(ErrValidation.Error())+2:]
		}
	}
	return "Amount, category and date are required."
}
