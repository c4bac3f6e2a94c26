package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized matches any 401 or 403 response.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for non-2xx responses and for bodies that report
// {"success": false}.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string // server-provided "error" field, may be empty
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// UserMessage exposes the server message for display.
func (e *StatusError) UserMessage() string {
	return e.Message
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}
