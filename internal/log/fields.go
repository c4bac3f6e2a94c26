package log

import (
	"errors"

	"budgetbuddy/internal/core"
)

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldTxID        = "tx_id"
	FieldTxType      = "tx_type"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldDate        = "date"
	FieldVersion     = "version"
	FieldCount       = "count"
	FieldState       = "state"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentAuth      = "auth"
	ComponentLedger    = "ledger"
	ComponentEdit      = "edit"
	ComponentDashboard = "dashboard"
	ComponentAPI       = "api"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpLogin    = "login"
	OpSignup   = "signup"
	OpLogout   = "logout"
	OpRestore  = "restore"
	OpLoad     = "load"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpSubmit   = "submit"
	OpValidate = "validate"
	OpPublish  = "publish"
	OpExport   = "export"
	OpMigrate  = "migrate"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeFetch      = "fetch_error"
	ErrorTypeRemote     = "remote_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeInternal   = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error text and its category
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = ErrorType(err)
	}
	return f
}

// WithTransaction adds transaction-related fields. The note is never logged.
func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	if tx.ID != "" {
		f[FieldTxID] = tx.ID.String()
	}
	f[FieldTxType] = string(tx.Type)
	f[FieldAmountCents] = tx.Amount.Cents
	f[FieldCategory] = tx.Category
	f[FieldDate] = tx.Date.String()
	return f
}

func (f LogFields) WithHTTPRequest(method, path, requestID string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

// ErrorType maps err onto one of the ErrorType* categories.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrAuth):
		return ErrorTypeAuth
	case errors.Is(err, core.ErrFetch):
		return ErrorTypeFetch
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrRemote):
		return ErrorTypeRemote
	default:
		return ErrorTypeInternal
	}
}
