package backend

import (
	"context"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/sheets"
	"budgetbuddy/internal/sheets/memory"
	"budgetbuddy/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Resources are the local and outbound collaborators selected by config.
type Resources struct {
	// TokenStore is the durable credential slot.
	TokenStore storage.KV

	// Publisher is nil when the change feed is disabled or unreachable.
	Publisher *amqp.Client

	// Exporter writes reports; Preview is set instead of a spreadsheet
	// when no spreadsheet is configured.
	Exporter sheets.Exporter
	Preview  *memory.Store

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Resources, error)
}

// BackendType selects where the credential slot lives.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
