package backend

import (
	"context"

	"mycontrol/internal/services"
)

// Store is everything the API process needs from persistence.
type Store interface {
	services.TransactionStore
	services.UserStore
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the optional event publisher and a
// cleanup function releasing both. Publisher is nil when events are off.
type BackendResult struct {
	Store     Store
	Publisher services.EventPublisher
	Cleanup   CleanupFunc
}

// Ready reports whether the store answers.
func (r *BackendResult) Ready(ctx context.Context) error {
	return r.Store.Ping(ctx)
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific. AMQP is optional and only used with SQLite, since
	// the report worker reads the same database file.
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
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
