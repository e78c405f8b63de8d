package backend

import (
	"context"

	"finboard/internal/amqp"
	"finboard/internal/manual"
	"finboard/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the manual-data stores for one backend. Stores the
// backend cannot provide are nil; the slug store then falls back to memory.
type BackendResult struct {
	RentRoll  manual.RentRollStore
	Fields    manual.FieldStore
	Slugs     manual.SlugStore
	Pinger    manual.Pinger
	Migrator  manual.SchemaMigrator
	Publisher amqp.Publisher

	// DB is set for relational backends.
	DB      *storage.DB
	Cleanup CleanupFunc
}

// Close runs Cleanup if present.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
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

	// Relational
	DatabaseURL  string
	PGSSL        bool
	SQLiteDBPath string

	// File
	ManualDataFile string

	// Change events; empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
}

// BackendType represents the type of backend
type BackendType string

const (
	PostgresBackend BackendType = "postgres"
	SQLiteBackend   BackendType = "sqlite"
	FileBackend     BackendType = "file"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case PostgresBackend, SQLiteBackend, FileBackend:
		return true
	default:
		return false
	}
}
