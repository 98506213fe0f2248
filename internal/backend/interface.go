package backend

import (
	"context"

	"tracker/internal/gateway"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// PingFunc reports whether the backend is reachable.
type PingFunc func(ctx context.Context) error

// BackendResult contains the record store and its lifecycle hooks.
type BackendResult struct {
	Store gateway.RecordStore
	// Cleanup closes every resource the factory opened. Never nil.
	Cleanup CleanupFunc
	// Ping is nil for backends without a remote side.
	Ping PingFunc
	// Publishing is true when writes are announced over AMQP.
	Publishing bool
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a record store based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Memory backend specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// PostgreSQL specific
	PostgresURL string

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleOAuthClientJSON    string
	GoogleOAuthClientFile    string
	GoogleOAuthTokenFile     string
	GoogleCategoriesTab      string
	GoogleTransactionsTab    string

	// AMQP, optional. When set the store announces every write.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	RedisBackend    BackendType = "redis"
	SheetsBackend   BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend, RedisBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
