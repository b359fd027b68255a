package backend

import (
	"context"

	"expenseflow/internal/services"
	"expenseflow/internal/storage"
)

// CleanupFunc releases a resource created by the factory.
type CleanupFunc func() error

// Result holds everything the factory built. Publisher and Sheet are nil when
// the matching integration is disabled.
type Result struct {
	Repo      *storage.Repository
	Publisher services.EventPublisher
	Sheet     services.SheetWriter
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Storage StorageType
	Sheets  SheetsType

	SQLiteDBPath string
	DatabaseURL  string

	// Empty AMQPURL disables lifecycle events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID      string
	GoogleExportSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// StorageType selects the database driver.
type StorageType string

const (
	SQLiteStorage   StorageType = "sqlite"
	PostgresStorage StorageType = "postgres"
)

func (st StorageType) String() string { return string(st) }

func (st StorageType) IsValid() bool {
	switch st {
	case SQLiteStorage, PostgresStorage:
		return true
	default:
		return false
	}
}

// SheetsType selects the export destination.
type SheetsType string

const (
	GoogleSheets SheetsType = "google"
	MemorySheets SheetsType = "memory"
	NoSheets     SheetsType = "none"
)

func (st SheetsType) String() string { return string(st) }

func (st SheetsType) IsValid() bool {
	switch st {
	case GoogleSheets, MemorySheets, NoSheets:
		return true
	default:
		return false
	}
}
