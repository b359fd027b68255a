package backend

import (
	"context"
	"errors"
	"fmt"

	"expenseflow/internal/amqp"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
	gsheet "expenseflow/internal/sheets/google"
	"expenseflow/internal/sheets/memory"
	"expenseflow/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens storage, then the optional event publisher and export
// sheet. A broker that cannot be reached is logged and skipped; storage and
// sheet failures are fatal.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.openStorage(ctx, config)
	if err != nil {
		return nil, err
	}
	res := &Result{Repo: repo}
	closers := []CleanupFunc{repo.Close}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without lifecycle events", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			res.Publisher = client
			closers = append(closers, client.Close)
		}
	}

	sheet, err := f.openSheet(ctx, config)
	if err != nil {
		_ = runCleanup(closers)
		return nil, err
	}
	if sheet != nil {
		res.Sheet = sheet
	}

	res.Cleanup = func() error { return runCleanup(closers) }

	f.logger.Info("Initialized backend",
		"storage", config.Storage,
		"sheets", config.Sheets,
		"amqp_enabled", res.Publisher != nil)
	return res, nil
}

func (f *DefaultFactory) openStorage(ctx context.Context, config Config) (*storage.Repository, error) {
	switch config.Storage {
	case SQLiteStorage:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite storage", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresStorage:
		repo, err := storage.NewPostgresRepository(ctx, config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres storage")
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage)
	}
}

func (f *DefaultFactory) openSheet(ctx context.Context, config Config) (services.SheetWriter, error) {
	switch config.Sheets {
	case GoogleSheets:
		cli, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleExportSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		f.logger.Info("Initialized Google Sheets export", "spreadsheet_id", config.GoogleSpreadsheetID)
		return cli, nil
	case MemorySheets:
		f.logger.Info("Initialized in-memory sheet export")
		return memory.New(config.GoogleExportSheetName), nil
	default:
		return nil, nil
	}
}

// runCleanup closes in reverse order of creation and joins the errors.
func runCleanup(closers []CleanupFunc) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
