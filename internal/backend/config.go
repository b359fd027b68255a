package backend

import (
	"fmt"

	"expenseflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	cfg := Config{
		Storage: StorageType(appConfig.DBDriver),
		Sheets:  SheetsType(appConfig.SheetsBackend),

		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleExportSheetName:    appConfig.GoogleExportSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}
	if cfg.Sheets == "" {
		cfg.Sheets = NoSheets
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Storage.IsValid() {
		return fmt.Errorf("invalid storage type: %s", c.Storage)
	}
	if !c.Sheets.IsValid() {
		return fmt.Errorf("invalid sheets type: %s", c.Sheets)
	}

	switch c.Storage {
	case SQLiteStorage:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite storage")
		}
	case PostgresStorage:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres storage")
		}
	}

	if c.Sheets == GoogleSheets {
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for google sheets export")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return fmt.Errorf("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for google sheets export")
		}
	}
	return nil
}
