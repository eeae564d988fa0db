// Package cli provides common initialization shared by the faturas
// subcommands.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"faturas/internal/config"
	"faturas/internal/log"
	ports "faturas/internal/sheets"
	"faturas/internal/sheets/files"
	gsheet "faturas/internal/sheets/google"
	"faturas/internal/sheets/memory"
	"faturas/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger at the given level and installs
// it as the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Output = os.Stdout
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BuildSource returns the table source selected by DATA_SOURCE.
func BuildSource(ctx context.Context, cfg *config.Config) (ports.TableSource, error) {
	switch cfg.DataSource {
	case config.SourceSheets:
		src, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetRanges, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("google sheets source: %w", err)
		}
		return src, nil
	case config.SourceMemory:
		return memory.Demo(), nil
	default:
		return files.New(cfg.DataDir, cfg.DataPattern), nil
	}
}

// OpenHistory opens the load history database. It returns nil without error
// when HISTORY_DB_PATH is empty.
func OpenHistory(logger *log.Logger, cfg *config.Config) (*storage.SQLiteRepository, error) {
	if !cfg.HistoryEnabled() {
		logger.Info("Load history disabled")
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(cfg.HistoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", cfg.HistoryDBPath, err)
	}
	logger.Info("Load history enabled", "path", cfg.HistoryDBPath)
	return repo, nil
}
