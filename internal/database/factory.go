package database

import (
	"fmt"
	"os"
	"path/filepath"

	"catalog-go/internal/config"
)

// NewDatabaseFromConfig opens the database selected by the config type.
// In-memory databases start empty and are migrated immediately; file
// databases are left for the caller to check with CheckMigrations.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, catalogID string) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteDatabase(DatabasePath(cfg, catalogID))
	case "memory":
		db, err := NewSQLiteDatabase(MemoryPath)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// DatabasePath returns the file a sqlite config stores the catalog in.
func DatabasePath(cfg config.DatabaseConfig, catalogID string) string {
	return filepath.Join(cfg.DataDir, catalogID+".db")
}
