package app

import (
	"fmt"
	"os"
	"path/filepath"

	"catalog-go/internal/config"
)

// Defaults are the locations a new catalog is set up with.
type Defaults struct {
	ConfigPath  string
	BaseDir     string
	DatabaseDir string
}

// GetDefaults resolves default locations from the environment:
//   - CATALOG_CONFIG_PATH: config file (default ~/.config/catalog.toml)
//   - CATALOG_HOME: keys, logs and, unless overridden, the database
//     (default ~/.local/share/catalog)
//   - CATALOG_DB_DIR: SQLite database directory (default $CATALOG_HOME/db)
func GetDefaults() (*Defaults, error) {
	home, err := os.UserHomeDir()
	if err != nil && (os.Getenv("CATALOG_CONFIG_PATH") == "" || os.Getenv("CATALOG_HOME") == "") {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	d := &Defaults{
		ConfigPath: envOr("CATALOG_CONFIG_PATH", filepath.Join(home, ".config", "catalog.toml")),
		BaseDir:    envOr("CATALOG_HOME", filepath.Join(home, ".local", "share", "catalog")),
	}
	d.DatabaseDir = envOr("CATALOG_DB_DIR", filepath.Join(d.BaseDir, "db"))
	return d, nil
}

// NewConfig returns a config for a new catalog laid out under these defaults.
func (d *Defaults) NewConfig(catalogID string) *config.Config {
	cfg := config.NewConfig(catalogID, d.BaseDir)
	cfg.Database.DataDir = d.DatabaseDir
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
