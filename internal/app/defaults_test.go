package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".local", "share", "catalog")

	tests := []struct {
		name string
		env  map[string]string
		want Defaults
	}{
		{
			name: "home dir fallbacks",
			want: Defaults{
				ConfigPath:  filepath.Join(home, ".config", "catalog.toml"),
				BaseDir:     base,
				DatabaseDir: filepath.Join(base, "db"),
			},
		},
		{
			name: "database follows CATALOG_HOME",
			env:  map[string]string{"CATALOG_CONFIG_PATH": "/custom/config.toml", "CATALOG_HOME": "/custom/catalog"},
			want: Defaults{ConfigPath: "/custom/config.toml", BaseDir: "/custom/catalog", DatabaseDir: "/custom/catalog/db"},
		},
		{
			name: "database dir overridden",
			env:  map[string]string{"CATALOG_HOME": "/custom/catalog", "CATALOG_DB_DIR": "/fast/disk/catalog"},
			want: Defaults{ConfigPath: filepath.Join(home, ".config", "catalog.toml"), BaseDir: "/custom/catalog", DatabaseDir: "/fast/disk/catalog"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"CATALOG_CONFIG_PATH", "CATALOG_HOME", "CATALOG_DB_DIR"} {
				t.Setenv(key, tt.env[key])
			}

			got, err := GetDefaults()
			if err != nil {
				t.Fatalf("GetDefaults() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("GetDefaults() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestDefaults_NewConfig(t *testing.T) {
	d := &Defaults{ConfigPath: "/c/catalog.toml", BaseDir: "/data/catalog", DatabaseDir: "/fast/db"}

	cfg := d.NewConfig("cat-1")
	if cfg.CatalogID != "cat-1" || cfg.BaseDir != "/data/catalog" {
		t.Errorf("NewConfig() = %+v", cfg)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/fast/db" {
		t.Errorf("Database = %+v, want sqlite in /fast/db", cfg.Database)
	}
	if cfg.LogDir != "/data/catalog/log" {
		t.Errorf("LogDir = %q, want /data/catalog/log", cfg.LogDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
