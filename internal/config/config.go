package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultMaxRedirectDepth bounds redirect walks when the config leaves it unset.
	DefaultMaxRedirectDepth = 16
	// DefaultChangelogPageSize is the number of changelog entries read per page.
	DefaultChangelogPageSize = 100
	// DefaultLogLevel is used when [log] level is unset.
	DefaultLogLevel = "info"
)

// Config represents the main configuration for catalog.
type Config struct {
	CatalogID  string           `toml:"catalog_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Log        LogConfig        `toml:"log"`
	Database   DatabaseConfig   `toml:"database"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Changelog  ChangelogConfig  `toml:"changelog"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// LogConfig controls the application log.
type LogConfig struct {
	Level string `toml:"level"` // "debug", "info", "warn" or "error"
}

// DatabaseConfig represents configuration for the catalog database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ResolverConfig bounds redirect chain walks.
type ResolverConfig struct {
	MaxRedirectDepth int `toml:"max_redirect_depth"`
}

// ChangelogConfig controls how the changelog feed is paged.
type ChangelogConfig struct {
	PageSize int `toml:"page_size"`
}

// VaultConfig represents configuration for a snapshot archive backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(catalogID, baseDir string) *Config {
	return &Config{
		CatalogID: catalogID,
		BaseDir:   baseDir,
		LogDir:    filepath.Join(baseDir, "log"),
		Log:       LogConfig{Level: DefaultLogLevel},
		Database:  DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Resolver:  ResolverConfig{MaxRedirectDepth: DefaultMaxRedirectDepth},
		Changelog: ChangelogConfig{PageSize: DefaultChangelogPageSize},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "catalog.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "catalog.key"),
		},
	}
}

// Validate fills in defaults for unset optional values and rejects values
// the application cannot run with.
func (c *Config) Validate() error {
	if c.CatalogID == "" {
		return fmt.Errorf("catalog_id is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}

	switch c.Database.Type {
	case "sqlite":
		if c.Database.DataDir == "" {
			return fmt.Errorf("database.data_dir required for sqlite database")
		}
	case "memory":
	default:
		return fmt.Errorf("database.type: unknown type %q", c.Database.Type)
	}

	if c.Resolver.MaxRedirectDepth == 0 {
		c.Resolver.MaxRedirectDepth = DefaultMaxRedirectDepth
	}
	if c.Resolver.MaxRedirectDepth < 1 {
		return fmt.Errorf("resolver.max_redirect_depth must be positive, got %d", c.Resolver.MaxRedirectDepth)
	}
	if c.Changelog.PageSize == 0 {
		c.Changelog.PageSize = DefaultChangelogPageSize
	}
	if c.Changelog.PageSize < 1 {
		return fmt.Errorf("changelog.page_size must be positive, got %d", c.Changelog.PageSize)
	}

	if c.Encryption.Type == "" {
		c.Encryption.Type = "age"
	}
	switch c.Encryption.Type {
	case "age", "test":
	default:
		return fmt.Errorf("encryption.type: unknown type %q", c.Encryption.Type)
	}

	for i, v := range c.Vaults {
		switch v.Type {
		case "memory":
		case "filesystem":
			if v.FSVaultRoot == "" {
				return fmt.Errorf("vaults[%d]: fs_vault_root required for filesystem vault", i)
			}
		case "s3":
			if v.S3Bucket == "" {
				return fmt.Errorf("vaults[%d]: s3_bucket required for s3 vault", i)
			}
			if (v.S3AccessKeyID == "") != (v.S3SecretAccessKey == "") {
				return fmt.Errorf("vaults[%d]: s3_access_key_id and s3_secret_access_key must be set together", i)
			}
		default:
			return fmt.Errorf("vaults[%d]: unknown vault type %q", i, v.Type)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
