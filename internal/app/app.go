package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"catalog-go/internal/catalog"
	"catalog-go/internal/config"
	"catalog-go/internal/database"
	"catalog-go/internal/encryption"
	"catalog-go/internal/snapshot"
	"catalog-go/internal/vault"
)

// CatalogApp is the application layer between the CLI and catalog.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings from the command line, and manages the DB
// lifecycle on Close.
type CatalogApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	encryptor snapshot.Encryptor
	archiver  *snapshot.Archiver // nil when no vault is configured
	service   *catalog.Service
	logger    catalog.Logger
	op        *Operation
	logFile   *os.File
}

// NewCatalogApp creates a fully wired CatalogApp from the given config.
// operation identifies the CLI command being run (e.g. "AcceptGroup", "Follow").
// The caller must call Close when done.
func NewCatalogApp(ctx context.Context, cfg *config.Config, operation string) (*CatalogApp, error) {
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, sessionID, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	a, err := newCatalogApp(ctx, cfg, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.op = NewOperation(operation, sessionID)
	a.logFile = logFile
	return a, nil
}

func newCatalogApp(ctx context.Context, cfg *config.Config, logger catalog.Logger) (*CatalogApp, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.CatalogID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	svc := catalog.NewService(db, logger, catalog.RealClock{}, catalog.UUIDGenerator{}, catalog.Options{
		MaxRedirectDepth:  cfg.Resolver.MaxRedirectDepth,
		ChangelogPageSize: cfg.Changelog.PageSize,
	})

	archiver, err := newArchiver(ctx, cfg, enc, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	if archiver != nil {
		// Check local changelog head against the newest snapshot in the vault.
		remoteVersion, err := archiver.RemoteVersion(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking remote snapshot version: %w", err)
		}
		head, err := svc.Head(ctx)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("checking local changelog head: %w", err)
		}
		if remoteVersion > head {
			db.Close()
			return nil, fmt.Errorf("local database is behind remote (local=%d, remote=%d): pull the snapshot or re-initialize", head, remoteVersion)
		}
	}

	return &CatalogApp{
		cfg:       cfg,
		db:        db,
		encryptor: enc,
		archiver:  archiver,
		service:   svc,
		logger:    logger,
		op:        NewOperation("", ""),
	}, nil
}

// newArchiver builds the snapshot archiver for the first configured vault,
// or returns nil if there is none.
func newArchiver(ctx context.Context, cfg *config.Config, enc snapshot.Encryptor, logger catalog.Logger) (*snapshot.Archiver, error) {
	if len(cfg.Vaults) == 0 {
		return nil, nil
	}
	v, err := vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	return snapshot.NewArchiver(cfg.CatalogID, v, enc, logger), nil
}

// Service returns the underlying catalog service.
func (a *CatalogApp) Service() *catalog.Service {
	return a.service
}

// PushSnapshot uploads an encrypted copy of the database tagged with the
// current changelog head, and returns that head.
func (a *CatalogApp) PushSnapshot(ctx context.Context) (int64, error) {
	if a.archiver == nil {
		return 0, fmt.Errorf("no vaults configured")
	}
	if !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("encryption keys not found: run 'catalog keys init' first")
	}
	head, err := a.service.Head(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.archiver.Push(ctx, a.db, head); err != nil {
		return 0, fmt.Errorf("pushing snapshot: %w", err)
	}
	return head, nil
}

// Close closes the database. If the operation accepted edits and a vault
// and keys are available, a snapshot is pushed first.
func (a *CatalogApp) Close() error {
	var firstErr error

	if a.op.Mutated() && a.archiver != nil && a.encryptor.IsConfigured() {
		if _, err := a.PushSnapshot(context.Background()); err != nil {
			firstErr = err
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// InitKeys generates the snapshot key pair protected by passphrase. When a
// vault is configured the keys are uploaded so another machine can restore.
func InitKeys(ctx context.Context, cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}

	archiver, err := newArchiver(ctx, cfg, enc, catalog.NewNopLogger())
	if err != nil {
		return err
	}
	if archiver == nil || cfg.Encryption.Type == "test" {
		return nil
	}
	if err := archiver.PushKeys(ctx, cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath); err != nil {
		return fmt.Errorf("uploading keys: %w", err)
	}
	return nil
}

// MigrateDatabase applies all pending schema migrations to the configured database.
func MigrateDatabase(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.CatalogID)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// DatabaseSchema returns the SQL schema of the configured database.
func DatabaseSchema(ctx context.Context, cfg *config.Config) (string, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.CatalogID)
	if err != nil {
		return "", fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	return db.Schema(ctx)
}

// PullSnapshot restores the newest snapshot from the first configured vault
// into the configured database path, which must not exist yet. Keys missing
// locally are downloaded from the vault first. It returns the snapshot version.
func PullSnapshot(ctx context.Context, cfg *config.Config, passphrase string) (int64, error) {
	if cfg.Database.Type != "sqlite" {
		return 0, fmt.Errorf("snapshots can only be restored into a sqlite database")
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return 0, fmt.Errorf("creating encryptor: %w", err)
	}
	archiver, err := newArchiver(ctx, cfg, enc, catalog.NewNopLogger())
	if err != nil {
		return 0, err
	}
	if archiver == nil {
		return 0, fmt.Errorf("no vaults configured")
	}

	if !enc.IsConfigured() {
		if err := archiver.PullKeys(ctx, cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath); err != nil {
			return 0, fmt.Errorf("restoring keys: %w", err)
		}
	}

	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking private key: %w", err)
	}

	version, err := archiver.Pull(ctx, dc, database.DatabasePath(cfg.Database, cfg.CatalogID))
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return 0, fmt.Errorf("vault %q has no snapshot for catalog %s", cfg.Vaults[0].Name, cfg.CatalogID)
	}
	return version, err
}
