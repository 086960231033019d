// Package snapshot archives encrypted copies of the catalog database in a
// vault so a catalog can be restored on another machine.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"catalog-go/internal/catalog"
)

// Names of the items a catalog keeps in a vault.
const (
	NameDatabase   = "db"
	NamePublicKey  = "public_key"
	NamePrivateKey = "private_key"
)

// ErrNoSnapshot is returned by Pull when the vault holds no snapshot for the catalog.
var ErrNoSnapshot = errors.New("no snapshot in vault")

// Vault stores named, versioned items per catalog. All transfers stream
// through io.Reader/io.Writer so snapshots are never held in memory whole.
type Vault interface {
	// PutMetadata stores a named item. size is the number of bytes that will
	// be read from r; version is stored alongside for consistency checks.
	PutMetadata(ctx context.Context, catalogID, name string, r io.Reader, size int64, version int64) error

	// GetMetadata writes a named item to w.
	GetMetadata(ctx context.Context, catalogID, name string, w io.Writer) error

	// GetMetadataVersion returns the version stored with a named item, or 0
	// if the item has never been stored.
	GetMetadataVersion(ctx context.Context, catalogID, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup(ctx context.Context) error
}

// Encryptor encrypts snapshots with a public key and unlocks the private key
// for decryption with a passphrase.
type Encryptor interface {
	// Setup generates a key pair, stores the public key in plaintext and the
	// private key encrypted with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using passphrase. It fails if the
	// passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for one session.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Source produces a consistent point-in-time copy of a database.
type Source interface {
	BackupTo(ctx context.Context, destPath string) error
}

// Archiver pushes and pulls encrypted database snapshots for one catalog.
type Archiver struct {
	catalogID string
	vault     Vault
	enc       Encryptor
	logger    catalog.Logger
}

// NewArchiver creates an Archiver storing snapshots of catalogID in v.
func NewArchiver(catalogID string, v Vault, enc Encryptor, logger catalog.Logger) *Archiver {
	return &Archiver{catalogID: catalogID, vault: v, enc: enc, logger: logger}
}

// RemoteVersion returns the version of the newest snapshot in the vault, or 0.
func (a *Archiver) RemoteVersion(ctx context.Context) (int64, error) {
	v, err := a.vault.GetMetadataVersion(ctx, a.catalogID, NameDatabase)
	if err != nil {
		return 0, fmt.Errorf("reading snapshot version: %w", err)
	}
	return v, nil
}

// Push copies src, encrypts the copy and uploads it tagged with version.
// version is the changelog head the copy was taken at.
func (a *Archiver) Push(ctx context.Context, src Source, version int64) error {
	tmpDir, err := os.MkdirTemp("", "catalog-snapshot-*")
	if err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, "catalog.db")
	if err := src.BackupTo(ctx, plainPath); err != nil {
		return err
	}

	encPath := filepath.Join(tmpDir, "catalog.db.enc")
	if err := a.encryptFile(plainPath, encPath); err != nil {
		return err
	}

	if err := a.putFile(ctx, NameDatabase, encPath, version); err != nil {
		return err
	}
	a.logger.Info("snapshot pushed", "catalog", a.catalogID, "version", version)
	return nil
}

// PushKeys uploads the public key and the passphrase-protected private key
// so that a snapshot can be restored where the local keys are missing.
func (a *Archiver) PushKeys(ctx context.Context, publicKeyPath, privateKeyPath string) error {
	if err := a.putFile(ctx, NamePublicKey, publicKeyPath, 1); err != nil {
		return err
	}
	return a.putFile(ctx, NamePrivateKey, privateKeyPath, 1)
}

// PullKeys downloads the key pair stored by PushKeys. Existing files are
// never overwritten.
func (a *Archiver) PullKeys(ctx context.Context, publicKeyPath, privateKeyPath string) error {
	if err := a.getFile(ctx, NamePublicKey, publicKeyPath, 0644); err != nil {
		return err
	}
	return a.getFile(ctx, NamePrivateKey, privateKeyPath, 0600)
}

// Pull downloads the newest snapshot, decrypts it with dc and writes it to
// destPath, which must not exist. It returns the snapshot's version.
func (a *Archiver) Pull(ctx context.Context, dc DecryptionContext, destPath string) (int64, error) {
	version, err := a.RemoteVersion(ctx)
	if err != nil {
		return 0, err
	}
	if version == 0 {
		return 0, ErrNoSnapshot
	}
	if _, err := os.Stat(destPath); err == nil {
		return 0, fmt.Errorf("refusing to overwrite existing database %s", destPath)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return 0, fmt.Errorf("creating database directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".pull-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(a.vault.GetMetadata(ctx, a.catalogID, NameDatabase, pw))
	}()
	err = dc.Decrypt(pr, tmp)
	pr.Close()
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("restoring snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("installing snapshot: %w", err)
	}
	a.logger.Info("snapshot pulled", "catalog", a.catalogID, "version", version, "path", destPath)
	return version, nil
}

func (a *Archiver) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := a.enc.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	return out.Close()
}

func (a *Archiver) putFile(ctx context.Context, name, path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s for upload: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if err := a.vault.PutMetadata(ctx, a.catalogID, name, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading %s to vault: %w", name, err)
	}
	return nil
}

func (a *Archiver) getFile(ctx context.Context, name, path string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	if err := a.vault.GetMetadata(ctx, a.catalogID, name, f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	return f.Close()
}
