package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"catalog-go/internal/snapshot"
)

// FileSystemVault stores vault items as files, one directory per catalog:
//
//	<root>/
//	  <catalogID>/
//	    <name>           (item data)
//	    <name>.version   (decimal version)
//
// Data is written to a temp file and renamed into place, so a reader never
// sees a partial item.
type FileSystemVault struct {
	name string
	root string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create vault root: %w", err)
	}
	return &FileSystemVault{name: name, root: root}, nil
}

func (v *FileSystemVault) itemPath(catalogID, name string) (string, error) {
	for _, part := range []string{catalogID, name} {
		if part == "" || part != filepath.Base(part) || strings.HasPrefix(part, ".") {
			return "", fmt.Errorf("invalid vault path component %q", part)
		}
	}
	return filepath.Join(v.root, catalogID, name), nil
}

// PutMetadata stores a named item and its version marker. The version is
// written last so an interrupted upload leaves the old version in place.
func (v *FileSystemVault) PutMetadata(_ context.Context, catalogID, name string, r io.Reader, size int64, version int64) error {
	destPath, err := v.itemPath(catalogID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}

	if err := writeFile(destPath, r, size); err != nil {
		return err
	}
	versionData := strconv.FormatInt(version, 10)
	return writeFile(destPath+".version", strings.NewReader(versionData), int64(len(versionData)))
}

// GetMetadataVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(_ context.Context, catalogID, name string) (int64, error) {
	path, err := v.itemPath(catalogID, name)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(path + ".version")
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetMetadata writes a named item to w.
func (v *FileSystemVault) GetMetadata(_ context.Context, catalogID, name string, w io.Writer) error {
	path, err := v.itemPath(catalogID, name)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s not found for catalog %s", name, catalogID)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault root is an accessible, writable directory.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	probe, err := os.CreateTemp(v.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("vault root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

// writeFile writes data from r to destPath using a temp file and rename.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ snapshot.Vault = (*FileSystemVault)(nil)
