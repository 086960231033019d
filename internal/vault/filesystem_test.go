package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates root directory", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if _, err := os.Stat(root); err != nil {
			t.Errorf("root directory not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemVault("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutMetadata(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "store item successfully", data: "hello world", size: 11},
		{name: "size mismatch", data: "hello", size: 100, wantErr: true},
		{name: "empty item", data: "", size: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			v, err := NewFileSystemVault("test", root)
			if err != nil {
				t.Fatalf("NewFileSystemVault() error = %v", err)
			}

			err = v.PutMetadata(context.Background(), "cat-1", "db", strings.NewReader(tt.data), tt.size, 5)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PutMetadata() error = %v, wantErr %v", err, tt.wantErr)
			}

			path := filepath.Join(root, "cat-1", "db")
			_, statErr := os.Stat(path)
			if tt.wantErr {
				if statErr == nil {
					t.Error("item written despite size mismatch")
				}
				return
			}
			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("reading stored item: %v", err)
			}
			if string(got) != tt.data {
				t.Errorf("stored data = %q, want %q", got, tt.data)
			}
		})
	}
}

func TestFileSystemVault_RoundTrip(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	version, err := v.GetMetadataVersion(ctx, "cat-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("GetMetadataVersion() before put = %d, want 0", version)
	}

	if err := v.PutMetadata(ctx, "cat-1", "db", strings.NewReader("v1"), 2, 1); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}
	if err := v.PutMetadata(ctx, "cat-1", "db", strings.NewReader("v2!"), 3, 42); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	version, err = v.GetMetadataVersion(ctx, "cat-1", "db")
	if err != nil {
		t.Fatalf("GetMetadataVersion() error = %v", err)
	}
	if version != 42 {
		t.Errorf("GetMetadataVersion() = %d, want 42", version)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "cat-1", "db", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != "v2!" {
		t.Errorf("GetMetadata() = %q, want %q", buf.String(), "v2!")
	}
}

func TestFileSystemVault_GetMetadata_NotFound(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	var buf bytes.Buffer
	err = v.GetMetadata(context.Background(), "cat-1", "db", &buf)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("GetMetadata() error = %v, want not found", err)
	}
}

func TestFileSystemVault_RejectsPathTraversal(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	for _, id := range []string{"../escape", "a/b", "", ".hidden"} {
		err := v.PutMetadata(context.Background(), id, "db", strings.NewReader("x"), 1, 1)
		if err == nil {
			t.Errorf("PutMetadata(catalogID=%q) expected error", id)
		}
	}
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("valid vault", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := v.ValidateSetup(context.Background()); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("root removed", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "vault")
		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
		if err := os.RemoveAll(root); err != nil {
			t.Fatal(err)
		}
		if err := v.ValidateSetup(context.Background()); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}
