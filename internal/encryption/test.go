package encryption

import (
	"bytes"
	"fmt"
	"io"

	"catalog-go/internal/snapshot"
)

// testMagic marks data written by TestEncryptor.
var testMagic = []byte("CATSNAP1")

// TestEncryptor frames data with a fixed header instead of encrypting it.
// Output is deterministic and differs from the input, which is enough for
// tests of the snapshot pipeline. The passphrase passed to Setup is
// remembered and checked by Unlock so passphrase handling can be exercised.
type TestEncryptor struct {
	passphrase string
	configured bool
}

// NewTestEncryptor creates a TestEncryptor that is already configured and
// accepts any passphrase until Setup is called.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (snapshot.DecryptionContext, error) {
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

// TestDecryptionContext strips the header written by TestEncryptor.
type TestDecryptionContext struct{}

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return fmt.Errorf("not a test-encrypted stream")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

var (
	_ snapshot.Encryptor         = (*TestEncryptor)(nil)
	_ snapshot.DecryptionContext = (*TestDecryptionContext)(nil)
)
