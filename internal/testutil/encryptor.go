package testutil

import (
	"catalog-go/internal/encryption"
	"catalog-go/internal/snapshot"
)

// NewTestEncryptor creates a header-framing encryptor that needs no keys.
func NewTestEncryptor() snapshot.Encryptor {
	return encryption.NewTestEncryptor()
}
