package encryption

import (
	"fmt"

	"catalog-go/internal/config"
	"catalog-go/internal/snapshot"
)

// NewEncryptorFromConfig creates the snapshot encryptor named by cfg.Type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (snapshot.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
