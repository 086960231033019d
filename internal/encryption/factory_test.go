package encryption

import (
	"testing"

	"catalog-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{
			name: "age",
			cfg:  config.EncryptionConfig{Type: "age", PublicKeyPath: "k.pub", PrivateKeyPath: "k.key"},
			want: "*encryption.AgeEncryptor",
		},
		{
			name: "default is age",
			cfg:  config.EncryptionConfig{PublicKeyPath: "k.pub", PrivateKeyPath: "k.key"},
			want: "*encryption.AgeEncryptor",
		},
		{name: "age without key paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, want: "*encryption.TestEncryptor"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if typ := typeName(got); typ != tt.want {
				t.Errorf("NewEncryptorFromConfig() = %s, want %s", typ, tt.want)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *AgeEncryptor:
		return "*encryption.AgeEncryptor"
	case *TestEncryptor:
		return "*encryption.TestEncryptor"
	default:
		return "unknown"
	}
}
