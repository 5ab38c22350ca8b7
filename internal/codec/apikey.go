package codec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const (
	apiKeyNamespace   = "st_live_"
	apiKeyPrefixBytes = 4
	apiKeySecretBytes = 24
)

// APIKeyMaterial ключ в открытом виде показывается пользователю один раз
type APIKeyMaterial struct {
	Plaintext string
	Prefix    string
	Hash      string
}

// NewAPIKeyMaterial генерирует ключ формата st_live_{8 hex}_{secret}
func NewAPIKeyMaterial() (*APIKeyMaterial, error) {
	prefixBytes := make([]byte, apiKeyPrefixBytes)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, err
	}
	secretBytes := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, err
	}

	prefix := apiKeyNamespace + hex.EncodeToString(prefixBytes)
	plaintext := prefix + "_" + base64.RawURLEncoding.EncodeToString(secretBytes)

	return &APIKeyMaterial{
		Plaintext: plaintext,
		Prefix:    prefix,
		Hash:      HashAPIKey(plaintext),
	}, nil
}

// HashAPIKey hex(sha256(key)). Поиск ключа идёт только по хэшу.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
