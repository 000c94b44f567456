package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLength matches the configuration check on MT5_ENCRYPTION_KEY.
	MinSecretLength = 32

	keyInfo = "mt5-gateway/credential-vault/v1"
)

// -----------------------------------------------------------------------------

// CredentialVault seals trading credentials for in-memory custody.
// Ciphertext is base64(nonce || XChaCha20-Poly1305(json(credentials))).
type CredentialVault struct {
	aead cipher.AEAD
}

// -----------------------------------------------------------------------------

// NewCredentialVault derives the cipher key from the process-wide secret.
func NewCredentialVault(secret string) (*CredentialVault, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault cipher: %w", err)
	}

	return &CredentialVault{aead: aead}, nil
}

// -----------------------------------------------------------------------------

// Encrypt seals the credentials. The plaintext buffer is wiped before return.
func (v *CredentialVault) Encrypt(creds models.MCredentials) (string, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to encode credentials: %w", err)
	}
	defer wipe(plaintext)

	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plaintext)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// -----------------------------------------------------------------------------

// Decrypt opens a blob produced by Encrypt. Tampered, truncated or
// foreign-key input yields a decrypt error, never partial credentials.
func (v *CredentialVault) Decrypt(blob string) (models.MCredentials, error) {
	var creds models.MCredentials

	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return creds, helpers.NewDecryptError(err)
	}
	if len(raw) < v.aead.NonceSize()+v.aead.Overhead() {
		return creds, helpers.NewDecryptError(fmt.Errorf("blob too short"))
	}

	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return creds, helpers.NewDecryptError(err)
	}
	defer wipe(plaintext)

	var decoded models.MCredentials
	if err := json.Unmarshal(plaintext, &decoded); err != nil {
		return creds, helpers.NewDecryptError(err)
	}
	if decoded.Login <= 0 || decoded.Server == "" {
		return creds, helpers.NewDecryptError(fmt.Errorf("incomplete credential record"))
	}

	return decoded, nil
}

// -----------------------------------------------------------------------------

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
