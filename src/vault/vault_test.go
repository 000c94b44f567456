package vault

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secretA = "a-very-long-server-side-secret-0001"
	secretB = "a-very-long-server-side-secret-0002"
)

func newVault(t *testing.T, secret string) *CredentialVault {
	t.Helper()
	v, err := NewCredentialVault(secret)
	require.NoError(t, err)
	return v
}

func TestRoundTrip(t *testing.T) {
	v := newVault(t, secretA)

	testCases := []models.MCredentials{
		{Login: 123, Password: "p", Server: "Demo"},
		{Login: 99887766, Password: "pä$$ wörd \"quoted\"", Server: "MetaQuotes-Demo"},
		{Login: 1, Password: "", Server: "x"},
	}

	for _, creds := range testCases {
		blob, err := v.Encrypt(creds)
		require.NoError(t, err)
		raw, err := base64.RawURLEncoding.DecodeString(blob)
		require.NoError(t, err)
		plaintext, err := json.Marshal(creds)
		require.NoError(t, err)
		assert.False(t, bytes.Contains(raw, plaintext), "sealed blob carries the plaintext")

		got, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, creds, got)
	}
}

func TestEncryptIsRandomized(t *testing.T) {
	v := newVault(t, secretA)
	creds := models.MCredentials{Login: 123, Password: "p", Server: "Demo"}

	a, err := v.Encrypt(creds)
	require.NoError(t, err)
	b, err := v.Encrypt(creds)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptWithForeignKeyFails(t *testing.T) {
	blob, err := newVault(t, secretA).Encrypt(models.MCredentials{Login: 123, Password: "p", Server: "Demo"})
	require.NoError(t, err)

	got, err := newVault(t, secretB).Decrypt(blob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, helpers.ErrBadCredentialBlob))
	assert.True(t, helpers.IsKind(err, helpers.KindDecrypt))
	assert.Equal(t, models.MCredentials{}, got)
}

func TestDecryptCorruptedInput(t *testing.T) {
	v := newVault(t, secretA)
	blob, err := v.Encrypt(models.MCredentials{Login: 123, Password: "p", Server: "Demo"})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(blob)
	require.NoError(t, err)
	flipped := append([]byte(nil), raw...)
	flipped[len(flipped)-1] ^= 0x01

	testCases := map[string]string{
		"flipped tag":   base64.RawURLEncoding.EncodeToString(flipped),
		"truncated":     base64.RawURLEncoding.EncodeToString(raw[:10]),
		"not base64":    "%%%not-base64%%%",
		"empty":         "",
		"trailing junk": blob + strings.Repeat("A", 8),
	}

	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := v.Decrypt(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, helpers.ErrBadCredentialBlob))
			assert.Equal(t, models.MCredentials{}, got)
		})
	}
}

func TestNewCredentialVaultRejectsShortSecret(t *testing.T) {
	_, err := NewCredentialVault("short")
	require.Error(t, err)
}
