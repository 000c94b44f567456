package identity

import (
	"crypto/subtle"
	"strings"
)

// APIKeyVerifier checks service-to-service keys.
type APIKeyVerifier struct {
	keys [][]byte
}

func NewAPIKeyVerifier(keys []string) *APIKeyVerifier {
	v := &APIKeyVerifier{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

// Enabled reports whether any key is configured.
func (v *APIKeyVerifier) Enabled() bool {
	return len(v.keys) > 0
}

func (v *APIKeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}
	candidate := []byte(key)
	match := 0
	for _, k := range v.keys {
		match |= subtle.ConstantTimeCompare(k, candidate)
	}
	return match == 1
}
