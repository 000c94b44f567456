package testutil

import (
	"context"
	"sync"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"
)

// FakeIdentity resolves tokens from a fixed table.
type FakeIdentity struct {
	mu     sync.Mutex
	tokens map[string]models.MUserIdentity
}

func NewFakeIdentity(tokens map[string]string) *FakeIdentity {
	f := &FakeIdentity{tokens: map[string]models.MUserIdentity{}}
	for token, userID := range tokens {
		f.tokens[token] = models.MUserIdentity{UserID: userID, Email: userID + "@example.com", Role: "authenticated"}
	}
	return f
}

func (f *FakeIdentity) Verify(ctx context.Context, token string) (*models.MUserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.tokens[token]
	if !ok {
		return nil, helpers.NewAuthenticationError("invalid or expired token")
	}
	return &user, nil
}
