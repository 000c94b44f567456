package interfaces

import (
	"context"

	"mt5-gateway/src/models"
)

// -----------------------------------------------------------------------------
// IIdentityProvider resolves a bearer token to a user. Any failure to
// resolve is an error; a nil identity is never returned with a nil error.
// -----------------------------------------------------------------------------

type IIdentityProvider interface {
	Verify(ctx context.Context, token string) (*models.MUserIdentity, error)
}
