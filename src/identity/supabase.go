package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/models"
)

const defaultRole = "authenticated"

// -----------------------------------------------------------------------------

// SupabaseVerifier introspects access tokens against the Supabase auth API.
type SupabaseVerifier struct {
	baseURL string
	anonKey string
	net     interfaces.INetworkManager
	logger  *logger.Logger
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Phone string `json:"phone"`
}

// -----------------------------------------------------------------------------

func NewSupabaseVerifier(baseURL, anonKey string, net interfaces.INetworkManager, log *logger.Logger) *SupabaseVerifier {
	return &SupabaseVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		net:     net,
		logger:  log,
	}
}

// -----------------------------------------------------------------------------

// Verify resolves token to a user. Rejected tokens are Authentication
// errors; an unreachable provider is PeerUnavailable.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*models.MUserIdentity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, helpers.NewAuthenticationError("missing token")
	}

	headers := map[string]string{
		"apikey":        v.anonKey,
		"Authorization": "Bearer " + token,
	}
	resp, err := v.net.Get(ctx, v.baseURL+"/auth/v1/user", nil, headers)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, helpers.NewAuthenticationError("invalid or expired token")
	case resp.StatusCode >= 500:
		return nil, helpers.NewPeerUnavailableError("identity provider", fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		v.logger.Warning("identity provider returned %d", resp.StatusCode)
		return nil, helpers.NewAuthenticationError("invalid or expired token")
	}

	var user supabaseUser
	if err := resp.Decode(&user); err != nil {
		return nil, helpers.NewPeerUnavailableError("identity provider", err)
	}
	if user.ID == "" {
		return nil, helpers.NewAuthenticationError("invalid or expired token")
	}

	role := user.Role
	if role == "" {
		role = defaultRole
	}
	return &models.MUserIdentity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
		Phone:  user.Phone,
	}, nil
}
