package models

// MUserIdentity is what the identity provider resolves a bearer token to.
type MUserIdentity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Phone  string `json:"phone,omitempty"`
}
