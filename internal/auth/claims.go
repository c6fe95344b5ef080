package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the access token shape minted by the managed auth provider.
// Subject is the user id; AppMetadata is writable only server-side, so
// admin privileges and account binding are read from there.
type Claims struct {
	jwt.RegisteredClaims

	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

type AppMetadata struct {
	Role      string `json:"role,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

// Identity is the caller as seen by handlers.
type Identity struct {
	UserID    string
	AccountID string
	Role      string
}

const (
	providerRoleService = "service_role"
	appRoleAdmin        = "admin"

	RoleAuthenticated = "authenticated"
	RoleAdmin         = "admin"
	RoleService       = "service_role"
)

// Identity resolves the effective role and account of the token holder.
// Accounts are one-per-user unless app_metadata binds the user elsewhere.
func (c Claims) Identity() Identity {
	id := Identity{UserID: c.Subject, AccountID: c.AppMetadata.AccountID, Role: RoleAuthenticated}
	if id.AccountID == "" {
		id.AccountID = c.Subject
	}
	switch {
	case c.Role == providerRoleService:
		id.Role = RoleService
	case c.AppMetadata.Role == appRoleAdmin:
		id.Role = RoleAdmin
	}
	return id
}
