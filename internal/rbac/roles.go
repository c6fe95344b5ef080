package rbac

import "inbound-genie/internal/auth"

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAuthenticated = auth.RoleAuthenticated
	RoleAdmin         = auth.RoleAdmin
	RoleService       = auth.RoleService
)

// IsService reports whether role is the backend service role, which bypasses
// role checks (ledgerctl, internal jobs).
func IsService(role string) bool { return role == RoleService }
