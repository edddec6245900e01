package user

import (
	"time"

	"github.com/antonminaichev/linkcard/internal/rbac"
)

// Principal is the authenticated bearer of an admin session.
type Principal struct {
	SessionID string    `json:"-"`
	Subject   string    `json:"subject"`
	Role      rbac.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type MeDTO struct {
	Role           rbac.Role         `json:"role"`
	Permissions    []rbac.Permission `json:"permissions"`
	CanAccessAdmin bool              `json:"canAccessAdmin"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}
