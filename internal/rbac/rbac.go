// Package rbac maps admin roles to their fixed capability sets.
package rbac

import "strings"

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

type Permission string

const (
	ViewOrders   Permission = "VIEW_ORDERS"
	CreateOrders Permission = "CREATE_ORDERS"
	UpdateOrders Permission = "UPDATE_ORDERS"
	DeleteOrders Permission = "DELETE_ORDERS"
	SendEmails   Permission = "SEND_EMAILS"
	ViewStats    Permission = "VIEW_STATS"
	ManageUsers  Permission = "MANAGE_USERS"
	AdminAccess  Permission = "ADMIN_ACCESS"
)

// AllPermissions lists every permission in display order.
var AllPermissions = []Permission{
	ViewOrders, CreateOrders, UpdateOrders, DeleteOrders,
	SendEmails, ViewStats, ManageUsers, AdminAccess,
}

type permissionSet map[Permission]struct{}

func newSet(perms ...Permission) permissionSet {
	s := make(permissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

// rolePermissions is written once at init and only read afterwards,
// so lookups need no locking.
var rolePermissions = map[Role]permissionSet{
	RoleAdmin:     newSet(AllPermissions...),
	RoleModerator: newSet(ViewOrders, UpdateOrders, ViewStats, AdminAccess),
	RoleUser:      newSet(),
}

// ParseRole returns the role named by s. Unknown names map to an empty role
// that holds no permissions.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rolePermissions[r]; ok {
		return r
	}
	return Role("")
}

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// HasPermission reports whether role grants perm. Unknown roles and unknown
// permissions are denied.
func HasPermission(role Role, perm Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		return false
	}
	_, ok = set[perm]
	return ok
}

func HasAdminAccess(role Role) bool {
	return HasPermission(role, AdminAccess)
}

// Permissions returns a copy of the role's permissions in display order.
func Permissions(role Role) []Permission {
	out := make([]Permission, 0, len(AllPermissions))
	for _, p := range AllPermissions {
		if HasPermission(role, p) {
			out = append(out, p)
		}
	}
	return out
}
