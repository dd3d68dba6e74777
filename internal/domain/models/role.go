// internal/domain/models/role.go
package models

import "strings"

// Role is the closed set of application roles a UserRecord can carry.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
	RolePending  Role = "pending"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleAdmin, RoleLecturer, RoleStudent, RolePending}

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLecturer, RoleStudent, RolePending:
		return true
	}
	return false
}

// Requestable reports whether a new user may ask for r at sign-up.
// Admin is never requestable; it comes from the allowlist only.
func (r Role) Requestable() bool {
	return r == RoleLecturer || r == RoleStudent
}

// ParseRole normalizes s and returns the matching role.
// Unknown or empty values map to RolePending so a corrupted record
// never grants more than the pending view.
func ParseRole(s string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return RolePending
	}
	return r
}

func (r Role) String() string { return string(r) }
