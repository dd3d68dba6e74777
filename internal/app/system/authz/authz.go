// Package authz answers role questions about the current request.
// Every predicate is false unless the request carries a settled,
// authenticated session.
package authz

import (
	"net/http"

	"github.com/dalemusser/tutorhub/internal/app/system/auth"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// UserCtx returns the effective role, display name, user id and a found
// flag. Without an authenticated session it returns "visitor", "", "", false.
func UserCtx(r *http.Request) (role models.Role, name string, userID string, ok bool) {
	s := auth.CurrentSession(r)
	if !s.Authenticated() {
		return "visitor", "", "", false
	}
	return s.Role(), s.Record.DisplayName, s.UserID(), true
}

// IsAdmin reports whether the current user is an admin.
func IsAdmin(r *http.Request) bool {
	return auth.CurrentSession(r).IsAdmin
}

// IsLecturer reports whether the current user is a lecturer.
func IsLecturer(r *http.Request) bool {
	return auth.CurrentSession(r).IsLecturer
}

// IsStudent reports whether the current user is a student.
func IsStudent(r *http.Request) bool {
	return auth.CurrentSession(r).IsStudent
}

// IsPending reports whether the current user is waiting for role approval.
func IsPending(r *http.Request) bool {
	return auth.CurrentSession(r).IsPending
}

// HasAnyRole reports whether the current user has any of the given roles.
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	return SessionHasAnyRole(auth.CurrentSession(r), roles...)
}

// SessionHasAnyRole is HasAnyRole for a session value.
func SessionHasAnyRole(s auth.Session, roles ...models.Role) bool {
	if !s.Authenticated() {
		return false
	}
	cur := s.Role()
	for _, want := range roles {
		if cur == want {
			return true
		}
	}
	return false
}

// CanManageUsers reports whether the current user may approve roles and
// edit other users.
func CanManageUsers(r *http.Request) bool {
	return IsAdmin(r)
}

// CanPublish reports whether the current user may post questions,
// assignments and answers that notify subscribers.
func CanPublish(r *http.Request) bool {
	return HasAnyRole(r, models.RoleLecturer, models.RoleAdmin)
}

// CanSubscribe reports whether the current user may follow lecturers.
func CanSubscribe(r *http.Request) bool {
	return IsStudent(r)
}
