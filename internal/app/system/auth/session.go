package auth

import (
	"context"
	"net/http"

	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/domain/models"
)

// Session is the application's view of who is signed in. It is derived
// from an identity and its user record and is never persisted.
//
// While Loading is true Record is always nil. A settled session with a
// nil Identity is signed out.
type Session struct {
	Identity *identity.Identity
	Record   *models.User
	Loading  bool

	IsAdmin    bool
	IsLecturer bool
	IsStudent  bool
	IsPending  bool
}

// LoadingSession is the state published while an identity event is resolved.
func LoadingSession(id *identity.Identity) Session {
	return Session{Identity: id, Loading: true}
}

// settled builds the resolved session for id and rec. A nil rec yields
// the signed-out session.
func settled(id *identity.Identity, rec *models.User) Session {
	if id == nil || rec == nil {
		return Session{}
	}
	role := rec.EffectiveRole()
	return Session{
		Identity:   id,
		Record:     rec,
		IsAdmin:    role == models.RoleAdmin,
		IsLecturer: role == models.RoleLecturer,
		IsStudent:  role == models.RoleStudent,
		IsPending:  role == models.RolePending,
	}
}

// Authenticated reports whether the session is settled with a user record.
func (s Session) Authenticated() bool {
	return !s.Loading && s.Identity != nil && s.Record != nil
}

// Role is the effective role, or "" when not authenticated.
func (s Session) Role() models.Role {
	if !s.Authenticated() {
		return ""
	}
	return s.Record.EffectiveRole()
}

// UserID is the identity id, or "" when not authenticated.
func (s Session) UserID() string {
	if !s.Authenticated() {
		return ""
	}
	return s.Identity.ID
}

// Deactivated reports whether an admin switched the user's account off.
// Hardcoded admins are never deactivated.
func (s Session) Deactivated() bool {
	return s.Authenticated() && !s.Record.IsActive && !s.Record.IsHardcodedAdmin
}

// EmailVerified reports the identity's verification flag.
func (s Session) EmailVerified() bool {
	return s.Identity != nil && s.Identity.EmailVerified
}

type ctxKey string

const sessionKey ctxKey = "session"

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the session stored in ctx. Without one it returns
// the loading session, so gates never grant on a missing middleware.
func SessionFrom(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey).(Session); ok {
		return s
	}
	return LoadingSession(nil)
}

// CurrentSession returns the session attached to r by SessionManager.Load.
func CurrentSession(r *http.Request) Session {
	return SessionFrom(r.Context())
}
