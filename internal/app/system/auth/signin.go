package auth

import (
	"context"

	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"go.uber.org/zap"
)

// SignInResult describes a successful sign-in.
type SignInResult struct {
	Identity *identity.Identity
	// Admin is true when the email was handled by the admin bootstrap.
	Admin bool
	// Created is true when the bootstrap created the identity.
	Created bool
}

// Authenticator routes sign-in attempts: allowlisted emails go through
// the admin bootstrap, every other email straight to the provider.
type Authenticator struct {
	users  *userstore.Store
	admins AdminAllowlist
	secret string
	log    *zap.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(users *userstore.Store, admins AdminAllowlist, secret string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{users: users, admins: admins, secret: secret, log: logger}
}

// Bootstrap returns the admin bootstrap acting through p.
func (a *Authenticator) Bootstrap(p identity.Provider) *AdminBootstrap {
	return NewAdminBootstrap(p, a.users, a.secret, a.log)
}

// IsAdmin reports whether email is on the admin allowlist.
func (a *Authenticator) IsAdmin(email string) bool { return a.admins.Contains(email) }

// SignIn signs email in through p.
func (a *Authenticator) SignIn(ctx context.Context, p identity.Provider, email, password string) (SignInResult, error) {
	if a.admins.Contains(email) {
		id, created, err := a.Bootstrap(p).signIn(ctx, email, password)
		if err != nil {
			return SignInResult{}, err
		}
		return SignInResult{Identity: id, Admin: true, Created: created}, nil
	}

	id, err := p.SignIn(ctx, email, password)
	if err != nil {
		return SignInResult{}, err
	}
	return SignInResult{Identity: id}, nil
}
