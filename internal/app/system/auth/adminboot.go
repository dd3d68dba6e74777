package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// ErrInvalidAdminCredentials is returned when an allowlisted email signs
// in with anything other than the bootstrap secret. It matches
// identity.ErrInvalidCredential under errors.Is.
var ErrInvalidAdminCredentials = fmt.Errorf("auth: invalid admin credentials: %w", identity.ErrInvalidCredential)

// AdminBootstrap signs in allowlisted admins, creating their identity
// and admin record the first time they sign in.
type AdminBootstrap struct {
	provider identity.Provider
	users    *userstore.Store
	secret   string
	log      *zap.Logger
}

// NewAdminBootstrap creates an AdminBootstrap acting through p. An empty
// secret disables the bootstrap: every attempt is rejected.
func NewAdminBootstrap(p identity.Provider, users *userstore.Store, secret string, logger *zap.Logger) *AdminBootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminBootstrap{provider: p, users: users, secret: secret, log: logger}
}

// SignIn signs email in with the bootstrap secret.
func (b *AdminBootstrap) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	id, _, err := b.signIn(ctx, email, password)
	return id, err
}

// signIn also reports whether the identity was created by this call.
func (b *AdminBootstrap) signIn(ctx context.Context, email, password string) (*identity.Identity, bool, error) {
	if !b.secretMatches(password) {
		return nil, false, ErrInvalidAdminCredentials
	}

	id, err := b.provider.SignIn(ctx, email, password)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, identity.ErrUnknownIdentity) && !errors.Is(err, identity.ErrInvalidCredential) {
		return nil, false, err
	}

	id, err = b.provider.CreateIdentity(ctx, email, password)
	if err != nil {
		return nil, false, err
	}

	rec := userstore.NewRecord(id.ID, id.Email, models.RoleAdmin, true)
	if _, werr := b.users.Put(ctx, rec, docstore.Replace); werr != nil {
		// The resolver writes the same record on the next resolution.
		b.log.Warn("admin record write failed",
			zap.String("user_id", id.ID), zap.Error(werr))
	}
	b.log.Info("admin bootstrapped", zap.String("user_id", id.ID))
	return id, true, nil
}

func (b *AdminBootstrap) secretMatches(password string) bool {
	if b.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(b.secret)) == 1
}
