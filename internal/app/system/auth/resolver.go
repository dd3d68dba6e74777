package auth

import (
	"context"
	"strings"
	"time"

	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/app/system/identity"
	"github.com/dalemusser/tutorhub/internal/app/system/timeouts"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"go.uber.org/zap"
)

// AdminAllowlist is the fixed set of emails that are always admins.
type AdminAllowlist map[string]struct{}

// NewAdminAllowlist builds an allowlist from raw addresses. Blank
// entries are ignored and matching is case-insensitive.
func NewAdminAllowlist(emails ...string) AdminAllowlist {
	out := make(AdminAllowlist, len(emails))
	for _, e := range emails {
		e = identity.NormalizeEmail(e)
		if e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}

// ParseAdminAllowlist splits a comma separated list.
func ParseAdminAllowlist(csv string) AdminAllowlist {
	return NewAdminAllowlist(strings.Split(csv, ",")...)
}

// Contains reports whether email is allowlisted.
func (a AdminAllowlist) Contains(email string) bool {
	_, ok := a[identity.NormalizeEmail(email)]
	return ok
}

// Resolver turns an identity into a Session, creating the user record
// on first sight.
type Resolver struct {
	users  *userstore.Store
	admins AdminAllowlist
	log    *zap.Logger
	now    func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(users *userstore.Store, admins AdminAllowlist, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, admins: admins, log: logger, now: time.Now}
}

// Admins returns the allowlist the resolver was built with.
func (r *Resolver) Admins() AdminAllowlist { return r.admins }

// Resolve loads or creates the record for id and derives the session.
// It never returns a loading session: a store failure on the read or
// the create yields the signed-out session.
func (r *Resolver) Resolve(ctx context.Context, id *identity.Identity) Session {
	if id == nil {
		return Session{}
	}

	rctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	rec, err := r.users.Get(rctx, id.ID)
	switch {
	case err == nil:
		now := r.now().UTC()
		if terr := r.users.TouchLastLogin(rctx, id.ID, now); terr != nil {
			r.log.Warn("last login refresh failed",
				zap.String("user_id", id.ID), zap.Error(terr))
		} else {
			rec.LastLoginAt = now
		}
	case docstore.IsNotFound(err):
		rec, err = r.create(rctx, id)
		if err != nil {
			r.log.Error("user record create failed; session signed out",
				zap.String("user_id", id.ID), zap.Error(err))
			return Session{}
		}
	default:
		r.log.Error("user record read failed; session signed out",
			zap.String("user_id", id.ID), zap.Error(err))
		return Session{}
	}

	return settled(id, rec)
}

func (r *Resolver) create(ctx context.Context, id *identity.Identity) (*models.User, error) {
	role, hardcoded := models.RolePending, false
	if r.admins.Contains(id.Email) {
		role, hardcoded = models.RoleAdmin, true
	}
	rec := userstore.NewRecord(id.ID, id.Email, role, hardcoded)
	rec.DisplayName = id.DisplayName
	rec.CreatedAt = r.now().UTC()
	rec.LastLoginAt = rec.CreatedAt

	written, err := r.users.Put(ctx, rec, docstore.Replace)
	if err != nil {
		return nil, err
	}
	r.log.Info("user record created",
		zap.String("user_id", id.ID), zap.String("role", string(role)))
	return &written, nil
}
