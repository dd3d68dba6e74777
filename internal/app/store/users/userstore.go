package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/tutorhub/internal/app/system/docstore"
	"github.com/dalemusser/tutorhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection holds one record per identity, keyed by the identity id.
const Collection = "users"

var (
	ErrBadRole      = errors.New(`role must be "admin"|"lecturer"|"student"|"pending"`)
	ErrNotRequested = errors.New("user has no requested role")
	errMissingID    = errors.New("user id is required")
)

type Store struct {
	ds docstore.Store
}

func New(ds docstore.Store) *Store {
	return &Store{ds: ds}
}

// Get loads a user by id. Returns docstore.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.ds.Get(ctx, Collection, id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Put writes the whole record with the given mode after normalizing
// the email and display name. The record id must be set.
func (s *Store) Put(ctx context.Context, u models.User, mode docstore.WriteMode) (models.User, error) {
	if u.ID == "" {
		return models.User{}, errMissingID
	}
	if !u.Role.Valid() {
		return models.User{}, ErrBadRole
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.DisplayName == "" {
		u.DisplayName = displayNameFromEmail(u.Email)
	}
	u.DisplayNameCI = text.Fold(u.DisplayName)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if err := s.ds.Set(ctx, Collection, u.ID, u, mode); err != nil {
		return models.User{}, fmt.Errorf("write user %s: %w", u.ID, err)
	}
	return u, nil
}

// NewRecord builds the default record for a first sign-in.
func NewRecord(id, email string, role models.Role, hardcodedAdmin bool) models.User {
	now := time.Now().UTC()
	return models.User{
		ID:               id,
		Email:            email,
		Role:             role,
		IsHardcodedAdmin: hardcodedAdmin,
		IsActive:         true,
		Level:            1,
		Preferences:      models.DefaultPreferences(),
		CreatedAt:        now,
		LastLoginAt:      now,
	}
}

// TouchLastLogin records the time of the latest sign-in.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return s.ds.Update(ctx, Collection, id, bson.M{"last_login_at": at.UTC()})
}

// ProfileUpdate holds the self-service profile fields. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	DisplayName *string
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	set := bson.M{}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		set["display_name"] = name
		set["display_name_ci"] = text.Fold(name)
	}
	if len(set) == 0 {
		return nil
	}
	return s.ds.Update(ctx, Collection, id, set)
}

// PreferencesUpdate holds the preference fields a user may change. Nil
// fields are left unchanged.
type PreferencesUpdate struct {
	EmailNotifications *bool
	PushNotifications  *bool
	Language           *string
}

// UpdatePreferences merges the non-nil fields into the stored preferences.
func (s *Store) UpdatePreferences(ctx context.Context, id string, upd PreferencesUpdate) error {
	set := bson.M{}
	if upd.EmailNotifications != nil {
		set["preferences.email_notifications"] = *upd.EmailNotifications
	}
	if upd.PushNotifications != nil {
		set["preferences.push_notifications"] = *upd.PushNotifications
	}
	if upd.Language != nil {
		set["preferences.language"] = strings.TrimSpace(*upd.Language)
	}
	if len(set) == 0 {
		return nil
	}
	return s.ds.Update(ctx, Collection, id, set)
}

// AdminUpdate holds the fields only an admin may change.
type AdminUpdate struct {
	Role     *models.Role
	IsActive *bool
	Points   *int
	Level    *int
}

// ApplyAdminUpdate writes the non-nil fields of upd. Setting a role
// clears any outstanding role request.
func (s *Store) ApplyAdminUpdate(ctx context.Context, id string, upd AdminUpdate) error {
	set := bson.M{}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return ErrBadRole
		}
		set["role"] = *upd.Role
		set["requested_role"] = nil
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}
	if upd.Points != nil {
		set["points"] = *upd.Points
	}
	if upd.Level != nil {
		set["level"] = *upd.Level
	}
	if len(set) == 0 {
		return nil
	}
	return s.ds.Update(ctx, Collection, id, set)
}

// ApproveRequestedRole promotes a pending user to the role they asked
// for at sign-up and returns the updated record.
func (s *Store) ApproveRequestedRole(ctx context.Context, id string) (*models.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.RequestedRole == nil || !u.RequestedRole.Requestable() {
		return nil, ErrNotRequested
	}
	role := *u.RequestedRole
	if err := s.ApplyAdminUpdate(ctx, id, AdminUpdate{Role: &role}); err != nil {
		return nil, err
	}
	u.Role = role
	u.RequestedRole = nil
	return u, nil
}

// RequestRole records the role a pending user asked for at sign-up.
func (s *Store) RequestRole(ctx context.Context, id string, role models.Role) error {
	if !role.Requestable() {
		return ErrBadRole
	}
	return s.ds.Update(ctx, Collection, id, bson.M{"requested_role": role})
}

// ListPending returns users still waiting for role approval, oldest first.
func (s *Store) ListPending(ctx context.Context) ([]models.User, error) {
	snap, err := s.ds.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("role", models.RolePending)},
		OrderBy:    "created_at",
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.User](snap)
}

// ListByRole returns users with the given role ordered by display name.
func (s *Store) ListByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	snap, err := s.ds.Query(ctx, docstore.Query{
		Collection: Collection,
		Filters:    []docstore.Filter{docstore.Where("role", role)},
		OrderBy:    "display_name_ci",
	})
	if err != nil {
		return nil, err
	}
	return docstore.DecodeAll[models.User](snap)
}

func displayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
