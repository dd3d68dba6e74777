// internal/domain/models/user.go
package models

import (
	"time"
)

// User is the application profile of an identity. ID is always the
// owning identity's id; there is exactly one User per identity.
type User struct {
	ID               string      `bson:"_id" json:"id"`
	Email            string      `bson:"email" json:"email"`
	DisplayName      string      `bson:"display_name" json:"display_name"`
	DisplayNameCI    string      `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	Role             Role        `bson:"role" json:"role"`
	RequestedRole    *Role       `bson:"requested_role,omitempty" json:"requested_role,omitempty"`
	IsHardcodedAdmin bool        `bson:"is_hardcoded_admin,omitempty" json:"is_hardcoded_admin,omitempty"`
	IsActive         bool        `bson:"is_active" json:"is_active"`
	Points           int         `bson:"points" json:"points"`
	Level            int         `bson:"level" json:"level"`
	Preferences      Preferences `bson:"preferences" json:"preferences"`

	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	LastLoginAt time.Time `bson:"last_login_at" json:"last_login_at"`
}

// Preferences holds per-user notification and display settings.
type Preferences struct {
	EmailNotifications bool   `bson:"email_notifications" json:"email_notifications"`
	PushNotifications  bool   `bson:"push_notifications" json:"push_notifications"`
	Language           string `bson:"language,omitempty" json:"language,omitempty"`
}

// DefaultPreferences are applied to every newly created record.
func DefaultPreferences() Preferences {
	return Preferences{
		EmailNotifications: true,
		PushNotifications:  true,
		Language:           "en",
	}
}

// EffectiveRole is the role used for authorization. A hardcoded admin is
// an admin on every resolution, whatever the persisted role says.
func (u *User) EffectiveRole() Role {
	if u == nil {
		return ""
	}
	if u.IsHardcodedAdmin {
		return RoleAdmin
	}
	return ParseRole(string(u.Role))
}
