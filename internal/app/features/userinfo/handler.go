// internal/app/features/userinfo/handler.go
package userinfo

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/tutorhub/internal/app/system/auth"
)

// Handler serves the current session as JSON.
type Handler struct{}

// NewHandler creates a new userinfo handler.
func NewHandler() *Handler {
	return &Handler{}
}

type userInfo struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Loading         bool   `json:"loading"`
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	RequestedRole   string `json:"requested_role,omitempty"`
	EmailVerified   bool   `json:"email_verified"`
}

// ServeUserInfo returns the caller's authentication status and identity.
//
// Response format:
//
//	{ "isAuthenticated": bool, "loading": bool, "id": "...", "display_name": "...",
//	  "email": "...", "role": "...", "email_verified": bool }
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	s := auth.CurrentSession(r)
	info := userInfo{Loading: s.Loading}
	if s.Authenticated() {
		info.IsAuthenticated = true
		info.ID = s.UserID()
		info.DisplayName = s.Record.DisplayName
		info.Email = s.Identity.Email
		info.Role = string(s.Role())
		info.EmailVerified = s.EmailVerified()
		if s.Record.RequestedRole != nil {
			info.RequestedRole = string(*s.Record.RequestedRole)
		}
	}
	_ = json.NewEncoder(w).Encode(info)
}
