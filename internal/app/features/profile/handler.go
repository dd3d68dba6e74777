// internal/app/features/profile/handler.go
package profile

import (
	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"go.uber.org/zap"
)

// Handler owns all user profile handlers.
type Handler struct {
	Users  *userstore.Store
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs a Handler bound to the user store and logger.
func NewHandler(users *userstore.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:  users,
		Log:    logger,
		ErrLog: errLog,
	}
}
