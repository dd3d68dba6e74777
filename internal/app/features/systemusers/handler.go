// internal/app/features/systemusers/handler.go
package systemusers

import (
	"net/http"

	uierrors "github.com/dalemusser/tutorhub/internal/app/features/errors"
	userstore "github.com/dalemusser/tutorhub/internal/app/store/users"
	"github.com/dalemusser/tutorhub/internal/app/system/auditlog"
	"github.com/dalemusser/tutorhub/internal/app/system/fanout"
	"github.com/dalemusser/tutorhub/internal/app/system/navigation"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	Fanout   *fanout.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler constructs the admin user-management handler.
func NewHandler(users *userstore.Store, fo *fanout.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    users,
		Fanout:   fo,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

// done answers a form post that names a return URL with a redirect and
// any other caller with body.
func done(w http.ResponseWriter, r *http.Request, body any) {
	if r.FormValue("return") != "" {
		navigation.Redirect(w, r, navigation.SafeBackURL(r, navigation.AdminUsersBackURL))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, body)
}
