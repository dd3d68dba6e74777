// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/tutorhub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (sign-in, sign-up, logout, verification).
	// Values: "all" (store + zap), "db" (store only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin action events (role approval, user edits).
	// Values: "all" (store + zap), "db" (store only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to the document store (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	// Check X-Forwarded-For header first (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) auth(ctx context.Context, r *http.Request, eventType, userID string, success bool, reason string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            getClientIP(r),
		UserAgent:     userAgent(r),
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, method, email string) {
	l.auth(ctx, r, audit.EventLoginSuccess, userID, true, "", map[string]string{
		"auth_method": method,
		"email":       email,
	})
}

// FederatedLoginSuccess logs a successful sign-in through an external provider.
func (l *Logger) FederatedLoginSuccess(ctx context.Context, r *http.Request, userID, provider, email string) {
	l.auth(ctx, r, audit.EventFederatedLoginSuccess, userID, true, "", map[string]string{
		"provider": provider,
		"email":    email,
	})
}

// LoginFailed logs a rejected sign-in attempt.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.auth(ctx, r, audit.EventLoginFailed, "", false, reason, map[string]string{
		"attempted_email": email,
	})
}

// AdminBootstrapped logs the creation of an allowlisted admin account.
func (l *Logger) AdminBootstrapped(ctx context.Context, r *http.Request, userID, email string) {
	l.auth(ctx, r, audit.EventAdminBootstrapped, userID, true, "", map[string]string{
		"email": email,
	})
}

// AdminBootstrapRejected logs an allowlisted sign-in with the wrong shared secret.
func (l *Logger) AdminBootstrapRejected(ctx context.Context, r *http.Request, email string) {
	l.auth(ctx, r, audit.EventAdminBootstrapRejected, "", false, "invalid admin credentials", map[string]string{
		"attempted_email": email,
	})
}

// SignUp logs a new account and the role it asked for.
func (l *Logger) SignUp(ctx context.Context, r *http.Request, userID, email, requestedRole string) {
	l.auth(ctx, r, audit.EventSignUp, userID, true, "", map[string]string{
		"email":          email,
		"requested_role": requestedRole,
	})
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.auth(ctx, r, audit.EventLogout, userID, true, "", nil)
}

// VerificationSent logs an outgoing email verification link.
func (l *Logger) VerificationSent(ctx context.Context, r *http.Request, userID, email string) {
	l.auth(ctx, r, audit.EventVerificationSent, userID, true, "", map[string]string{
		"email": email,
	})
}

// VerificationConfirmed logs a consumed verification token.
func (l *Logger) VerificationConfirmed(ctx context.Context, r *http.Request, userID string) {
	l.auth(ctx, r, audit.EventVerificationConfirmed, userID, true, "", nil)
}

// VerificationFailed logs a rejected verification token.
func (l *Logger) VerificationFailed(ctx context.Context, r *http.Request, reason string) {
	l.auth(ctx, r, audit.EventVerificationFailed, "", false, reason, nil)
}

// --- Admin Events ---

// RoleApproved logs an admin granting a pending user's requested role.
func (l *Logger) RoleApproved(ctx context.Context, r *http.Request, actorID, targetUserID, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventRoleApproved,
		UserID:    targetUserID,
		ActorID:   actorID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details: map[string]string{
			"role": role,
		},
	})
}

// UserUpdated logs an admin edit of a user record.
func (l *Logger) UserUpdated(ctx context.Context, r *http.Request, actorID, targetUserID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventUserUpdated,
		UserID:    targetUserID,
		ActorID:   actorID,
		IP:        getClientIP(r),
		UserAgent: userAgent(r),
		Success:   true,
		Details: map[string]string{
			"fields_changed": fieldsChanged,
		},
	})
}
