// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// the framework-level settings (HTTP/HTTPS ports, TLS, logging, CORS,
// body limits). Everything specific to TutorHub lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: tutorhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Zero keeps browser-session cookies

	// Admin bootstrap
	AdminEmails          string // Comma-separated allowlist of hardcoded admins
	AdminBootstrapSecret string // Shared first-sign-in secret; blank disables the bootstrap

	// Site and email links
	SiteName           string
	BaseURL            string // e.g., "https://tutorhub.example" or "http://localhost:3000"
	VerificationExpiry time.Duration

	// Inbox
	NotificationLimit int64 // Most notifications an inbox delivery carries

	// Google OAuth (disabled when the client id is blank)
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging: "all", "db", "log", or "off"
	AuditLogAuth  string
	AuditLogAdmin string

	// Document-store deadlines; zero keeps the package defaults
	TimeoutPing   time.Duration
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration

	// Sign-in rate limits
	LoginIPBurst     int
	LoginIPWindow    time.Duration
	LoginEmailBurst  int
	LoginEmailWindow time.Duration

	// Background cleanup of expired verification tokens and OAuth states
	CleanupInterval time.Duration
}
