// Package mailer builds and delivers transactional email.
package mailer

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Email is one outgoing message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// LogMailer writes messages to the log instead of delivering them. It is
// the default in development and keeps the last messages for tests.
type LogMailer struct {
	log *zap.Logger

	mu   sync.Mutex
	sent []Email
}

// NewLogMailer returns a LogMailer. A nil logger is replaced by a no-op logger.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{log: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(ctx context.Context, msg Email) error {
	m.log.Info("email (not delivered)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.TextBody))

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent returns a copy of every message passed to Send.
func (m *LogMailer) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Email, len(m.sent))
	copy(out, m.sent)
	return out
}
