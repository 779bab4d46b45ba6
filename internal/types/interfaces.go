package types

import (
	"context"
	"log/slog"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Logger defines the structured logging interface used throughout the engine.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps a *slog.Logger in the Logger interface.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) With(args ...any) Logger       { return &slogLogger{l: s.l.With(args...)} }

// ItemStore is the per-user grocery document collection collaborator.
// GetItems must return a fresh snapshot, bypassing any cache, because the
// scanner's lastUsed-based rules are sensitive to staleness.
type ItemStore interface {
	GetItems(ctx context.Context, userID string) ([]GroceryItem, error)
	GetItem(ctx context.Context, userID, itemID string) (*GroceryItem, error)
	UpdateItem(ctx context.Context, userID, itemID string, fields map[string]any) error
	QueryByField(ctx context.Context, userID, field string, value any) ([]GroceryItem, error)
}

// Identity resolves the current user. An empty id with a nil error means the
// identity provider is not ready yet (cold start); callers schedule a short
// retry rather than failing.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// StaticIdentity is an Identity fixed at configuration time.
type StaticIdentity struct {
	UserID string
}

// CurrentUserID returns the configured user id.
func (s StaticIdentity) CurrentUserID(context.Context) (string, error) {
	return s.UserID, nil
}

// Presence reports whether the user's device is currently interactive
// (the screen-on signal consumed by the auto-path gate).
type Presence interface {
	Interactive() bool
}
