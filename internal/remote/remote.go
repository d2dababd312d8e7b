// Package remote defines the boundary to the hosted backend that owns
// authentication, the shopping item table and its change notifications.
// Adapters live in internal/services; Memory is an in-process stand-in.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/ytakahashi/quicklist/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("no session")

	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid login credentials")
)

// Session is an authenticated session as handed out by the backend.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         SessionUser `json:"user"`
}

// SessionUser is the account attached to a session.
type SessionUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Expired reports whether the session is past its expiry. A zero expiry
// never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEventType names an auth state transition.
type AuthEventType string

const (
	EventSignedIn  AuthEventType = "SIGNED_IN"
	EventSignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent is emitted on every auth state change. Session is nil when the
// user signed out.
type AuthEvent struct {
	Type    AuthEventType
	Session *Session
}

// Auth is the hosted authentication service as seen by one client.
type Auth interface {
	// GetSession returns the current session, or nil if there is none.
	GetSession(ctx context.Context) (*Session, error)
	// SubscribeAuth streams auth state changes until cancel is called.
	SubscribeAuth() (events <-chan AuthEvent, cancel func())
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignOut ends the session. The change is reported through SubscribeAuth.
	SignOut(ctx context.Context) error
}

// Change is a notification that some row of the item table changed. Event
// is informational only ("INSERT", "UPDATE", "DELETE" or "*").
type Change struct {
	Event string
}

// ItemStore is the hosted item table.
type ItemStore interface {
	// ListItems returns every item ordered by created_at, newest first.
	ListItems(ctx context.Context) ([]models.ShoppingItem, error)
	InsertItem(ctx context.Context, item models.NewItem) error
	UpdateItem(ctx context.Context, id string, u ItemUpdate) error
	DeleteItem(ctx context.Context, id string) error
	// WatchItems delivers a Change for every modification of the table
	// until ctx is done, then closes the channel.
	WatchItems(ctx context.Context) (<-chan Change, error)
}
