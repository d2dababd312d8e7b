// Package login submits password sign-in requests. It holds no auth state;
// a successful sign-in is observed through the session manager.
package login

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ytakahashi/quicklist/internal/remote"
)

var (
	// ErrInFlight is returned while a previous submission is still running.
	ErrInFlight = errors.New("login already in progress")

	// ErrMissingCredentials is returned when email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Form holds the login form state and submits credentials.
type Form struct {
	auth remote.Auth

	mu   sync.Mutex
	busy bool
}

func NewForm(auth remote.Auth) *Form {
	return &Form{auth: auth}
}

// Submit sends one sign-in request. Concurrent calls while a request is in
// flight return ErrInFlight without contacting the backend.
func (f *Form) Submit(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return ErrMissingCredentials
	}

	f.mu.Lock()
	if f.busy {
		f.mu.Unlock()
		return ErrInFlight
	}
	f.busy = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.busy = false
		f.mu.Unlock()
	}()

	_, err := f.auth.SignInWithPassword(ctx, email, password)
	return err
}

// Busy reports whether a submission is in flight; presenters disable the
// submit action while it is true.
func (f *Form) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Message renders err the way the login screen reports failures.
func Message(err error) string {
	return "ログイン失敗: " + err.Error()
}
