package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/notify"
	"github.com/ytakahashi/quicklist/internal/remote"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// Identity Toolkit error messages that mean the e-mail/password pair was
// rejected.
var credentialErrors = map[string]bool{
	"EMAIL_NOT_FOUND":           true,
	"INVALID_PASSWORD":          true,
	"INVALID_LOGIN_CREDENTIALS": true,
	"INVALID_EMAIL":             true,
}

// Messages from getAccountInfo that mean the stored token is no longer usable.
var staleTokenErrors = map[string]bool{
	"INVALID_ID_TOKEN": true,
	"TOKEN_EXPIRED":    true,
	"USER_NOT_FOUND":   true,
	"USER_DISABLED":    true,
}

// IdentityService signs users in with Firebase password auth and keeps their
// sessions in a SessionStore.
type IdentityService struct {
	svc   *identitytoolkit.Service
	store SessionStore
	log   logging.Logger
	now   func() time.Time

	mu   sync.Mutex
	hubs map[string]*notify.Hub[remote.AuthEvent]
}

// NewIdentityService builds the client. Pass option.WithAPIKey with the web
// API key; further options override the endpoint or HTTP client.
func NewIdentityService(ctx context.Context, store SessionStore, log logging.Logger, opts ...option.ClientOption) (*IdentityService, error) {
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Identity Toolkit client: %w", err)
	}
	return &IdentityService{
		svc:   svc,
		store: store,
		log:   log,
		now:   time.Now,
		hubs:  map[string]*notify.Hub[remote.AuthEvent]{},
	}, nil
}

// Auth returns the auth view for one client. Clients sharing a key share a
// session and its events.
func (s *IdentityService) Auth(key string) remote.Auth {
	return &identityAuth{s: s, key: key}
}

func (s *IdentityService) hub(key string) *notify.Hub[remote.AuthEvent] {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hubs[key]
	if h == nil {
		h = notify.NewHub[remote.AuthEvent](16)
		s.hubs[key] = h
	}
	return h
}

type identityAuth struct {
	s   *IdentityService
	key string
}

// GetSession returns the stored session after confirming the backend still
// accepts its token. Expired or revoked sessions are dropped.
func (a *identityAuth) GetSession(ctx context.Context) (*remote.Session, error) {
	sess, err := a.s.store.Load(ctx, a.key)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(a.s.now()) {
		a.s.log.Info(ctx, "stored session expired", "user_id", sess.User.ID)
		return nil, a.s.store.Delete(ctx, a.key)
	}

	resp, err := a.s.svc.Relyingparty.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: sess.AccessToken,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && staleTokenErrors[gerr.Message] {
			a.s.log.Info(ctx, "stored session rejected", "reason", gerr.Message)
			return nil, a.s.store.Delete(ctx, a.key)
		}
		return nil, fmt.Errorf("failed to check session: %w", apiError(err))
	}
	if len(resp.Users) == 0 {
		return nil, a.s.store.Delete(ctx, a.key)
	}

	u := resp.Users[0]
	sess.User = remote.SessionUser{ID: u.LocalId, Email: u.Email, DisplayName: u.DisplayName, PhotoURL: u.PhotoUrl}
	return sess, nil
}

func (a *identityAuth) SubscribeAuth() (<-chan remote.AuthEvent, func()) {
	return a.s.hub(a.key).Subscribe()
}

func (a *identityAuth) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	resp, err := a.s.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && credentialErrors[gerr.Message] {
			return nil, remote.ErrInvalidCredentials
		}
		return nil, apiError(err)
	}

	sess := &remote.Session{
		AccessToken:  resp.IdToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    tokenExpiry(resp.IdToken, resp.ExpiresIn, a.s.now()),
		User: remote.SessionUser{
			ID:          resp.LocalId,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			PhotoURL:    resp.PhotoUrl,
		},
	}
	if err := a.s.store.Save(ctx, a.key, sess); err != nil {
		return nil, err
	}

	a.s.log.Info(ctx, "signed in", "user_id", sess.User.ID)
	cp := *sess
	a.s.hub(a.key).Publish(remote.AuthEvent{Type: remote.EventSignedIn, Session: &cp})
	return sess, nil
}

// SignOut forgets the local session. ID tokens cannot be revoked from the
// client, so no request is sent.
func (a *identityAuth) SignOut(ctx context.Context) error {
	if err := a.s.store.Delete(ctx, a.key); err != nil {
		return err
	}
	a.s.hub(a.key).Publish(remote.AuthEvent{Type: remote.EventSignedOut})
	return nil
}

// tokenExpiry reads exp from the ID token, falling back to the expiresIn
// seconds returned alongside it.
func tokenExpiry(idToken string, expiresIn int64, now time.Time) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return now.Add(time.Hour)
}

// apiError reduces a googleapi error to the backend's own message.
func apiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return errors.New(gerr.Message)
	}
	return err
}
