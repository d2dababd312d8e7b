package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/remote"
	"google.golang.org/api/option"
)

var identityNow = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

// fakeToolkit answers verifyPassword and getAccountInfo for one account.
type fakeToolkit struct {
	t        *testing.T
	token    string
	password string

	mu       sync.Mutex
	revoked  bool
	accounts int
}

func (f *fakeToolkit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/verifyPassword"):
		if body["email"] != "ramu@example.com" || body["password"] != f.password {
			writeAPIError(w, http.StatusBadRequest, "INVALID_LOGIN_CREDENTIALS")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind":         "identitytoolkit#VerifyPasswordResponse",
			"localId":      "uid-1",
			"email":        "ramu@example.com",
			"displayName":  "Ramu",
			"idToken":      f.token,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"registered":   true,
		})
	case strings.HasSuffix(r.URL.Path, "/getAccountInfo"):
		f.mu.Lock()
		f.accounts++
		revoked := f.revoked
		f.mu.Unlock()
		if revoked || body["idToken"] != f.token {
			writeAPIError(w, http.StatusBadRequest, "INVALID_ID_TOKEN")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "identitytoolkit#GetAccountInfoResponse",
			"users": []map[string]any{{
				"localId":     "uid-1",
				"email":       "ramu@example.com",
				"displayName": "Ramu R",
				"photoUrl":    "https://example.com/r.png",
			}},
		})
	default:
		http.NotFound(w, r)
	}
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg},
	})
}

func newIdentity(t *testing.T, tk *fakeToolkit) (*IdentityService, *SQLiteSessionStore) {
	t.Helper()
	ts := httptest.NewServer(tk)
	t.Cleanup(ts.Close)

	store := newSessionStore(t)
	svc, err := NewIdentityService(context.Background(), store, logging.Discard(),
		option.WithEndpoint(ts.URL+"/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	svc.now = func() time.Time { return identityNow }
	return svc, store
}

func TestIdentity_SignInPersistsAndPublishes(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Hour))}
	svc, store := newIdentity(t, tk)
	auth := svc.Auth("cli")

	events, cancel := auth.SubscribeAuth()
	defer cancel()

	sess, err := auth.SignInWithPassword(context.Background(), "ramu@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", sess.User.ID)
	assert.True(t, sess.ExpiresAt.Equal(identityNow.Add(time.Hour)))

	ev := <-events
	assert.Equal(t, remote.EventSignedIn, ev.Type)
	require.NotNil(t, ev.Session)

	stored, err := store.Load(context.Background(), "cli")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, tk.token, stored.AccessToken)
}

func TestIdentity_WrongPassword(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Hour))}
	svc, store := newIdentity(t, tk)

	_, err := svc.Auth("cli").SignInWithPassword(context.Background(), "ramu@example.com", "nope")
	require.ErrorIs(t, err, remote.ErrInvalidCredentials)

	stored, err := store.Load(context.Background(), "cli")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestIdentity_GetSessionRefreshesProfile(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Hour))}
	svc, _ := newIdentity(t, tk)
	auth := svc.Auth("cli")

	none, err := auth.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = auth.SignInWithPassword(context.Background(), "ramu@example.com", "secret")
	require.NoError(t, err)

	sess, err := auth.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "Ramu R", sess.User.DisplayName)
	assert.Equal(t, "https://example.com/r.png", sess.User.PhotoURL)

	other, err := svc.Auth("browser").GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestIdentity_ExpiredSessionIsDropped(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Minute))}
	svc, store := newIdentity(t, tk)
	auth := svc.Auth("cli")

	_, err := auth.SignInWithPassword(context.Background(), "ramu@example.com", "secret")
	require.NoError(t, err)

	svc.now = func() time.Time { return identityNow.Add(2 * time.Minute) }
	sess, err := auth.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Zero(t, tk.accounts, "expired tokens are not sent")

	stored, _ := store.Load(context.Background(), "cli")
	assert.Nil(t, stored)
}

func TestIdentity_RevokedSessionIsDropped(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Hour))}
	svc, store := newIdentity(t, tk)
	auth := svc.Auth("cli")

	_, err := auth.SignInWithPassword(context.Background(), "ramu@example.com", "secret")
	require.NoError(t, err)

	tk.mu.Lock()
	tk.revoked = true
	tk.mu.Unlock()

	sess, err := auth.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
	stored, _ := store.Load(context.Background(), "cli")
	assert.Nil(t, stored)
}

func TestIdentity_SignOut(t *testing.T) {
	tk := &fakeToolkit{t: t, password: "secret", token: signedToken(t, "uid-1", identityNow.Add(time.Hour))}
	svc, store := newIdentity(t, tk)
	auth := svc.Auth("cli")

	_, err := auth.SignInWithPassword(context.Background(), "ramu@example.com", "secret")
	require.NoError(t, err)

	events, cancel := auth.SubscribeAuth()
	defer cancel()
	require.NoError(t, auth.SignOut(context.Background()))

	ev := <-events
	assert.Equal(t, remote.EventSignedOut, ev.Type)
	stored, _ := store.Load(context.Background(), "cli")
	assert.Nil(t, stored)
}

func TestTokenExpiry_FallsBackToExpiresIn(t *testing.T) {
	assert.Equal(t, identityNow.Add(30*time.Minute), tokenExpiry("not-a-jwt", 1800, identityNow))
	assert.Equal(t, identityNow.Add(time.Hour), tokenExpiry("not-a-jwt", 0, identityNow))
}
