package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/remote"
)

func newSessionStore(t *testing.T) *SQLiteSessionStore {
	t.Helper()
	s, err := OpenSessionStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSession() *remote.Session {
	return &remote.Session{
		AccessToken:  "id-token",
		RefreshToken: "refresh",
		ExpiresAt:    time.Unix(1_700_000_000, 0),
		User: remote.SessionUser{
			ID:          "uid-1",
			Email:       "ramu@example.com",
			DisplayName: "Ramu",
			PhotoURL:    "https://example.com/ramu.png",
		},
	}
}

func TestSessionStore_LoadMissing(t *testing.T) {
	s := newSessionStore(t)
	got, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "cli", sampleSession()))
	got, err := s.Load(ctx, "cli")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sampleSession().User, got.User)
	assert.True(t, got.ExpiresAt.Equal(sampleSession().ExpiresAt))

	other, err := s.Load(ctx, "browser")
	require.NoError(t, err)
	assert.Nil(t, other, "sessions are per key")

	require.NoError(t, s.Delete(ctx, "cli"))
	got, err = s.Load(ctx, "cli")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_SaveOverwrites(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "cli", sampleSession()))
	next := sampleSession()
	next.AccessToken = "rotated"
	require.NoError(t, s.Save(ctx, "cli", next))

	got, err := s.Load(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.AccessToken)
}

func TestSessionStore_FileSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ctx := context.Background()

	s, err := OpenSessionStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, "cli", sampleSession()))
	require.NoError(t, s.Close())

	s, err = OpenSessionStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(ctx, "cli")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "uid-1", got.User.ID)
}
