package login

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// blockingAuth holds SignInWithPassword until release is closed.
type blockingAuth struct {
	remote.Auth
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func (b *blockingAuth) SignInWithPassword(ctx context.Context, email, password string) (*remote.Session, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	close(b.started)
	<-b.release
	return &remote.Session{}, b.err
}

func TestForm_RejectsSubmissionWhileInFlight(t *testing.T) {
	auth := &blockingAuth{started: make(chan struct{}), release: make(chan struct{})}
	f := NewForm(auth)

	errCh := make(chan error, 1)
	go func() { errCh <- f.Submit(context.Background(), "ramu@example.com", "pw") }()
	<-auth.started
	require.True(t, f.Busy())

	err := f.Submit(context.Background(), "ramu@example.com", "pw")
	require.ErrorIs(t, err, ErrInFlight)

	close(auth.release)
	require.NoError(t, <-errCh)
	assert.False(t, f.Busy())
	assert.Equal(t, 1, auth.calls)
}

func TestForm_FailureReenablesForm(t *testing.T) {
	mem := remote.NewMemory()
	mem.AddUser("ramu@example.com", "pw", "")
	f := NewForm(mem.Auth("c1"))

	err := f.Submit(context.Background(), "ramu@example.com", "bad")
	require.ErrorIs(t, err, remote.ErrInvalidCredentials)
	assert.False(t, f.Busy())
	assert.Equal(t, "ログイン失敗: invalid login credentials", Message(err))

	require.NoError(t, f.Submit(context.Background(), "ramu@example.com", "pw"))
}

func TestForm_RequiresCredentials(t *testing.T) {
	f := NewForm(remote.NewMemory().Auth("c1"))
	require.ErrorIs(t, f.Submit(context.Background(), "  ", "pw"), ErrMissingCredentials)
	require.ErrorIs(t, f.Submit(context.Background(), "a@b.c", ""), ErrMissingCredentials)
}

func TestForm_PassesBackendErrorThrough(t *testing.T) {
	boom := errors.New("INVALID_PASSWORD")
	auth := &blockingAuth{started: make(chan struct{}), release: make(chan struct{}), err: boom}
	close(auth.release)
	f := NewForm(auth)
	require.ErrorIs(t, f.Submit(context.Background(), "a@b.c", "pw"), boom)
}
