// Package app wires one user's view of the shopping list: who is signed in,
// the synchronized list while someone is, and the small interaction state
// machines around it. Presenters hold a *Client and read View snapshots.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ytakahashi/quicklist/internal/clock"
	"github.com/ytakahashi/quicklist/internal/config"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/listsync"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/login"
	"github.com/ytakahashi/quicklist/internal/memo"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
	"github.com/ytakahashi/quicklist/internal/remote"
	"github.com/ytakahashi/quicklist/internal/session"
)

var ErrClosed = errors.New("client already unmounted")

// Option configures a Client.
type Option func(*Client)

func WithAfterFunc(f clock.AfterFunc) Option { return func(c *Client) { c.after = f } }

func WithNow(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func WithPresets(presets []string) Option {
	return func(c *Client) { c.presets = append([]string(nil), presets...) }
}

func WithDirectory(dir session.Directory) Option { return func(c *Client) { c.dir = dir } }

// Client is the presenter-independent shopping list app for one user
// session: it follows sign-in, mounts the dashboard and runs every action.
type Client struct {
	auth  remote.Auth
	store remote.ItemStore
	log   logging.Logger

	after   clock.AfterFunc
	now     func() time.Time
	presets []string
	dir     session.Directory

	session *session.Manager
	login   *login.Form
	undo    *undoNotices
	memo    *memo.Editor

	reconcileMu sync.Mutex
	mu          sync.RWMutex
	dash        *dashboard
	mounted     bool
	closed      bool
	stop        func()
	done        chan struct{}

	changes *notify.Signal
}

// dashboard is the part of the client that exists only while a user is
// signed in.
type dashboard struct {
	user    models.User
	sync    *listsync.Synchronizer
	gateway *gateway.Gateway
	relay   func()
}

func NewClient(auth remote.Auth, store remote.ItemStore, log logging.Logger, opts ...Option) *Client {
	c := &Client{
		auth:    auth,
		store:   store,
		log:     log,
		after:   clock.Real,
		now:     time.Now,
		presets: append([]string(nil), config.DefaultPresets...),
		dir:     session.NewDirectory(config.DefaultMembers, config.DefaultFallbackName),
		changes: notify.NewSignal(),
	}
	for _, o := range opts {
		o(c)
	}
	c.session = session.NewManager(auth, c.dir, log)
	c.login = login.NewForm(auth)
	c.undo = newUndo(store, c.after)
	c.memo = memo.NewEditor(memoSaver{c})
	return c
}

// Mount runs the session check and starts following auth changes. When it
// returns, the dashboard is mounted if a session already existed.
func (c *Client) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.mounted {
		c.mu.Unlock()
		return nil
	}
	c.mounted = true
	c.mu.Unlock()

	sessionCh, cancelSession := c.session.Changes()
	relays := []func(){
		c.forward(c.undo.Changes()),
		c.forward(c.memo.Changes()),
	}

	c.session.Start(ctx)
	c.reconcile(ctx)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.mu.Lock()
	c.done = done
	c.stop = func() {
		cancel()
		cancelSession()
		for _, r := range relays {
			r()
		}
	}
	c.mu.Unlock()

	go func() {
		defer close(done)
		for range sessionCh {
			c.reconcile(loopCtx)
			notify.Notify(c.changes)
		}
	}()
	notify.Notify(c.changes)
	return nil
}

// reconcile mounts or unmounts the dashboard to match the session.
func (c *Client) reconcile(ctx context.Context) {
	c.reconcileMu.Lock()
	defer c.reconcileMu.Unlock()

	user := c.session.User()

	c.mu.RLock()
	cur, closed := c.dash, c.closed
	c.mu.RUnlock()
	if closed {
		return
	}
	if cur != nil && user != nil && cur.user.ID == user.ID {
		if cur.user != *user {
			c.mu.Lock()
			c.dash.user = *user
			c.mu.Unlock()
		}
		return
	}
	if cur != nil {
		c.unmountDashboard()
	}
	if user == nil {
		return
	}

	s := listsync.New(c.store, c.log.With("user_id", user.ID), listsync.WithAfterFunc(c.after))
	d := &dashboard{
		user:    *user,
		sync:    s,
		gateway: gateway.New(c.store, s, c.undo, gateway.WithNow(c.now)),
		relay:   c.forward(s.Changes()),
	}
	if err := s.Mount(ctx); err != nil {
		c.log.Error(ctx, "failed to mount list", "error", err)
		d.relay()
		s.Unmount()
		return
	}
	c.mu.Lock()
	c.dash = d
	c.mu.Unlock()
	c.log.Info(ctx, "list mounted", "user", user.Name)
}

func (c *Client) unmountDashboard() {
	c.mu.Lock()
	d := c.dash
	c.dash = nil
	c.mu.Unlock()
	if d == nil {
		return
	}
	d.sync.Unmount()
	d.relay()
	c.undo.Stop()
	c.memo.Cancel()
}

func (c *Client) forward(ch <-chan struct{}, cancel func()) func() {
	go func() {
		for range ch {
			notify.Notify(c.changes)
		}
	}()
	return cancel
}

// Unmount tears everything down. In-flight mutations are not cancelled; their
// results are ignored.
func (c *Client) Unmount() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	stop, done := c.stop, c.done
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}

	c.reconcileMu.Lock()
	c.unmountDashboard()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.reconcileMu.Unlock()

	c.session.Close()
}

// Changes notifies whenever anything in View may have changed.
func (c *Client) Changes() (<-chan struct{}, func()) {
	return c.changes.Subscribe()
}

// current returns a copy of the mounted dashboard.
func (c *Client) current() (dashboard, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.dash == nil {
		return dashboard{}, remote.ErrNoSession
	}
	return *c.dash, nil
}
