package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
)

// Memory is an in-process backend holding accounts, sessions and items.
// It backs the "memory" backend and the package tests of its consumers.
type Memory struct {
	mu       sync.Mutex
	items    map[string]memoryItem
	seq      int
	users    map[string]memoryUser
	sessions map[string]*Session
	authHubs map[string]*notify.Hub[AuthEvent]
	changes  *notify.Hub[Change]
	failures map[string]error
	requests []string

	now func() time.Time
}

type memoryItem struct {
	item models.ShoppingItem
	seq  int
}

type memoryUser struct {
	id          string
	password    string
	displayName string
}

// NewMemory returns an empty backend.
func NewMemory() *Memory {
	return &Memory{
		items:    map[string]memoryItem{},
		users:    map[string]memoryUser{},
		sessions: map[string]*Session{},
		authHubs: map[string]*notify.Hub[AuthEvent]{},
		changes:  notify.NewHub[Change](16),
		failures: map[string]error{},
		now:      time.Now,
	}
}

// SetClock replaces the time source used for created_at stamps.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// AddUser registers an account and returns its id.
func (m *Memory) AddUser(email, password, displayName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.users[strings.ToLower(email)] = memoryUser{id: id, password: password, displayName: displayName}
	return id
}

// Seed stores item as is, bypassing change notifications and the request log.
func (m *Memory) Seed(item models.ShoppingItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = m.now()
	}
	m.seq++
	m.items[item.ID] = memoryItem{item: item, seq: m.seq}
}

// FailNext makes the next call of op ("list", "insert", "update", "delete",
// "watch", "session", "signin", "signout") return err.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	m.failures[op] = err
	m.mu.Unlock()
}

// Requests returns the mutation requests received so far, e.g.
// "update 1a2b is_completed=true completed_at=set".
func (m *Memory) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// Item returns the stored row with id.
func (m *Memory) Item(id string) (models.ShoppingItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mi, ok := m.items[id]
	return mi.item, ok
}

// Watchers reports the number of open WatchItems subscriptions.
func (m *Memory) Watchers() int {
	return m.changes.Len()
}

// Notify emits a change notification without touching any row.
func (m *Memory) Notify(event string) {
	m.changes.Publish(Change{Event: event})
}

func (m *Memory) takeFailure(op string) error {
	err := m.failures[op]
	delete(m.failures, op)
	return err
}

func (m *Memory) ListItems(ctx context.Context) ([]models.ShoppingItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure("list"); err != nil {
		return nil, err
	}
	all := make([]memoryItem, 0, len(m.items))
	for _, mi := range m.items {
		all = append(all, mi)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].item.CreatedAt.Equal(all[j].item.CreatedAt) {
			return all[i].item.CreatedAt.After(all[j].item.CreatedAt)
		}
		return all[i].seq > all[j].seq
	})
	out := make([]models.ShoppingItem, len(all))
	for i, mi := range all {
		out[i] = mi.item
	}
	return out, nil
}

func (m *Memory) InsertItem(ctx context.Context, n models.NewItem) error {
	m.mu.Lock()
	if err := m.takeFailure("insert"); err != nil {
		m.mu.Unlock()
		return err
	}
	m.seq++
	item := models.ShoppingItem{
		ID:            uuid.New().String(),
		Text:          n.Text,
		Memo:          n.Memo,
		CreatedByName: n.CreatedByName,
		UserID:        n.UserID,
		CreatedAt:     m.now(),
	}
	m.items[item.ID] = memoryItem{item: item, seq: m.seq}
	m.requests = append(m.requests, "insert "+n.Text)
	m.mu.Unlock()

	m.changes.Publish(Change{Event: "INSERT"})
	return nil
}

func (m *Memory) UpdateItem(ctx context.Context, id string, u ItemUpdate) error {
	m.mu.Lock()
	m.requests = append(m.requests, "update "+id+describeUpdate(u))
	if err := m.takeFailure("update"); err != nil {
		m.mu.Unlock()
		return err
	}
	mi, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	u.Apply(&mi.item)
	m.items[id] = mi
	m.mu.Unlock()

	m.changes.Publish(Change{Event: "UPDATE"})
	return nil
}

func (m *Memory) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	m.requests = append(m.requests, "delete "+id)
	if err := m.takeFailure("delete"); err != nil {
		m.mu.Unlock()
		return err
	}
	delete(m.items, id)
	m.mu.Unlock()

	m.changes.Publish(Change{Event: "DELETE"})
	return nil
}

func (m *Memory) WatchItems(ctx context.Context) (<-chan Change, error) {
	m.mu.Lock()
	err := m.takeFailure("watch")
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	in, cancel := m.changes.Subscribe()
	out := make(chan Change)
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func describeUpdate(u ItemUpdate) string {
	var b strings.Builder
	if u.IsCompleted != nil {
		fmt.Fprintf(&b, " is_completed=%t", *u.IsCompleted)
	}
	if u.SetCompletedAt {
		if u.CompletedAt == nil {
			b.WriteString(" completed_at=null")
		} else {
			b.WriteString(" completed_at=set")
		}
	}
	if u.Memo != nil {
		fmt.Fprintf(&b, " memo=%q", *u.Memo)
	}
	return b.String()
}

// Auth returns the auth view of the client identified by key. Clients with
// different keys hold independent sessions.
func (m *Memory) Auth(key string) Auth {
	return &memoryAuth{m: m, key: key}
}

func (m *Memory) authHub(key string) *notify.Hub[AuthEvent] {
	h := m.authHubs[key]
	if h == nil {
		h = notify.NewHub[AuthEvent](16)
		m.authHubs[key] = h
	}
	return h
}

type memoryAuth struct {
	m   *Memory
	key string
}

func (a *memoryAuth) GetSession(ctx context.Context) (*Session, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	if err := a.m.takeFailure("session"); err != nil {
		return nil, err
	}
	s := a.m.sessions[a.key]
	if s == nil {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (a *memoryAuth) SubscribeAuth() (<-chan AuthEvent, func()) {
	a.m.mu.Lock()
	h := a.m.authHub(a.key)
	a.m.mu.Unlock()
	return h.Subscribe()
}

func (a *memoryAuth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	a.m.mu.Lock()
	if err := a.m.takeFailure("signin"); err != nil {
		a.m.mu.Unlock()
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	u, ok := a.m.users[email]
	if !ok || u.password != password {
		a.m.mu.Unlock()
		return nil, ErrInvalidCredentials
	}
	s := &Session{
		AccessToken: uuid.New().String(),
		ExpiresAt:   a.m.now().Add(time.Hour),
		User:        SessionUser{ID: u.id, Email: email, DisplayName: u.displayName},
	}
	a.m.sessions[a.key] = s
	h := a.m.authHub(a.key)
	a.m.mu.Unlock()

	cp := *s
	h.Publish(AuthEvent{Type: EventSignedIn, Session: &cp})
	return s, nil
}

func (a *memoryAuth) SignOut(ctx context.Context) error {
	a.m.mu.Lock()
	if err := a.m.takeFailure("signout"); err != nil {
		a.m.mu.Unlock()
		return err
	}
	delete(a.m.sessions, a.key)
	h := a.m.authHub(a.key)
	a.m.mu.Unlock()

	h.Publish(AuthEvent{Type: EventSignedOut})
	return nil
}
