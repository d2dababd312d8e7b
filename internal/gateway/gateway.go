// Package gateway turns user intents into single requests against the item
// store. Nothing is applied locally; the list refreshes when the store's
// change notification comes back.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// ErrItemNotFound is returned when an id is not in the current snapshot.
var ErrItemNotFound = errors.New("item not found in list")

// AlreadyListedError rejects a preset whose text is already on the list.
type AlreadyListedError struct {
	Text string
}

func (e *AlreadyListedError) Error() string {
	return fmt.Sprintf("「%s」は既にリストにあります", e.Text)
}

// Snapshot is the read side of the list synchronizer.
type Snapshot interface {
	Find(id string) (models.ShoppingItem, bool)
	MatchText(text string) []models.ShoppingItem
}

// Arming receives items that were just marked as bought.
type Arming interface {
	Arm(item models.ShoppingItem)
}

// Confirmer decides whether item may be deleted.
type Confirmer func(item models.ShoppingItem) bool

// Confirmed approves every deletion. Presenters that asked the user
// beforehand pass it.
func Confirmed(models.ShoppingItem) bool { return true }

// DeletePrompt is the question shown before a deletion.
const DeletePrompt = "このアイテムを削除しますか？"

// Gateway validates and issues item mutations against the backend.
type Gateway struct {
	store remote.ItemStore
	snap  Snapshot
	undo  Arming
	now   func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNow replaces the time source for completed_at stamps.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func New(store remote.ItemStore, snap Snapshot, undo Arming, opts ...Option) *Gateway {
	g := &Gateway{store: store, snap: snap, undo: undo, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Create inserts a new active item. Text and memo are trimmed; blank text
// sends nothing and returns nil.
func (g *Gateway) Create(ctx context.Context, user *models.User, text, memo string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n := models.NewItem{Text: text, Memo: strings.TrimSpace(memo)}
	if user != nil {
		n.CreatedByName = user.Name
		n.UserID = user.ID
	}
	if err := g.store.InsertItem(ctx, n); err != nil {
		return &MutationError{Op: OpCreate, Err: err}
	}
	return nil
}

// CreateFromPreset adds text unless it is already listed. A bought match is
// moved back to the active list instead of inserting a duplicate.
//
// The check reads the local snapshot, so two clients pressing the same
// preset before either sees the other's insert both create a row.
func (g *Gateway) CreateFromPreset(ctx context.Context, user *models.User, text string) error {
	var bought *models.ShoppingItem
	for _, it := range g.snap.MatchText(text) {
		if !it.IsCompleted {
			return &AlreadyListedError{Text: text}
		}
		if bought == nil {
			it := it
			bought = &it
		}
	}
	if bought != nil {
		return g.ToggleCompletion(ctx, bought.ID)
	}
	return g.Create(ctx, user, text, "")
}

// ToggleCompletion flips the item's bought state. Marking an item bought
// stamps completed_at and arms undo before the request goes out; moving it
// back clears completed_at.
func (g *Gateway) ToggleCompletion(ctx context.Context, id string) error {
	item, ok := g.snap.Find(id)
	if !ok {
		return ErrItemNotFound
	}
	done := !item.IsCompleted
	if done && g.undo != nil {
		g.undo.Arm(item)
	}
	if err := g.store.UpdateItem(ctx, id, remote.Completion(done, g.now())); err != nil {
		return &MutationError{Op: OpToggle, Err: err}
	}
	return nil
}

// UpdateMemo overwrites the memo of id.
func (g *Gateway) UpdateMemo(ctx context.Context, id, memo string) error {
	if err := g.store.UpdateItem(ctx, id, remote.MemoText(memo)); err != nil {
		return &MutationError{Op: OpMemo, Err: err}
	}
	return nil
}

// Delete removes id once confirm approves. A declined confirmation sends
// nothing and returns nil.
func (g *Gateway) Delete(ctx context.Context, id string, confirm Confirmer) error {
	item, ok := g.snap.Find(id)
	if !ok {
		item = models.ShoppingItem{ID: id}
	}
	if confirm == nil || !confirm(item) {
		return nil
	}
	if err := g.store.DeleteItem(ctx, id); err != nil {
		return &MutationError{Op: OpDelete, Err: err}
	}
	return nil
}
