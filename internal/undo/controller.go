// Package undo keeps the most recently completed item for a short window so
// its completion can be reverted.
package undo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ytakahashi/quicklist/internal/clock"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// Window is how long an armed item stays undoable.
const Window = 4 * time.Second

// State is the phase of the undo offer.
type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Updater is the part of remote.ItemStore the controller writes through.
type Updater interface {
	UpdateItem(ctx context.Context, id string, u remote.ItemUpdate) error
}

// Controller offers to revert the latest completion toggle for Window.
type Controller struct {
	store Updater
	after clock.AfterFunc

	mu    sync.Mutex
	item  *models.ShoppingItem
	gen   uint64
	timer clock.Timer

	changes *notify.Signal
}

// NewController returns an idle controller. A nil after uses real timers.
func NewController(store Updater, after clock.AfterFunc) *Controller {
	if after == nil {
		after = clock.Real
	}
	return &Controller{store: store, after: after, changes: notify.NewSignal()}
}

// Arm captures item and restarts the window. An item armed earlier is
// discarded.
func (c *Controller) Arm(item models.ShoppingItem) {
	c.mu.Lock()
	c.stopTimer()
	c.gen++
	gen := c.gen
	c.item = &item
	c.timer = c.after(Window, func() { c.expire(gen) })
	c.mu.Unlock()
	notify.Notify(c.changes)
}

func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.item == nil {
		c.mu.Unlock()
		return
	}
	c.item = nil
	c.timer = nil
	c.mu.Unlock()
	notify.Notify(c.changes)
}

// Undo reverts the armed item to not completed and returns to idle. It does
// nothing while idle. The update is sent whatever the item's current remote
// state is.
func (c *Controller) Undo(ctx context.Context) error {
	c.mu.Lock()
	item := c.item
	if item == nil {
		c.mu.Unlock()
		return nil
	}
	c.stopTimer()
	c.gen++
	c.item = nil
	c.mu.Unlock()
	notify.Notify(c.changes)

	if err := c.store.UpdateItem(ctx, item.ID, remote.Completion(false, time.Time{})); err != nil {
		return fmt.Errorf("failed to undo completion: %w", err)
	}
	return nil
}

// State reports idle or armed.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item == nil {
		return Idle
	}
	return Armed
}

// Item returns the armed item.
func (c *Controller) Item() (models.ShoppingItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.item == nil {
		return models.ShoppingItem{}, false
	}
	return *c.item, true
}

// Stop disarms without sending anything.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopTimer()
	c.gen++
	armed := c.item != nil
	c.item = nil
	c.mu.Unlock()
	if armed {
		notify.Notify(c.changes)
	}
}

func (c *Controller) Changes() (<-chan struct{}, func()) {
	return c.changes.Subscribe()
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
