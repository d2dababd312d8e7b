// Package listsync keeps a client's copy of the shopping list in step with
// the backend. Every change notification triggers a full re-fetch that
// replaces the snapshot wholesale.
package listsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ytakahashi/quicklist/internal/clock"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// SyncIndicatorDelay is how long the syncing flag stays up after a change
// notification.
const SyncIndicatorDelay = 800 * time.Millisecond

var ErrUnmounted = errors.New("synchronizer already unmounted")

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithAfterFunc replaces the timer used for the syncing indicator.
func WithAfterFunc(f clock.AfterFunc) Option {
	return func(s *Synchronizer) { s.after = f }
}

// Synchronizer keeps a local copy of the shared list in step with the
// backend, refetching on every change notification.
type Synchronizer struct {
	store remote.ItemStore
	log   logging.Logger
	after clock.AfterFunc

	mu         sync.RWMutex
	items      []models.ShoppingItem
	fetchSeq   uint64
	appliedSeq uint64

	syncing   bool
	syncGen   uint64
	syncTimer clock.Timer

	mounted bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	changes *notify.Signal
}

func New(store remote.ItemStore, log logging.Logger, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		log:     log,
		after:   clock.Real,
		changes: notify.NewSignal(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Mount subscribes to the change channel and performs the first fetch. A
// failed first fetch is logged and leaves the snapshot empty.
func (s *Synchronizer) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrUnmounted
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mounted = true
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	changes, err := s.store.WatchItems(watchCtx)
	if err != nil {
		cancel()
		close(done)
		return fmt.Errorf("failed to subscribe to item changes: %w", err)
	}
	go s.watch(watchCtx, changes, done)

	_ = s.FetchAll(ctx)
	return nil
}

func (s *Synchronizer) watch(ctx context.Context, changes <-chan remote.Change, done chan struct{}) {
	defer close(done)
	for c := range changes {
		s.log.Debug(ctx, "item change received", "event", c.Event)
		s.markSyncing()
		_ = s.FetchAll(ctx)
	}
	if ctx.Err() == nil {
		s.log.Warn(ctx, "item change channel closed")
	}
}

// FetchAll replaces the snapshot with the backend's current rows. Errors
// are logged and returned; the snapshot is left untouched on failure.
func (s *Synchronizer) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()

	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to fetch items", "error", err)
		return err
	}

	s.mu.Lock()
	if s.closed || seq < s.appliedSeq {
		s.mu.Unlock()
		return nil
	}
	s.items = items
	s.appliedSeq = seq
	s.mu.Unlock()

	notify.Notify(s.changes)
	return nil
}

func (s *Synchronizer) markSyncing() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.syncGen++
	gen := s.syncGen
	if s.syncTimer != nil {
		s.syncTimer.Stop()
	}
	s.syncTimer = s.after(SyncIndicatorDelay, func() {
		s.mu.Lock()
		cleared := s.syncGen == gen && s.syncing
		if cleared {
			s.syncing = false
		}
		s.mu.Unlock()
		if cleared {
			notify.Notify(s.changes)
		}
	})
	s.mu.Unlock()
	notify.Notify(s.changes)
}

// Unmount cancels the subscription and waits for the watcher to exit.
// Fetches completing afterwards are discarded.
func (s *Synchronizer) Unmount() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	if s.syncTimer != nil {
		s.syncTimer.Stop()
	}
	s.syncing = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Items returns a copy of the snapshot in fetch order.
func (s *Synchronizer) Items() []models.ShoppingItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ShoppingItem(nil), s.items...)
}

// Active returns the items still to buy.
func (s *Synchronizer) Active() []models.ShoppingItem {
	active, _ := Partition(s.Items())
	return active
}

// Completed returns the items already bought.
func (s *Synchronizer) Completed() []models.ShoppingItem {
	_, completed := Partition(s.Items())
	return completed
}

// Syncing reports whether a change notification arrived within the last
// SyncIndicatorDelay.
func (s *Synchronizer) Syncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncing
}

// Find returns the snapshot row with id.
func (s *Synchronizer) Find(id string) (models.ShoppingItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return models.ShoppingItem{}, false
}

// MatchText returns the snapshot rows whose text equals text exactly.
func (s *Synchronizer) MatchText(text string) []models.ShoppingItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ShoppingItem
	for _, it := range s.items {
		if it.Text == text {
			out = append(out, it)
		}
	}
	return out
}

// Changes notifies on every snapshot or syncing change.
func (s *Synchronizer) Changes() (<-chan struct{}, func()) {
	return s.changes.Subscribe()
}

// Partition splits items into active and completed, preserving order.
func Partition(items []models.ShoppingItem) (active, completed []models.ShoppingItem) {
	for _, it := range items {
		if it.IsCompleted {
			completed = append(completed, it)
		} else {
			active = append(active, it)
		}
	}
	return active, completed
}
