// Package memo holds the state of the memo editing dialog.
package memo

import (
	"context"
	"sync"

	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
)

// Saver writes a memo for an item.
type Saver interface {
	UpdateMemo(ctx context.Context, id, memo string) error
}

// Draft is the dialog's current content.
type Draft struct {
	ItemID   string
	ItemText string
	Text     string
}

type Editor struct {
	saver Saver

	mu    sync.Mutex
	draft *Draft

	changes *notify.Signal
}

func NewEditor(saver Saver) *Editor {
	return &Editor{saver: saver, changes: notify.NewSignal()}
}

// Open starts editing item, seeding the draft with its current memo. Opening
// another item replaces the draft.
func (e *Editor) Open(item models.ShoppingItem) {
	e.mu.Lock()
	e.draft = &Draft{ItemID: item.ID, ItemText: item.Text, Text: item.Memo}
	e.mu.Unlock()
	notify.Notify(e.changes)
}

// SetText updates the draft. It does nothing while closed.
func (e *Editor) SetText(text string) {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return
	}
	e.draft.Text = text
	e.mu.Unlock()
	notify.Notify(e.changes)
}

// Save writes the draft. The dialog closes on success and stays open with
// the draft intact on failure.
func (e *Editor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.draft == nil {
		e.mu.Unlock()
		return nil
	}
	d := *e.draft
	e.mu.Unlock()

	if err := e.saver.UpdateMemo(ctx, d.ItemID, d.Text); err != nil {
		return err
	}

	e.mu.Lock()
	if e.draft != nil && e.draft.ItemID == d.ItemID {
		e.draft = nil
	}
	e.mu.Unlock()
	notify.Notify(e.changes)
	return nil
}

// Cancel closes the dialog without saving.
func (e *Editor) Cancel() {
	e.mu.Lock()
	open := e.draft != nil
	e.draft = nil
	e.mu.Unlock()
	if open {
		notify.Notify(e.changes)
	}
}

// Editing returns the open draft.
func (e *Editor) Editing() (Draft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return Draft{}, false
	}
	return *e.draft, true
}

func (e *Editor) Changes() (<-chan struct{}, func()) {
	return e.changes.Subscribe()
}
