package app

import (
	"github.com/ytakahashi/quicklist/internal/listsync"
	"github.com/ytakahashi/quicklist/internal/memo"
	"github.com/ytakahashi/quicklist/internal/models"
)

// Preset is a quick-add button. Active is set while an unbought item with the
// same text is listed.
type Preset struct {
	Text   string
	Active bool
}

// View is an immutable snapshot of everything a presenter draws.
type View struct {
	Loading   bool
	LoginBusy bool
	User      *models.User
	Active    []models.ShoppingItem
	Completed []models.ShoppingItem
	Syncing   bool
	Undo      *models.ShoppingItem
	Memo      *memo.Draft
	Presets   []Preset
}

// SignedIn reports whether the dashboard should be shown.
func (v View) SignedIn() bool { return v.User != nil }

func (c *Client) View() View {
	v := View{
		Loading:   c.session.Loading(),
		LoginBusy: c.login.Busy(),
	}

	c.mu.RLock()
	d := c.dash
	var user models.User
	if d != nil {
		user = d.user
	}
	c.mu.RUnlock()

	if d != nil {
		v.User = &user
		v.Active, v.Completed = listsync.Partition(d.sync.Items())
		v.Syncing = d.sync.Syncing()
	}
	if it, ok := c.undo.Item(); ok {
		v.Undo = &it
	}
	if dr, ok := c.memo.Editing(); ok {
		v.Memo = &dr
	}

	listed := map[string]bool{}
	for _, it := range v.Active {
		listed[it.Text] = true
	}
	v.Presets = make([]Preset, len(c.presets))
	for i, p := range c.presets {
		v.Presets[i] = Preset{Text: p, Active: listed[p]}
	}
	return v
}
