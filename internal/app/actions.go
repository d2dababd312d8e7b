package app

import (
	"context"

	"github.com/ytakahashi/quicklist/internal/gateway"
)

// Login submits credentials. The dashboard appears once the auth stream
// reports the new session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.login.Submit(ctx, email, password)
}

// Logout asks the backend to end the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.SignOut(ctx)
}

func (c *Client) Add(ctx context.Context, text, memo string) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	return d.gateway.Create(ctx, &d.user, text, memo)
}

func (c *Client) AddPreset(ctx context.Context, text string) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	return d.gateway.CreateFromPreset(ctx, &d.user, text)
}

func (c *Client) Toggle(ctx context.Context, id string) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	return d.gateway.ToggleCompletion(ctx, id)
}

func (c *Client) Delete(ctx context.Context, id string, confirm gateway.Confirmer) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	return d.gateway.Delete(ctx, id, confirm)
}

// Undo reverts the item armed by the last completion, if any.
func (c *Client) Undo(ctx context.Context) error {
	return c.undo.Undo(ctx)
}

// Refresh re-fetches the list outside the change stream.
func (c *Client) Refresh(ctx context.Context) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	return d.sync.FetchAll(ctx)
}

// OpenMemo starts editing the memo of id.
func (c *Client) OpenMemo(id string) error {
	d, err := c.current()
	if err != nil {
		return err
	}
	item, ok := d.sync.Find(id)
	if !ok {
		return gateway.ErrItemNotFound
	}
	c.memo.Open(item)
	return nil
}

func (c *Client) SetMemoText(text string) { c.memo.SetText(text) }

func (c *Client) SaveMemo(ctx context.Context) error { return c.memo.Save(ctx) }

func (c *Client) CancelMemo() { c.memo.Cancel() }

// memoSaver routes memo saves to whichever dashboard is mounted.
type memoSaver struct{ c *Client }

func (s memoSaver) UpdateMemo(ctx context.Context, id, text string) error {
	d, err := s.c.current()
	if err != nil {
		return err
	}
	return d.gateway.UpdateMemo(ctx, id, text)
}
