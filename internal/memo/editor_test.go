package memo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/models"
)

type recordingSaver struct {
	calls []string
	err   error
}

func (s *recordingSaver) UpdateMemo(ctx context.Context, id, memo string) error {
	s.calls = append(s.calls, id+":"+memo)
	return s.err
}

func TestEditor_OpenSeedsDraft(t *testing.T) {
	e := NewEditor(&recordingSaver{})
	_, ok := e.Editing()
	assert.False(t, ok)

	e.Open(models.ShoppingItem{ID: "x", Text: "牛乳", Memo: "低脂肪"})
	d, ok := e.Editing()
	require.True(t, ok)
	assert.Equal(t, Draft{ItemID: "x", ItemText: "牛乳", Text: "低脂肪"}, d)
}

func TestEditor_SaveClosesOnSuccess(t *testing.T) {
	s := &recordingSaver{}
	e := NewEditor(s)
	e.Open(models.ShoppingItem{ID: "x", Text: "牛乳"})
	e.SetText("2本")

	require.NoError(t, e.Save(context.Background()))
	assert.Equal(t, []string{"x:2本"}, s.calls)
	_, ok := e.Editing()
	assert.False(t, ok)
}

func TestEditor_SaveFailureKeepsDraft(t *testing.T) {
	s := &recordingSaver{err: errors.New("offline")}
	e := NewEditor(s)
	e.Open(models.ShoppingItem{ID: "x", Text: "牛乳"})
	e.SetText("2本")

	require.EqualError(t, e.Save(context.Background()), "offline")
	d, ok := e.Editing()
	require.True(t, ok)
	assert.Equal(t, "2本", d.Text)
}

func TestEditor_CancelSendsNothing(t *testing.T) {
	s := &recordingSaver{}
	e := NewEditor(s)
	e.Open(models.ShoppingItem{ID: "x"})
	e.Cancel()

	_, ok := e.Editing()
	assert.False(t, ok)
	assert.Empty(t, s.calls)
}

func TestEditor_ClosedIgnoresEdits(t *testing.T) {
	s := &recordingSaver{}
	e := NewEditor(s)
	e.SetText("ignored")
	require.NoError(t, e.Save(context.Background()))
	assert.Empty(t, s.calls)
}
