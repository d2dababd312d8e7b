// Package tui is the terminal presenter of the shopping list.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/login"
	"github.com/ytakahashi/quicklist/internal/models"
)

type mode int

const (
	modeNormal mode = iota
	modeAdd
	modeConfirmDelete
)

// changedMsg reports that the client's view may have changed.
type changedMsg struct{}

// doneMsg carries the outcome of an action run off the update loop.
type doneMsg struct {
	err   error
	login bool
}

type Model struct {
	ctx     context.Context
	client  *app.Client
	changes <-chan struct{}
	cancel  func()

	loc    *time.Location
	view   app.View
	width  int
	cursor int
	mode   mode
	notice string

	email    textinput.Model
	password textinput.Model
	text     textinput.Model
	memo     textinput.Model
	memoEdit textinput.Model

	deleting *models.ShoppingItem
}

// New builds the model for a mounted client. Close releases its change
// subscription.
func New(ctx context.Context, client *app.Client, loc *time.Location) Model {
	if loc == nil {
		loc = time.Local
	}
	changes, cancel := client.Changes()
	m := Model{
		ctx:     ctx,
		client:  client,
		loc:     loc,
		changes: changes,
		cancel:  cancel,
		view:    client.View(),
	}

	m.email = newInput("メールアドレス", 254)
	m.password = newInput("パスワード", 128)
	m.password.EchoMode = textinput.EchoPassword
	m.password.EchoCharacter = '•'
	m.text = newInput("アイテム名", 100)
	m.memo = newInput("メモ (任意)", 200)
	m.memoEdit = newInput("メモ", 200)

	m.email.Focus()
	return m
}

func newInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	return ti
}

func (m Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), textinput.Blink)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// run executes fn off the update loop and reports its error as a doneMsg.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg { return doneMsg{err: fn(ctx)} }
}

// rows lists active items followed by completed ones, in display order.
func (m Model) rows() []models.ShoppingItem {
	rows := make([]models.ShoppingItem, 0, len(m.view.Active)+len(m.view.Completed))
	rows = append(rows, m.view.Active...)
	return append(rows, m.view.Completed...)
}

func (m Model) selected() (models.ShoppingItem, bool) {
	rows := m.rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return models.ShoppingItem{}, false
	}
	return rows[m.cursor], true
}

func (m *Model) refresh() {
	m.view = m.client.View()
	if n := len(m.rows()); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if !m.view.SignedIn() {
		m.mode = modeNormal
		m.deleting = nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case doneMsg:
		if msg.err != nil {
			m.notice = noticeFor(msg)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.notice != "" {
			if s := msg.String(); s == "enter" || s == "esc" {
				m.notice = ""
			}
			return m, nil
		}
		switch {
		case m.view.Loading:
			return m, nil
		case !m.view.SignedIn():
			return m.updateLogin(msg)
		case m.view.Memo != nil:
			return m.updateMemo(msg)
		case m.mode == modeAdd:
			return m.updateAdd(msg)
		case m.mode == modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func noticeFor(msg doneMsg) string {
	if msg.login {
		return login.Message(msg.err)
	}
	return gateway.Notice(msg.err)
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		if m.email.Focused() {
			m.email.Blur()
			return m, m.password.Focus()
		}
		m.password.Blur()
		return m, m.email.Focus()
	case "enter":
		if m.view.LoginBusy {
			return m, nil
		}
		email, password := m.email.Value(), m.password.Value()
		m.password.SetValue("")
		ctx := m.ctx
		return m, func() tea.Msg {
			return doneMsg{err: m.client.Login(ctx, email, password), login: true}
		}
	}

	var cmd tea.Cmd
	if m.email.Focused() {
		m.email, cmd = m.email.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case " ", "enter":
		if it, ok := m.selected(); ok {
			return m, m.run(func(ctx context.Context) error { return m.client.Toggle(ctx, it.ID) })
		}
	case "a":
		m.mode = modeAdd
		m.memo.Blur()
		return m, m.text.Focus()
	case "m":
		m.mode = modeAdd
		m.text.Blur()
		return m, m.memo.Focus()
	case "e":
		it, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.client.OpenMemo(it.ID); err != nil {
			m.notice = gateway.Notice(err)
			return m, nil
		}
		m.refresh()
		m.memoEdit.SetValue(it.Memo)
		m.memoEdit.CursorEnd()
		return m, m.memoEdit.Focus()
	case "d":
		if it, ok := m.selected(); ok {
			m.deleting = &it
			m.mode = modeConfirmDelete
		}
	case "u":
		return m, m.run(m.client.Undo)
	case "r":
		return m, m.run(m.client.Refresh)
	case "L":
		return m, m.run(m.client.Logout)
	default:
		if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
			i := int(key[0] - '1')
			if i < len(m.view.Presets) {
				text := m.view.Presets[i].Text
				return m, m.run(func(ctx context.Context) error { return m.client.AddPreset(ctx, text) })
			}
		}
	}
	return m, nil
}

func (m Model) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.text.Blur()
		m.memo.Blur()
		return m, nil
	case "tab", "shift+tab":
		if m.text.Focused() {
			m.text.Blur()
			return m, m.memo.Focus()
		}
		m.memo.Blur()
		return m, m.text.Focus()
	case "enter":
		text, memo := m.text.Value(), m.memo.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.text.SetValue("")
		m.memo.SetValue("")
		m.mode = modeNormal
		m.text.Blur()
		m.memo.Blur()
		return m, m.run(func(ctx context.Context) error { return m.client.Add(ctx, text, memo) })
	}

	var cmd tea.Cmd
	if m.text.Focused() {
		m.text, cmd = m.text.Update(msg)
	} else {
		m.memo, cmd = m.memo.Update(msg)
	}
	return m, cmd
}

func (m Model) updateMemo(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.client.CancelMemo()
		m.memoEdit.Blur()
		m.refresh()
		return m, nil
	case "enter":
		m.client.SetMemoText(m.memoEdit.Value())
		m.memoEdit.Blur()
		return m, m.run(m.client.SaveMemo)
	}

	var cmd tea.Cmd
	m.memoEdit, cmd = m.memoEdit.Update(msg)
	m.client.SetMemoText(m.memoEdit.Value())
	return m, cmd
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	it := m.deleting
	switch msg.String() {
	case "y", "Y":
		m.mode = modeNormal
		m.deleting = nil
		if it == nil {
			return m, nil
		}
		id := it.ID
		return m, m.run(func(ctx context.Context) error { return m.client.Delete(ctx, id, gateway.Confirmed) })
	case "n", "N", "esc":
		m.mode = modeNormal
		m.deleting = nil
	}
	return m, nil
}
