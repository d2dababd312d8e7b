package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ytakahashi/quicklist/internal/format"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/models"
)

func (m Model) View() string {
	var body string
	switch {
	case m.view.Loading:
		body = mutedStyle.Render("読み込み中...")
	case !m.view.SignedIn():
		body = m.viewLogin()
	default:
		body = m.viewDashboard()
	}

	if m.notice != "" {
		modal := errorModalStyle.Render(m.notice + "\n\n" + mutedStyle.Render("enter: OK"))
		body = lipgloss.JoinVertical(lipgloss.Left, body, modal)
	}
	return body
}

func (m Model) viewLogin() string {
	button := "[ログイン]"
	if m.view.LoginBusy {
		button = mutedStyle.Render("[ログイン中...]")
	}
	return strings.Join([]string{
		titleStyle.Render("QuickList"),
		"",
		m.email.View(),
		m.password.View(),
		"",
		button,
		helpStyle.Render("tab: 切替  enter: ログイン  ctrl+c: 終了"),
	}, "\n")
}

func (m Model) viewDashboard() string {
	var b strings.Builder

	sync := mutedStyle.Render("同期済み")
	if m.view.Syncing {
		sync = selectedStyle.Render("同期中...")
	}
	fmt.Fprintf(&b, "%s  %s  %s\n", titleStyle.Render("QuickList"), sync, mutedStyle.Render(m.view.User.Name))

	presets := make([]string, 0, len(m.view.Presets))
	for i, p := range m.view.Presets {
		label := fmt.Sprintf("%d %s", i+1, p.Text)
		if p.Active {
			presets = append(presets, presetOnStyle.Render("✓ "+label))
			continue
		}
		presets = append(presets, presetStyle.Render(label))
	}
	if len(presets) > 0 {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, presets...))
		b.WriteString("\n")
	}

	b.WriteString(headingStyle.Render(fmt.Sprintf("買うもの (%d)", len(m.view.Active))))
	b.WriteString("\n")
	if len(m.view.Active) == 0 {
		b.WriteString(mutedStyle.Render("  買うものはありません 🎉"))
		b.WriteString("\n")
	}
	for i, it := range m.view.Active {
		b.WriteString(m.row(i, it))
	}

	if len(m.view.Completed) > 0 {
		b.WriteString(headingStyle.Render(fmt.Sprintf("購入済み (%d)", len(m.view.Completed))))
		b.WriteString("\n")
		for i, it := range m.view.Completed {
			b.WriteString(m.row(len(m.view.Active)+i, it))
		}
	}

	switch {
	case m.view.Memo != nil:
		b.WriteString("\n")
		b.WriteString(modalStyle.Render(fmt.Sprintf("「%s」のメモ\n\n%s\n\n%s",
			m.view.Memo.ItemText, m.memoEdit.View(), mutedStyle.Render("enter: 保存  esc: キャンセル"))))
	case m.mode == modeAdd:
		b.WriteString("\n")
		b.WriteString(modalStyle.Render(fmt.Sprintf("追加\n\n%s\n%s\n\n%s",
			m.text.View(), m.memo.View(), mutedStyle.Render("tab: メモ  enter: 追加  esc: キャンセル"))))
	case m.mode == modeConfirmDelete && m.deleting != nil:
		b.WriteString("\n")
		b.WriteString(modalStyle.Render(fmt.Sprintf("「%s」%s\n\n%s",
			m.deleting.Text, gateway.DeletePrompt, mutedStyle.Render("y: 削除  n: キャンセル"))))
	}

	if m.view.Undo != nil {
		b.WriteString("\n")
		b.WriteString(toastStyle.Render(fmt.Sprintf("「%s」を購入済みにしました  u: 元に戻す", m.view.Undo.Text)))
	}

	b.WriteString(helpStyle.Render("space: 購入/戻す  a: 追加  m: メモ付きで追加  e: メモ編集  d: 削除  1-9: よく使うもの  r: 更新  L: ログアウト  q: 終了"))
	return b.String()
}

func (m Model) row(index int, it models.ShoppingItem) string {
	box, text := "☐", it.Text
	if it.IsCompleted {
		box, text = "☑", doneStyle.Render(it.Text)
	}
	prefix := "  "
	if index == m.cursor {
		prefix = selectedStyle.Render("> ")
	}
	line := prefix + box + " " + text
	if it.Memo != "" {
		line += mutedStyle.Render("（" + it.Memo + "）")
	}
	meta := strings.TrimSpace(it.CreatedByName + " " + format.ItemDate(it, m.loc))
	if meta != "" {
		line += "  " + mutedStyle.Render(meta)
	}
	return line + "\n"
}
