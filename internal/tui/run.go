package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ytakahashi/quicklist/internal/app"
)

// Run mounts client, drives the terminal UI until the user quits and then
// unmounts it.
func Run(ctx context.Context, client *app.Client, loc *time.Location) error {
	if err := client.Mount(ctx); err != nil {
		return fmt.Errorf("failed to mount client: %w", err)
	}
	defer client.Unmount()

	m := New(ctx, client, loc)
	defer m.Close()

	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run terminal ui: %w", err)
	}
	return nil
}
