package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/tui"
)

// runTUI logs to a file next to the session database so the terminal stays
// clean.
func (a *App) runTUI(ctx context.Context) error {
	dir := filepath.Dir(a.cfg.SessionDB)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, "quicklist.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()
	log := logging.New(f, a.cfg.LogLevel)

	b, err := a.open(ctx, a.cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	return tui.Run(ctx, a.newClient(b, cliClientKey, log), a.cfg.Location)
}
