// Package cli holds the quicklist command tree.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/config"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/session"
)

// cliClientKey is the session key shared by the terminal UI and the one-shot
// commands, so `quicklist login` also signs in the TUI.
const cliClientKey = "cli"

type App struct {
	EnvFile   string
	Backend   string
	Port      string
	SessionDB string
	Verbose   bool

	cfg  *config.Config
	open func(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error)
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{open: OpenBackend})
}

func newRootCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quicklist",
		Short:         "Shared family shopping list",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  quicklist

  # Serve the web UI (and the LINE webhook when configured)
  quicklist serve --port 8080

  # Scriptable commands
  quicklist login ramu@example.com
  quicklist add 牛乳 --memo 低脂肪
  quicklist list
`),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&a.EnvFile, "env-file", "", "Path to a .env file (default: .env)")
	cmd.PersistentFlags().StringVar(&a.Backend, "backend", "", "Backend: firestore, postgres or memory (env QUICKLIST_BACKEND)")
	cmd.PersistentFlags().StringVar(&a.Port, "port", "", "HTTP port for serve (env PORT)")
	cmd.PersistentFlags().StringVar(&a.SessionDB, "session-db", "", "Path to the local session database (env QUICKLIST_SESSION_DB)")
	cmd.PersistentFlags().BoolVarP(&a.Verbose, "verbose", "v", false, "Log at the configured level instead of errors only")

	cmd.AddCommand(newTUICmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newAddCmd(a))
	cmd.AddCommand(newPresetCmd(a))
	cmd.AddCommand(newToggleCmd(a))
	cmd.AddCommand(newMemoCmd(a))
	cmd.AddCommand(newRmCmd(a))
	return cmd
}

// loadConfig layers flags over .env and the environment and validates the
// result.
func (a *App) loadConfig() error {
	cfg, err := config.Load(a.EnvFile)
	if err != nil {
		return err
	}
	if a.Backend != "" {
		cfg.Backend = config.Backend(strings.ToLower(strings.TrimSpace(a.Backend)))
	}
	if a.Port != "" {
		cfg.Port = a.Port
	}
	if a.SessionDB != "" {
		cfg.SessionDB = a.SessionDB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *App) newClient(b *Backend, key string, log logging.Logger) *app.Client {
	return app.NewClient(b.Auth(key), b.Store, log,
		app.WithPresets(a.cfg.Presets),
		app.WithDirectory(session.NewDirectory(a.cfg.Members, a.cfg.FallbackName)),
	)
}

func newTUICmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}
