package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/login"
)

const authTimeout = 10 * time.Second

var errNotLoggedIn = errors.New("not logged in; run `quicklist login` first")

func newLoginCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in with e-mail and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, false, func(ctx context.Context, c *app.Client) error {
				password, err := getPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				if err := c.Login(ctx, strings.TrimSpace(args[0]), password); err != nil {
					return errors.New(login.Message(err))
				}
				if err := waitSignedIn(ctx, c, true); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ログインしました: %s\n", c.View().User.Name)
				return nil
			})
		},
	}
}

func newLogoutCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, false, func(ctx context.Context, c *app.Client) error {
				if !c.View().SignedIn() {
					fmt.Fprintln(cmd.OutOrStdout(), "ログインしていません")
					return nil
				}
				if err := c.Logout(ctx); err != nil {
					return fmt.Errorf("failed to sign out: %w", err)
				}
				if err := waitSignedIn(ctx, c, false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ログアウトしました")
				return nil
			})
		},
	}
}

// waitSignedIn blocks until the client's auth state reaches want.
func waitSignedIn(ctx context.Context, c *app.Client, want bool) error {
	changes, cancel := c.Changes()
	defer cancel()
	timer := time.NewTimer(authTimeout)
	defer timer.Stop()
	for c.View().SignedIn() != want {
		select {
		case <-changes:
		case <-timer.C:
			return errors.New("timed out waiting for the session to change")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
