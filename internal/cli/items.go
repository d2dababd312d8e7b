package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/format"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
)

// noticeError shows a failure the way the interactive screens do.
type noticeError struct{ err error }

func (e noticeError) Error() string { return gateway.Notice(e.err) }

func (e noticeError) Unwrap() error { return e.err }

func notice(err error) error {
	if err == nil {
		return nil
	}
	return noticeError{err}
}

// withClient opens the backend and mounts a client under the CLI session
// key for the duration of fn.
func (a *App) withClient(cmd *cobra.Command, requireUser bool, fn func(ctx context.Context, c *app.Client) error) error {
	ctx := cmd.Context()
	level := "error"
	if a.Verbose {
		level = a.cfg.LogLevel
	}
	log := logging.New(cmd.ErrOrStderr(), level)

	b, err := a.open(ctx, a.cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	c := a.newClient(b, cliClientKey, log)
	if err := c.Mount(ctx); err != nil {
		return fmt.Errorf("failed to mount client: %w", err)
	}
	defer c.Unmount()

	if requireUser && !c.View().SignedIn() {
		return errNotLoggedIn
	}
	return fn(ctx, c)
}

// resolve finds an item by id, or by exact text preferring active items.
func resolve(v app.View, ref string) (models.ShoppingItem, error) {
	ref = strings.TrimSpace(ref)
	rows := append(append([]models.ShoppingItem(nil), v.Active...), v.Completed...)
	for _, it := range rows {
		if it.ID == ref {
			return it, nil
		}
	}
	for _, it := range rows {
		if it.Text == ref {
			return it, nil
		}
	}
	return models.ShoppingItem{}, fmt.Errorf("「%s」: %w", ref, gateway.ErrItemNotFound)
}

func newListCmd(a *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the shopping list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				v := c.View()
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(map[string][]models.ShoppingItem{
						"active":    nonNil(v.Active),
						"completed": nonNil(v.Completed),
					})
				}
				a.printList(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")
	return cmd
}

func nonNil(items []models.ShoppingItem) []models.ShoppingItem {
	if items == nil {
		return []models.ShoppingItem{}
	}
	return items
}

func (a *App) printList(w io.Writer, v app.View) {
	fmt.Fprintf(w, "買うもの (%d)\n", len(v.Active))
	if len(v.Active) == 0 {
		fmt.Fprintln(w, "  買うものはありません 🎉")
	}
	for _, it := range v.Active {
		fmt.Fprintf(w, "  ☐ %s  %s  [%s]\n", label(it), meta(it, a), it.ID)
	}
	if len(v.Completed) == 0 {
		return
	}
	fmt.Fprintf(w, "購入済み (%d)\n", len(v.Completed))
	for _, it := range v.Completed {
		fmt.Fprintf(w, "  ☑ %s  %s  [%s]\n", label(it), meta(it, a), it.ID)
	}
}

func label(it models.ShoppingItem) string {
	if it.Memo == "" {
		return it.Text
	}
	return it.Text + "（" + it.Memo + "）"
}

func meta(it models.ShoppingItem, a *App) string {
	return strings.TrimSpace(it.CreatedByName + " " + format.ItemDate(it, a.cfg.Location))
}

func newAddCmd(a *App) *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add an item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				if err := c.Add(ctx, text, memo); err != nil {
					return notice(err)
				}
				if text != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "🛒「%s」を追加しました\n", text)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&memo, "memo", "m", "", "Memo for the item")
	return cmd
}

func newPresetCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "preset [text]",
		Short: "Add a frequent item, or list the presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					for _, p := range c.View().Presets {
						mark := " "
						if p.Active {
							mark = "✓"
						}
						fmt.Fprintf(out, "%s %s\n", mark, p.Text)
					}
					return nil
				}
				text := strings.TrimSpace(args[0])
				if err := c.AddPreset(ctx, text); err != nil {
					return notice(err)
				}
				fmt.Fprintf(out, "🛒「%s」を追加しました\n", text)
				return nil
			})
		},
	}
}

func newToggleCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <item>",
		Short: "Mark an item bought, or back to unbought",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				it, err := resolve(c.View(), args[0])
				if err != nil {
					return err
				}
				if err := c.Toggle(ctx, it.ID); err != nil {
					return notice(err)
				}
				if it.IsCompleted {
					fmt.Fprintf(cmd.OutOrStdout(), "「%s」を未購入に戻しました\n", it.Text)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "✅「%s」を購入済みにしました\n", it.Text)
				}
				return nil
			})
		},
	}
}

func newMemoCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "memo <item> <memo>",
		Short: "Replace an item's memo (an empty memo clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				it, err := resolve(c.View(), args[0])
				if err != nil {
					return err
				}
				if err := c.OpenMemo(it.ID); err != nil {
					return err
				}
				c.SetMemoText(args[1])
				if err := c.SaveMemo(ctx); err != nil {
					return notice(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "「%s」のメモを更新しました\n", it.Text)
				return nil
			})
		},
	}
}

func newRmCmd(a *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "rm <item>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, true, func(ctx context.Context, c *app.Client) error {
				it, err := resolve(c.View(), args[0])
				if err != nil {
					return err
				}
				deleted := false
				err = c.Delete(ctx, it.ID, func(it models.ShoppingItem) bool {
					deleted = yes || confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), "「"+it.Text+"」"+gateway.DeletePrompt)
					return deleted
				})
				if err != nil {
					return notice(err)
				}
				if deleted {
					fmt.Fprintf(cmd.OutOrStdout(), "🗑️「%s」を削除しました\n", it.Text)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "削除をキャンセルしました")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}
