package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/spf13/cobra"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/handlers"
	"github.com/ytakahashi/quicklist/internal/listsync"
	"github.com/ytakahashi/quicklist/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and, when configured, the LINE webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *App) serve(ctx context.Context) error {
	log := logging.New(os.Stdout, a.cfg.LogLevel)

	b, err := a.open(ctx, a.cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	renderer, err := handlers.NewTemplateRenderer(a.cfg.Location)
	if err != nil {
		return err
	}
	web := handlers.NewWebHandler(func(key string) *app.Client {
		return a.newClient(b, key, log.With("client", key))
	}, renderer, log)
	defer web.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	web.Register(e)

	if a.cfg.LineEnabled() {
		bot, err := messaging_api.NewMessagingApiAPI(a.cfg.LineChannelToken)
		if err != nil {
			return fmt.Errorf("failed to create LINE bot client: %w", err)
		}
		list := listsync.New(b.Store, log.With("component", "line"))
		if err := list.Mount(ctx); err != nil {
			return fmt.Errorf("failed to mount shared list: %w", err)
		}
		defer list.Unmount()

		line := handlers.NewLineHandler(bot, a.cfg.LineChannelSecret, list, gateway.New(b.Store, list, nil), a.cfg.FallbackName, log)
		e.POST("/line/webhook", line.HandleWebhook)
		log.Info(ctx, "LINE webhook enabled", "path", "/line/webhook")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- e.Start(":" + a.cfg.Port) }()
	log.Info(ctx, "server starting", "port", a.cfg.Port, "backend", string(a.cfg.Backend))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info(shutdownCtx, "server shutting down")
		return e.Shutdown(shutdownCtx)
	}
}
