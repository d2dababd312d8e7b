package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ytakahashi/quicklist/internal/config"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/remote"
	"github.com/ytakahashi/quicklist/internal/services"
	"google.golang.org/api/option"
)

// Backend is an opened remote data service: the item table plus per-client
// auth.
type Backend struct {
	Store remote.ItemStore
	Auth  func(key string) remote.Auth

	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenBackend connects the backend selected by cfg. The memory backend
// registers every configured member with cfg.DemoPassword.
func OpenBackend(ctx context.Context, cfg *config.Config, log logging.Logger) (*Backend, error) {
	if cfg.Backend == config.BackendMemory {
		mem := remote.NewMemory()
		for email, name := range cfg.Members {
			mem.AddUser(email, cfg.DemoPassword, name)
		}
		return &Backend{Store: mem, Auth: mem.Auth}, nil
	}

	sessions, err := services.OpenSessionStore(ctx, cfg.SessionDB)
	if err != nil {
		return nil, err
	}
	b := &Backend{closers: []func() error{sessions.Close}}

	identity, err := services.NewIdentityService(ctx, sessions, log, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.Auth = identity.Auth

	switch cfg.Backend {
	case config.BackendFirestore:
		fs, err := services.NewFirestoreService(ctx, cfg.ProjectID, log)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = fs
		b.closers = append(b.closers, fs.Close)
	case config.BackendPostgres:
		pg, err := services.NewPostgresService(ctx, cfg.DatabaseURL, log)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Store = pg
		b.closers = append(b.closers, pg.Close)
	default:
		_ = b.Close()
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return b, nil
}
