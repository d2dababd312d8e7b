package app

import (
	"context"
	"errors"

	"github.com/ytakahashi/quicklist/internal/clock"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/remote"
	undopkg "github.com/ytakahashi/quicklist/internal/undo"
)

// undoNotices adapts the controller's errors to gateway notices.
type undoNotices struct {
	*undopkg.Controller
}

func newUndo(store remote.ItemStore, after clock.AfterFunc) *undoNotices {
	return &undoNotices{undopkg.NewController(store, after)}
}

func (u *undoNotices) Undo(ctx context.Context) error {
	err := u.Controller.Undo(ctx)
	if err == nil {
		return nil
	}
	cause := errors.Unwrap(err)
	if cause == nil {
		cause = err
	}
	return &gateway.MutationError{Op: gateway.OpUndo, Err: cause}
}
