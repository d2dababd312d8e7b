package gateway

import (
	"errors"
	"fmt"
)

type Op string

const (
	OpCreate Op = "create"
	OpToggle Op = "toggle"
	OpMemo   Op = "memo"
	OpDelete Op = "delete"
	OpUndo   Op = "undo"
)

var opText = map[Op]string{
	OpCreate: "add item",
	OpToggle: "update item",
	OpMemo:   "update memo",
	OpDelete: "delete item",
	OpUndo:   "undo completion",
}

var opNotice = map[Op]string{
	OpCreate: "追加エラー: ",
	OpToggle: "更新エラー: ",
	OpMemo:   "メモの更新に失敗しました: ",
	OpDelete: "削除エラー: ",
	OpUndo:   "元に戻せませんでした: ",
}

// MutationError wraps a failed store request with the operation that sent it.
type MutationError struct {
	Op  Op
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("failed to %s: %v", opText[e.Op], e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Notice renders err for a blocking notification: the operation's prefix
// followed by the backend's own message.
func Notice(err error) string {
	if err == nil {
		return ""
	}
	var listed *AlreadyListedError
	if errors.As(err, &listed) {
		return listed.Error()
	}
	var me *MutationError
	if errors.As(err, &me) {
		return opNotice[me.Op] + rootCause(me.Err).Error()
	}
	return err.Error()
}

// rootCause strips the adapters' "failed to ..." wrapping so the notice shows
// the backend's message.
func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
