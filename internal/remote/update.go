package remote

import (
	"time"

	"github.com/ytakahashi/quicklist/internal/models"
)

// ItemUpdate lists the columns an update writes. Nil pointers are left
// untouched. When SetCompletedAt is true, CompletedAt is written and a nil
// CompletedAt clears the column.
type ItemUpdate struct {
	IsCompleted    *bool
	SetCompletedAt bool
	CompletedAt    *time.Time
	Memo           *string
}

// Completion flips the completion flag together with its timestamp.
func Completion(done bool, at time.Time) ItemUpdate {
	u := ItemUpdate{IsCompleted: &done, SetCompletedAt: true}
	if done {
		t := at
		u.CompletedAt = &t
	}
	return u
}

// MemoText overwrites the memo.
func MemoText(text string) ItemUpdate {
	return ItemUpdate{Memo: &text}
}

// Empty reports whether u writes nothing.
func (u ItemUpdate) Empty() bool {
	return u.IsCompleted == nil && !u.SetCompletedAt && u.Memo == nil
}

// Apply writes u onto item.
func (u ItemUpdate) Apply(item *models.ShoppingItem) {
	if u.IsCompleted != nil {
		item.IsCompleted = *u.IsCompleted
	}
	if u.SetCompletedAt {
		if u.CompletedAt == nil {
			item.CompletedAt = nil
		} else {
			t := *u.CompletedAt
			item.CompletedAt = &t
		}
	}
	if u.Memo != nil {
		item.Memo = *u.Memo
	}
}
