// Package format renders values the way the family reads them (ja-JP).
package format

import (
	"fmt"
	"time"

	"github.com/ytakahashi/quicklist/internal/models"
)

// MonthDay renders t as the ja-JP numeric month/day short form, e.g. "1/15".
func MonthDay(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}

// ItemDate is the date shown on a row: the purchase date for completed
// items, the creation date otherwise.
func ItemDate(item models.ShoppingItem, loc *time.Location) string {
	if item.IsCompleted && item.CompletedAt != nil {
		return MonthDay(*item.CompletedAt, loc) + " 購入"
	}
	return MonthDay(item.CreatedAt, loc)
}
