package format

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ytakahashi/quicklist/internal/models"
)

func TestMonthDay_UsesLocation(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	utc := time.Date(2024, 1, 14, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "1/14", MonthDay(utc, time.UTC))
	assert.Equal(t, "1/15", MonthDay(utc, jst))
	assert.Equal(t, "1/14", MonthDay(utc, nil))
}

func TestItemDate(t *testing.T) {
	created := time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC)
	done := time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC)

	active := models.ShoppingItem{CreatedAt: created}
	assert.Equal(t, "12/3", ItemDate(active, time.UTC))

	completed := models.ShoppingItem{CreatedAt: created, IsCompleted: true, CompletedAt: &done}
	assert.Equal(t, "12/5 購入", ItemDate(completed, time.UTC))

	// completed without a stamp falls back to the creation date
	legacy := models.ShoppingItem{CreatedAt: created, IsCompleted: true}
	assert.Equal(t, "12/3", ItemDate(legacy, time.UTC))
}
