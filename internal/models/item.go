package models

import (
	"time"
)

// ShoppingItem represents one row of the shared shopping list
type ShoppingItem struct {
	ID            string     `firestore:"id" json:"id"`
	Text          string     `firestore:"text" json:"text"`
	Memo          string     `firestore:"memo,omitempty" json:"memo,omitempty"`
	IsCompleted   bool       `firestore:"is_completed" json:"is_completed"`
	CreatedByName string     `firestore:"created_by_name" json:"created_by_name"`
	UserID        string     `firestore:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedAt     time.Time  `firestore:"created_at" json:"created_at"`
	CompletedAt   *time.Time `firestore:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// NewItem carries the fields written on insert
type NewItem struct {
	Text          string
	Memo          string
	CreatedByName string
	UserID        string
}

// User is the signed-in family member
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
