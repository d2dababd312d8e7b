package session

import (
	"strings"

	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// Directory resolves family display names from e-mail addresses.
type Directory struct {
	names    map[string]string
	fallback string
}

func NewDirectory(names map[string]string, fallback string) Directory {
	d := Directory{names: make(map[string]string, len(names)), fallback: fallback}
	for email, name := range names {
		d.names[strings.ToLower(strings.TrimSpace(email))] = name
	}
	return d
}

// Name returns the display name registered for email, or the fallback label.
func (d Directory) Name(email string) string {
	if name, ok := d.names[strings.ToLower(strings.TrimSpace(email))]; ok {
		return name
	}
	return d.fallback
}

// Fallback is the generic label used for unknown members.
func (d Directory) Fallback() string { return d.fallback }

// UserFromSession maps a backend session to the application user.
func (d Directory) UserFromSession(s *remote.Session) *models.User {
	if s == nil {
		return nil
	}
	return &models.User{
		ID:        s.User.ID,
		Email:     s.User.Email,
		Name:      d.Name(s.User.Email),
		AvatarURL: s.User.PhotoURL,
	}
}
