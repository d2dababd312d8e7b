package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/ytakahashi/quicklist/internal/migrations"
	"github.com/ytakahashi/quicklist/internal/remote"
	_ "modernc.org/sqlite"
)

// SessionStore persists backend sessions per client key.
type SessionStore interface {
	Load(ctx context.Context, key string) (*remote.Session, error)
	Save(ctx context.Context, key string, s *remote.Session) error
	Delete(ctx context.Context, key string) error
}

type SQLiteSessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSessionStore opens (creating if needed) the session database at path.
// ":memory:" keeps sessions for the life of the process.
func OpenSessionStore(ctx context.Context, path string) (*SQLiteSessionStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db, goose.DialectSQLite3); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSessionStore{db: db, now: time.Now}, nil
}

func (s *SQLiteSessionStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteSessionStore) Load(ctx context.Context, key string) (*remote.Session, error) {
	query :=
		`SELECT access_token, refresh_token, expires_at, user_id, email, display_name, photo_url
		 FROM sessions WHERE client_key = ?`

	var (
		sess    remote.Session
		expires int64
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&sess.AccessToken, &sess.RefreshToken, &expires,
		&sess.User.ID, &sess.User.Email, &sess.User.DisplayName, &sess.User.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.ExpiresAt = time.Unix(expires, 0)
	return &sess, nil
}

func (s *SQLiteSessionStore) Save(ctx context.Context, key string, sess *remote.Session) error {
	query :=
		`INSERT INTO sessions (client_key, access_token, refresh_token, expires_at, user_id, email, display_name, photo_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(client_key) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   user_id = excluded.user_id,
		   email = excluded.email,
		   display_name = excluded.display_name,
		   photo_url = excluded.photo_url,
		   updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, key,
		sess.AccessToken, sess.RefreshToken, sess.ExpiresAt.Unix(),
		sess.User.ID, sess.User.Email, sess.User.DisplayName, sess.User.PhotoURL,
		s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE client_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
