package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/migrations"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
)

// changeChannel is the NOTIFY channel the shopping_items trigger publishes on.
const changeChannel = "shopping_items_changes"

// DBTX is the subset of database/sql the item queries need.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Listener receives NOTIFY payloads on a dedicated connection.
type Listener interface {
	Listen(ctx context.Context, channel string) error
	Wait(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// PostgresService stores shopping items in Postgres. Change notifications
// come from LISTEN on a separate native pgx connection.
type PostgresService struct {
	db     DBTX
	closer func() error
	listen func(ctx context.Context) (Listener, error)
	log    logging.Logger
	now    func() time.Time
}

func NewPostgresService(ctx context.Context, dsn string, log logging.Logger) (*PostgresService, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := migrations.Up(ctx, db, goose.DialectPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	s := NewPostgresRepository(db, func(ctx context.Context) (Listener, error) {
		return dialListener(ctx, dsn)
	}, log)
	s.closer = db.Close
	return s, nil
}

// NewPostgresRepository builds the service on an open handle. listen opens a
// notification connection for each WatchItems call.
func NewPostgresRepository(db DBTX, listen func(ctx context.Context) (Listener, error), log logging.Logger) *PostgresService {
	return &PostgresService{db: db, listen: listen, log: log, now: time.Now}
}

func (s *PostgresService) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *PostgresService) ListItems(ctx context.Context) ([]models.ShoppingItem, error) {
	query :=
		`SELECT id, text, memo, is_completed, created_by_name, user_id, created_at, completed_at
		 FROM shopping_items
		 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []models.ShoppingItem
	for rows.Next() {
		var (
			item        models.ShoppingItem
			memo, user  sql.NullString
			completedAt sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Text, &memo, &item.IsCompleted, &item.CreatedByName, &user, &item.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		item.Memo = memo.String
		item.UserID = user.String
		if completedAt.Valid {
			t := completedAt.Time
			item.CompletedAt = &t
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

func (s *PostgresService) InsertItem(ctx context.Context, n models.NewItem) error {
	query :=
		`INSERT INTO shopping_items (id, text, memo, is_completed, created_by_name, user_id, created_at)
		 VALUES ($1, $2, $3, FALSE, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), n.Text, nullString(n.Memo), n.CreatedByName, nullString(n.UserID), s.now())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *PostgresService) UpdateItem(ctx context.Context, id string, u remote.ItemUpdate) error {
	query, args := buildUpdateQuery(id, u)
	if query == "" {
		return nil
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, remote.ErrNotFound)
	}
	return nil
}

func (s *PostgresService) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM shopping_items WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// WatchItems opens a LISTEN connection that lives until ctx is done.
func (s *PostgresService) WatchItems(ctx context.Context) (<-chan remote.Change, error) {
	l, err := s.listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open listener: %w", err)
	}
	if err := l.Listen(ctx, changeChannel); err != nil {
		_ = l.Close(context.Background())
		return nil, fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	out := make(chan remote.Change)
	go func() {
		defer close(out)
		defer l.Close(context.Background())
		for {
			payload, err := l.Wait(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error(ctx, "item listener stopped", "error", err)
				}
				return
			}
			select {
			case out <- remote.Change{Event: payload}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func buildUpdateQuery(id string, u remote.ItemUpdate) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.IsCompleted != nil {
		add("is_completed", *u.IsCompleted)
	}
	if u.SetCompletedAt {
		if u.CompletedAt == nil {
			add("completed_at", nil)
		} else {
			add("completed_at", *u.CompletedAt)
		}
	}
	if u.Memo != nil {
		add("memo", *u.Memo)
	}
	if len(sets) == 0 {
		return "", nil
	}
	args = append(args, id)
	return fmt.Sprintf("UPDATE shopping_items SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)), args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type pgxListener struct {
	conn *pgx.Conn
}

func dialListener(ctx context.Context, dsn string) (Listener, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &pgxListener{conn: conn}, nil
}

func (l *pgxListener) Listen(ctx context.Context, channel string) error {
	_, err := l.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

func (l *pgxListener) Wait(ctx context.Context) (string, error) {
	n, err := l.conn.WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Payload, nil
}

func (l *pgxListener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}
