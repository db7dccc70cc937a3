package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	storepkg "calcweb/internal/store"
)

const schema = `create table if not exists client_state (
	key        text primary key,
	value      text not null,
	updated_at timestamptz not null default now()
)`

type Store struct {
	db *sql.DB
}

func NewStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewStoreWithDB(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB wraps an already opened handle. The schema is not touched.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create client_state: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`select value from client_state where key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storepkg.ErrNotFound
		}
		return "", wrapErr("read", key, err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into client_state(key, value, updated_at) values ($1, $2, now())
		 on conflict (key) do update
		 set value = excluded.value,
		     updated_at = now()`,
		key, value,
	)
	if err != nil {
		return wrapErr("write", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `delete from client_state where key = $1`, key); err != nil {
		return wrapErr("delete", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func wrapErr(op, key string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%s %q: postgres %s (%s): %w", op, key, pqErr.Code.Name(), pqErr.Code, err)
	}
	return fmt.Errorf("%s %q: %w", op, key, err)
}
