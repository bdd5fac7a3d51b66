package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS olm_pickles (
	kind       TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	pickle     TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, name)
)`

// PostgresStore keeps pickles in the olm_pickles table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ PickleStore = (*PostgresStore)(nil)

// NewPostgresStore ensures the table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create olm_pickles: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) SavePickle(ctx context.Context, kind Kind, name, pickle string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO olm_pickles (kind, name, pickle, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, name) DO UPDATE SET pickle = EXCLUDED.pickle, updated_at = NOW()`,
		string(kind), name, pickle)
	if err != nil {
		return fmt.Errorf("save pickle: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadPickle(ctx context.Context, kind Kind, name string) (Record, error) {
	if err := validate(kind, name); err != nil {
		return Record{}, err
	}
	rec := Record{Kind: kind, Name: name}
	err := s.pool.QueryRow(ctx,
		`SELECT pickle, updated_at FROM olm_pickles WHERE kind = $1 AND name = $2`,
		string(kind), name).Scan(&rec.Pickle, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load pickle: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) DeletePickle(ctx context.Context, kind Kind, name string) error {
	if err := validate(kind, name); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM olm_pickles WHERE kind = $1 AND name = $2`, string(kind), name)
	if err != nil {
		return fmt.Errorf("delete pickle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPickles(ctx context.Context, kind Kind) ([]string, error) {
	if err := validate(kind, ""); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT name FROM olm_pickles WHERE kind = $1 ORDER BY name`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list pickles: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list pickles: %w", err)
	}
	return names, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
