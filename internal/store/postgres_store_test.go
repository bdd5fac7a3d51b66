package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"olmkit/internal/store"
)

func TestPostgresStore_Contract(t *testing.T) {
	url := os.Getenv("OLMKIT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OLMKIT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s, err := store.NewPostgresStore(ctx, pool)
	if err != nil {
		t.Fatalf("new postgres store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := pool.Exec(ctx, `DELETE FROM olm_pickles`); err != nil {
		t.Fatalf("reset table: %v", err)
	}
	exercise(t, s)
}
