package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/migrate"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Set GOSESSION_TEST_POSTGRES_DSN to run the suite against a real database.
func newPostgresStoreTest(t *testing.T, opts Options) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("GOSESSION_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GOSESSION_TEST_POSTGRES_DSN not set")
	}
	if err := migrate.Run(dsn, migrate.Up); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)
	return NewPostgresStore(pool, opts)
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, opts Options) Store {
		return newPostgresStoreTest(t, opts)
	})
}

func TestPostgresStorePurgeExpired(t *testing.T) {
	s := newPostgresStoreTest(t, Options{Lifetime: time.Hour})
	rec, _ := mustCreate(t, s, subject(), t0.Add(-48*time.Hour))

	if _, err := s.PurgeExpired(context.Background(), t0); err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if _, err := s.Get(context.Background(), rec.SessionID); err == nil {
		t.Fatal("expected purged record to be gone")
	}
}
