// README: Postgres roster store tests, gated on DISPATCH_TEST_DSN.
package driver

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"relaxedrive/internal/types"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DISPATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("DISPATCH_TEST_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedDriver(t *testing.T, pool *pgxpool.Pool) types.ID {
	t.Helper()
	id := types.ID(fmt.Sprintf("drv%d", time.Now().UnixNano()))
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, name, role) VALUES ($1, 'Test Driver', 'driver')`, string(id))
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, string(id))
	})
	return id
}

func TestStoreNewDriverDefaultsToAvailable(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	id := seedDriver(t, pool)

	d, err := store.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !d.Available {
		t.Fatal("a freshly registered driver should be available")
	}
}

func TestStoreSetAvailableRoundTrip(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool)
	ctx := context.Background()

	id := seedDriver(t, pool)

	if err := store.SetAvailable(ctx, id, false); err != nil {
		t.Fatalf("set unavailable: %v", err)
	}
	d, err := store.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if d.Available {
		t.Fatal("expected driver to be unavailable")
	}

	if err := store.SetAvailable(ctx, "no-such-driver", true); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
