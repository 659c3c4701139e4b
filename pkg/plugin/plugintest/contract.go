// Package plugintest provides shared contract tests for implementations of
// the plugin SDK interfaces. Call them from the implementing package's
// tests:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestStoreContract(t, func(t *testing.T) plugin.Store { return openStore(t) })
//	}
package plugintest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/streamwatch/pkg/plugin"
)

// TestStoreContract checks transaction and migration behavior. factory
// must return a fresh, empty store; the caller owns closing it.
func TestStoreContract(t *testing.T, factory func(t *testing.T) plugin.Store) {
	t.Helper()
	ctx := context.Background()

	migrations := []plugin.Migration{
		{Version: 1, Description: "create items", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
			return err
		}},
	}

	t.Run("Migrate_is_idempotent", func(t *testing.T) {
		s := factory(t)
		for i := 0; i < 2; i++ {
			if err := s.Migrate(ctx, "contract", migrations); err != nil {
				t.Fatalf("Migrate() pass %d error = %v", i+1, err)
			}
		}
	})

	t.Run("Migrate_owners_are_independent", func(t *testing.T) {
		s := factory(t)
		if err := s.Migrate(ctx, "a", migrations); err != nil {
			t.Fatalf("Migrate(a) error = %v", err)
		}
		other := []plugin.Migration{{Version: 1, Description: "create other", Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE TABLE other (id INTEGER PRIMARY KEY)`)
			return err
		}}}
		if err := s.Migrate(ctx, "b", other); err != nil {
			t.Fatalf("Migrate(b) error = %v", err)
		}
		if _, err := s.DB().Exec(`INSERT INTO other (id) VALUES (1)`); err != nil {
			t.Errorf("owner b migration not applied: %v", err)
		}
	})

	t.Run("Tx_commits", func(t *testing.T) {
		s := factory(t)
		if err := s.Migrate(ctx, "contract", migrations); err != nil {
			t.Fatal(err)
		}
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			_, err := tx.Exec(`INSERT INTO items (name) VALUES ('kept')`)
			return err
		})
		if err != nil {
			t.Fatalf("Tx() error = %v", err)
		}
		if n := countItems(t, s); n != 1 {
			t.Errorf("rows = %d, want 1", n)
		}
	})

	t.Run("Tx_rolls_back_on_error", func(t *testing.T) {
		s := factory(t)
		if err := s.Migrate(ctx, "contract", migrations); err != nil {
			t.Fatal(err)
		}
		boom := errors.New("boom")
		err := s.Tx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.Exec(`INSERT INTO items (name) VALUES ('dropped')`); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Tx() error = %v, want %v", err, boom)
		}
		if n := countItems(t, s); n != 0 {
			t.Errorf("rows = %d after rollback, want 0", n)
		}
	})
}

func countItems(t *testing.T, s plugin.Store) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		t.Fatalf("count items: %v", err)
	}
	return n
}

// TestEventBusContract checks delivery and unsubscribe semantics. wait
// must block until asynchronously published events have been handled.
func TestEventBusContract(t *testing.T, factory func() plugin.EventBus, wait func(plugin.EventBus)) {
	t.Helper()
	ctx := context.Background()

	t.Run("Publish_reaches_topic_subscribers_only", func(t *testing.T) {
		bus := factory()
		var got []string
		bus.Subscribe("a", func(_ context.Context, e plugin.Event) { got = append(got, "a:"+e.Source) })
		bus.Subscribe("b", func(_ context.Context, e plugin.Event) { got = append(got, "b:"+e.Source) })

		if err := bus.Publish(ctx, plugin.Event{Topic: "a", Source: "x", Timestamp: time.Now()}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if len(got) != 1 || got[0] != "a:x" {
			t.Errorf("delivered = %v, want [a:x]", got)
		}
	})

	t.Run("Unsubscribe_stops_delivery", func(t *testing.T) {
		bus := factory()
		calls := 0
		unsub := bus.Subscribe("a", func(context.Context, plugin.Event) { calls++ })
		unsub()
		_ = bus.Publish(ctx, plugin.Event{Topic: "a"})
		if calls != 0 {
			t.Errorf("calls = %d after unsubscribe, want 0", calls)
		}
	})

	t.Run("PublishAsync_delivers_every_handler", func(t *testing.T) {
		bus := factory()
		var (
			mu    sync.Mutex
			calls int
		)
		for i := 0; i < 3; i++ {
			bus.Subscribe("a", func(context.Context, plugin.Event) {
				mu.Lock()
				calls++
				mu.Unlock()
			})
		}
		bus.PublishAsync(ctx, plugin.Event{Topic: "a"})
		wait(bus)

		mu.Lock()
		defer mu.Unlock()
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})
}
