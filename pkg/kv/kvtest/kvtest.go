// Package kvtest holds a behavioural test suite shared by every [kv.Store]
// implementation.
package kvtest

import (
	"context"
	"testing"

	"github.com/MrWong99/aura/pkg/kv"
)

// Run exercises the [kv.Store] contract against stores produced by newStore.
// Each subtest receives a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(ctx, "absent")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok || v != "" {
			t.Fatalf("want (\"\", false), got (%q, %v)", v, ok)
		}
	})

	t.Run("set then get", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "k", "v1"); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := s.Set(ctx, "k", "v2"); err != nil {
			t.Fatalf("Set overwrite: %v", err)
		}
		v, ok, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok || v != "v2" {
			t.Fatalf("want (\"v2\", true), got (%q, %v)", v, ok)
		}
	})

	t.Run("empty value is present", func(t *testing.T) {
		s := newStore(t)
		if err := s.Set(ctx, "k", ""); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, ok, _ := s.Get(ctx, "k"); !ok {
			t.Fatal("want empty value reported as present")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"a", "b", "c"} {
			if err := s.Set(ctx, k, k); err != nil {
				t.Fatalf("Set %s: %v", k, err)
			}
		}
		if err := s.Delete(ctx, "a", "b", "never-set"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		for k, want := range map[string]bool{"a": false, "b": false, "c": true} {
			if _, ok, _ := s.Get(ctx, k); ok != want {
				t.Errorf("key %s: want present=%v, got %v", k, want, ok)
			}
		}
		if err := s.Delete(ctx); err != nil {
			t.Fatalf("Delete with no keys: %v", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Fatalf("Ping: %v", err)
		}
	})
}
