package memkv_test

import (
	"context"
	"testing"

	"github.com/MrWong99/aura/pkg/kv"
	"github.com/MrWong99/aura/pkg/kv/kvtest"
	"github.com/MrWong99/aura/pkg/kv/memkv"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store { return memkv.New() })
}

func TestStore_ZeroValue(t *testing.T) {
	t.Parallel()

	var s memkv.Store
	if err := s.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("Set on zero value: %v", err)
	}
	if got := s.Snapshot()["k"]; got != "v" {
		t.Fatalf("want v, got %q", got)
	}
}
