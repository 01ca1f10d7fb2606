// Package providertest checks a provider.Provider against the contract the
// cache relies on.
package providertest

import (
	"bytes"
	"context"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/querycache/provider"
)

// Run exercises p. Keys are prefixed with t.Name() so a shared backend can be
// reused across tests.
func Run(t *testing.T, p pr.Provider) {
	t.Helper()
	ctx := context.Background()
	k := func(s string) string { return "q:test:" + t.Name() + ":" + s }

	t.Run("miss", func(t *testing.T) {
		if _, ok, err := p.Get(ctx, k("absent")); err != nil || ok {
			t.Fatalf("Get on absent key: ok=%v err=%v", ok, err)
		}
	})

	t.Run("set is visible to next get", func(t *testing.T) {
		want := []byte{0, 1, 2, 'x', 0xff}
		ok, err := p.Set(ctx, k("a"), want, 1, time.Minute)
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		if !ok {
			t.Skip("provider rejected write under pressure")
		}
		got, ok, err := p.Get(ctx, k("a"))
		if err != nil || !ok {
			t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("bytes changed: got %x want %x", got, want)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if _, err := p.Set(ctx, k("b"), []byte("old"), 1, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := p.Set(ctx, k("b"), []byte("new"), 1, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		got, ok, err := p.Get(ctx, k("b"))
		if err != nil || !ok || string(got) != "new" {
			t.Fatalf("Get after overwrite: ok=%v err=%v got=%q", ok, err, got)
		}
	})

	t.Run("del", func(t *testing.T) {
		if _, err := p.Set(ctx, k("c"), []byte("v"), 1, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := p.Del(ctx, k("c")); err != nil {
			t.Fatalf("Del: %v", err)
		}
		if _, ok, err := p.Get(ctx, k("c")); err != nil || ok {
			t.Fatalf("Get after Del: ok=%v err=%v", ok, err)
		}
		if err := p.Del(ctx, k("never-set")); err != nil {
			t.Fatalf("Del of absent key: %v", err)
		}
	})
}
