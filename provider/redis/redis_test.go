package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/querycache/provider/providertest"
)

// Set QUERYCACHE_REDIS_ADDR (e.g. localhost:6379) to run against a live server.
func liveClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("QUERYCACHE_REDIS_ADDR")
	if addr == "" {
		t.Skip("QUERYCACHE_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return rdb
}

func TestProviderContract(t *testing.T) {
	p, err := New(Config{Client: liveClient(t), CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	providertest.Run(t, p)
}

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); err != ErrNilClient {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestPurgeNamespace(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{Client: liveClient(t), CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = p.Close(ctx) })

	for _, k := range []string{"q:purge-a:1", "q:purge-a:2", "q:purge-b:1"} {
		if _, err := p.Set(ctx, k, []byte("v"), 1, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}
	n, err := p.Purge(ctx, "purge-a")
	if err != nil || n != 2 {
		t.Fatalf("Purge = %d, %v; want 2", n, err)
	}
	if _, ok, _ := p.Get(ctx, "q:purge-a:1"); ok {
		t.Fatal("purged key still present")
	}
	if _, ok, _ := p.Get(ctx, "q:purge-b:1"); !ok {
		t.Fatal("other namespace must survive")
	}
	_ = p.Del(ctx, "q:purge-b:1")
}
