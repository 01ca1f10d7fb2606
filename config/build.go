package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	gen "github.com/unkn0wn-root/querycache/genstore"
	pr "github.com/unkn0wn-root/querycache/provider"
	"github.com/unkn0wn-root/querycache/provider/bigcache"
	rprov "github.com/unkn0wn-root/querycache/provider/redis"
	"github.com/unkn0wn-root/querycache/provider/ristretto"
)

const pingTimeout = 5 * time.Second

// Stack is what a Config builds. Close releases the provider, the
// generation store and the Redis client in that order.
type Stack struct {
	Provider pr.Provider
	GenStore gen.GenStore
	Redis    goredis.UniversalClient // nil unless a redis backend is configured
	Client   querycache.ClientOptions

	cfg *Config
}

// Build connects the configured backends. Session, Navigator, Logger and
// Hooks are left for the caller to fill into Stack.Client.
func (c *Config) Build(ctx context.Context) (*Stack, error) {
	s := &Stack{cfg: c}

	if c.Provider.Type == ProviderRedis || c.GenStore.Type == GenStoreRedis {
		rdb, err := dialRedis(ctx, c.Redis)
		if err != nil {
			return nil, err
		}
		s.Redis = rdb
	}

	p, err := c.buildProvider(s.Redis)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	s.Provider = p

	switch c.GenStore.Type {
	case GenStoreRedis:
		s.GenStore = gen.NewRedisGenStore(s.Redis, gen.RedisOptions{Namespace: c.Namespace, TTL: c.GenStore.TTL})
	default:
		s.GenStore = gen.NewLocalGenStore(c.GenStore.CleanupInterval, c.GenStore.Retention)
	}

	s.Client = querycache.ClientOptions{
		Classifier: querycache.DefaultClassifier{NoHeuristics: c.Classifier.NoHeuristics},
		Policy: querycache.RetryPolicy{
			MaxQueryRetries:    c.Retries.Query,
			MaxMutationRetries: c.Retries.Mutation,
		},
		Backoff: querycache.Backoff{
			Base:          c.Backoff.Base,
			Cap:           c.Backoff.Cap,
			JitterPercent: c.Backoff.JitterPercent,
			Disabled:      c.Backoff.Disabled,
		},
		LoginPath: c.LoginPath,
	}
	return s, nil
}

func (c *Config) buildProvider(rdb goredis.UniversalClient) (pr.Provider, error) {
	switch c.Provider.Type {
	case ProviderBigCache:
		bcfg := c.Provider.BigCache
		life := bcfg.LifeWindow
		if life == 0 {
			life = c.Retention
		}
		return bigcache.New(bigcache.Config{
			LifeWindow:         life,
			CleanWindow:        bcfg.CleanWindow,
			MaxEntriesInWindow: bcfg.MaxEntriesInWindow,
			MaxEntrySize:       bcfg.MaxEntrySize,
			HardMaxCacheSizeMB: bcfg.HardMaxCacheSizeMB,
		})
	case ProviderRedis:
		return rprov.New(rprov.Config{Client: rdb})
	default:
		rcfg := ristretto.DefaultConfig
		if r := c.Provider.Ristretto; r.NumCounters > 0 {
			rcfg = ristretto.Config(r)
		}
		return ristretto.New(rcfg)
	}
}

func dialRedis(ctx context.Context, rc RedisConfig) (goredis.UniversalClient, error) {
	opts, err := goredis.ParseURL(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if rc.Password != "" {
		opts.Password = rc.Password
	}
	rdb := goredis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// CacheOptions fills querycache.Options from the file and the built stack.
// Caches built this way share the stack's backends; close the Stack to
// release them.
func CacheOptions[V any](s *Stack, ns string, cd codec.Codec[V]) querycache.Options[V] {
	if ns == "" {
		ns = s.cfg.Namespace
	}
	return querycache.Options[V]{
		Namespace:      ns,
		Provider:       s.Provider,
		Codec:          cd,
		StaleAfter:     s.cfg.StaleAfter,
		Retention:      s.cfg.Retention,
		GenStore:       s.GenStore,
		SharedProvider: true,
	}
}

func (s *Stack) Close(ctx context.Context) error {
	var errs []error
	if s.Provider != nil {
		errs = append(errs, s.Provider.Close(ctx))
	}
	if s.GenStore != nil {
		errs = append(errs, s.GenStore.Close(ctx))
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
