// Package config loads querycache settings from YAML and assembles the
// provider, generation store and client options they describe.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unkn0wn-root/querycache"
)

// Config is the top-level file layout.
type Config struct {
	Namespace  string         `yaml:"namespace"`
	StaleAfter time.Duration  `yaml:"stale_after"`
	Retention  time.Duration  `yaml:"retention"`
	LoginPath  string         `yaml:"login_path"`
	Retries    RetriesConfig  `yaml:"retries"`
	Backoff    BackoffConfig  `yaml:"backoff"`
	Classifier ClassifyConfig `yaml:"classifier"`
	Provider   ProviderConfig `yaml:"provider"`
	GenStore   GenStoreConfig `yaml:"genstore"`
	Redis      RedisConfig    `yaml:"redis"`
	Logging    LoggingConfig  `yaml:"logging"`
	Probe      ProbeConfig    `yaml:"probe"`
}

// RetriesConfig holds retry budgets. 0 keeps the default, negative disables.
type RetriesConfig struct {
	Query    int `yaml:"query"`
	Mutation int `yaml:"mutation"`
}

type BackoffConfig struct {
	Base          time.Duration `yaml:"base"`
	Cap           time.Duration `yaml:"cap"`
	JitterPercent uint64        `yaml:"jitter_percent"`
	Disabled      bool          `yaml:"disabled"`
}

type ClassifyConfig struct {
	NoHeuristics bool `yaml:"no_heuristics"` // ignore "401"/"authentication" in messages
}

// ProviderConfig selects the record store.
type ProviderConfig struct {
	Type      string          `yaml:"type"` // ristretto (default), bigcache, redis
	Ristretto RistrettoConfig `yaml:"ristretto"`
	BigCache  BigCacheConfig  `yaml:"bigcache"`
}

type RistrettoConfig struct {
	NumCounters int64 `yaml:"num_counters"`
	MaxCost     int64 `yaml:"max_cost"`
	BufferItems int64 `yaml:"buffer_items"`
	Metrics     bool  `yaml:"metrics"`
}

type BigCacheConfig struct {
	LifeWindow         time.Duration `yaml:"life_window"`  // 0 => retention
	CleanWindow        time.Duration `yaml:"clean_window"` // 0 => bigcache default
	MaxEntriesInWindow int           `yaml:"max_entries_in_window"`
	MaxEntrySize       int           `yaml:"max_entry_size"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb"`
}

// GenStoreConfig selects where generations live.
type GenStoreConfig struct {
	Type            string        `yaml:"type"`             // local (default), redis
	TTL             time.Duration `yaml:"ttl"`              // redis only; 0 => keys never expire
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // local only
	Retention       time.Duration `yaml:"retention"`        // local only
}

// RedisConfig is shared by the redis provider and generation store.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ProbeConfig holds qcprobe flag defaults. The command reads this section
// straight from the file; command-line flags override it.
type ProbeConfig struct {
	URL    string `yaml:"url"`
	Path   string `yaml:"path"`
	N      int    `yaml:"n"`
	Rounds int    `yaml:"rounds"`
}

const (
	ProviderRistretto = "ristretto"
	ProviderBigCache  = "bigcache"
	ProviderRedis     = "redis"

	GenStoreLocal = "local"
	GenStoreRedis = "redis"
)

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.StaleAfter == 0 {
		c.StaleAfter = querycache.DefaultStaleAfter
	}
	if c.Retention == 0 {
		c.Retention = querycache.DefaultRetention
	}
	if c.LoginPath == "" {
		c.LoginPath = querycache.DefaultLoginPath
	}
	if c.Provider.Type == "" {
		c.Provider.Type = ProviderRistretto
	}
	if c.GenStore.Type == "" {
		c.GenStore.Type = GenStoreLocal
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate reports the first setting that cannot be built.
func (c *Config) Validate() error {
	if c.StaleAfter < 0 || c.Retention < 0 {
		return fmt.Errorf("stale_after and retention must not be negative")
	}
	switch c.Provider.Type {
	case ProviderRistretto, ProviderBigCache:
	case ProviderRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("provider %q needs redis.url", c.Provider.Type)
		}
	default:
		return fmt.Errorf("unknown provider type %q", c.Provider.Type)
	}
	switch c.GenStore.Type {
	case GenStoreLocal:
	case GenStoreRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("genstore %q needs redis.url", c.GenStore.Type)
		}
	default:
		return fmt.Errorf("unknown genstore type %q", c.GenStore.Type)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", l.Level)
	}
}
