package redcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redcache/redcache/internal/shared/logger"
	"github.com/redcache/redcache/internal/utils/metrics"
)

const (
	// DefaultPageSize bounds how many indexed keys Clear fetches and
	// deletes per round trip.
	DefaultPageSize = 128

	// DefaultLockWait is the backoff between polls while waiting for an
	// in-progress clear to finish.
	DefaultLockWait = 300 * time.Millisecond
)

// CacheConfig contains cache configuration. All fields are fixed at
// construction; a Cache is never reconfigured at runtime.
type CacheConfig struct {
	// Name identifies the cache and must be non-empty. The key index
	// lives at "<name>~keys" and the clear marker at "<name>~lock".
	Name string

	// Prefix is prepended to every physical key. Distinct prefixes keep
	// caches sharing one Redis database from observing each other's
	// entries. Empty means no prefix.
	Prefix []byte

	// TTL expires entries after the given duration; zero disables
	// expiration. The index key receives the same TTL as housekeeping,
	// so under heavy churn the index can expire ahead of individual
	// value keys. Entries stay reachable by direct key regardless.
	TTL time.Duration

	// KeyCodec serializes logical keys. When nil, []byte keys pass
	// through unchanged with no prefix applied, and any other key type
	// is rejected.
	KeyCodec Codec

	// ValueCodec serializes values. When nil, []byte values pass
	// through unchanged and any other value type is rejected.
	ValueCodec Codec

	// PageSize overrides DefaultPageSize for Clear pagination.
	PageSize int64

	// LockWait overrides DefaultLockWait.
	LockWait time.Duration

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// Cache implements get/put/evict/clear semantics on top of primitive
// Redis operations. The store is the sole source of truth; nothing is
// cached in memory. A Cache is safe for concurrent use as long as the
// underlying client is.
type Cache struct {
	name    string
	client  redis.UniversalClient
	keys    keyCodec
	values  Codec
	index   *keyIndex
	lock    *lockCoordinator
	ttl     time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates a cache over the given client. The configured name must
// be non-empty.
func New(client redis.UniversalClient, cfg *CacheConfig) (*Cache, error) {
	if cfg == nil || cfg.Name == "" {
		return nil, errors.New("redcache: non-empty cache name is required")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	lockWait := cfg.LockWait
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	log := cfg.Logger
	if log == nil {
		log = logger.New(nil)
	}

	prefix := append([]byte(nil), cfg.Prefix...)

	return &Cache{
		name:   cfg.Name,
		client: client,
		keys:   keyCodec{codec: cfg.KeyCodec, prefix: prefix},
		values: cfg.ValueCodec,
		index: &keyIndex{
			setKey:   cfg.Name + "~keys",
			pageSize: pageSize,
		},
		lock: &lockCoordinator{
			client:  client,
			lockKey: cfg.Name + "~lock",
			backoff: lockWait,
		},
		ttl:     cfg.TTL,
		logger:  log.With("cache", cfg.Name),
		metrics: cfg.Metrics,
	}, nil
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the decoded value for the logical key, reporting whether
// it was present. It waits out any in-progress clear first and never
// touches the key index.
func (c *Cache) Get(ctx context.Context, key any) (any, bool, error) {
	start := time.Now()

	pk, err := c.keys.computeKey(key)
	if err != nil {
		return nil, false, err
	}

	if err := c.waitForClear(ctx); err != nil {
		return nil, false, err
	}

	data, err := c.client.Get(ctx, string(pk)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.observe("get", start)
			if c.metrics != nil {
				c.metrics.RecordCacheMiss(c.name)
			}
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", c.name, err)
	}

	value, err := c.decodeValue(data)
	if err != nil {
		return nil, false, err
	}

	c.observe("get", start)
	if c.metrics != nil {
		c.metrics.RecordCacheHit(c.name)
	}
	return value, true, nil
}

// Put stores the value under the logical key. The value write, the
// index update and the optional expirations commit as one MULTI/EXEC
// unit, so a failure mid-sequence leaves nothing visible.
func (c *Cache) Put(ctx context.Context, key, value any) error {
	start := time.Now()

	pk, err := c.keys.computeKey(key)
	if err != nil {
		return err
	}

	if err := c.waitForClear(ctx); err != nil {
		return err
	}

	data, err := c.encodeValue(value)
	if err != nil {
		return err
	}

	physical := string(pk)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, physical, data, 0)
		c.index.record(ctx, pipe, physical)
		if c.ttl > 0 {
			pipe.Expire(ctx, physical, c.ttl)
			// Housekeeping: keep the index from outliving its entries.
			pipe.Expire(ctx, c.index.setKey, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", c.name, err)
	}

	c.observe("put", start)
	return nil
}

// Evict removes the logical key. The value delete and the index update
// commit as one unit. Evicting an absent key is a no-op.
func (c *Cache) Evict(ctx context.Context, key any) error {
	start := time.Now()

	pk, err := c.keys.computeKey(key)
	if err != nil {
		return err
	}

	physical := string(pk)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, physical)
		c.index.forget(ctx, pipe, physical)
		return nil
	})
	if err != nil {
		return fmt.Errorf("evict %s: %w", c.name, err)
	}

	c.observe("evict", start)
	return nil
}

// Clear removes every entry belonging to this cache along with the key
// index. When another clear already holds the marker, Clear returns
// immediately as a successful no-op rather than queueing. The marker
// is released on every exit path.
func (c *Cache) Clear(ctx context.Context) (err error) {
	start := time.Now()

	held, err := c.lock.tryEnterExclusive(ctx)
	if err != nil {
		return fmt.Errorf("clear %s: acquire marker: %w", c.name, err)
	}
	if !held {
		// Another clear is on-going.
		c.logger.DebugContext(ctx, "clear already in progress")
		return nil
	}

	defer func() {
		if rerr := c.lock.exit(ctx); rerr != nil && err == nil {
			err = fmt.Errorf("clear %s: release marker: %w", c.name, rerr)
		}
	}()

	if err = c.index.drainAll(ctx, c.client); err != nil {
		return fmt.Errorf("clear %s: %w", c.name, err)
	}

	c.observe("clear", start)
	return nil
}

// waitForClear defers the calling operation while a clear holds the
// marker.
func (c *Cache) waitForClear(ctx context.Context) error {
	observed, err := c.lock.awaitUnlocked(ctx)
	if err != nil {
		return fmt.Errorf("%s: wait for clear: %w", c.name, err)
	}
	if observed {
		c.logger.DebugContext(ctx, "waited for in-progress clear")
		if c.metrics != nil {
			c.metrics.RecordCacheLockWait(c.name)
		}
	}
	return nil
}

func (c *Cache) encodeValue(value any) ([]byte, error) {
	if c.values == nil {
		b, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: no value codec configured for %T", ErrSerialization, value)
		}
		return b, nil
	}
	return c.values.Encode(value)
}

func (c *Cache) decodeValue(data []byte) (any, error) {
	if c.values == nil {
		return data, nil
	}
	return c.values.Decode(data)
}

func (c *Cache) observe(op string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordCacheOp(c.name, op, time.Since(start))
	}
}
