package redcache

import (
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/redcache/redcache/internal/shared/logger"
	"github.com/redcache/redcache/internal/utils/metrics"
)

// ManagerConfig contains manager-wide defaults applied to every cache
// it creates.
type ManagerConfig struct {
	// DefaultTTL applies to caches without an entry in TTLs. Zero
	// disables expiration.
	DefaultTTL time.Duration

	// TTLs overrides DefaultTTL per cache name.
	TTLs map[string]time.Duration

	// UsePrefix derives a "<name>:" key prefix for each cache so caches
	// sharing one database stay isolated.
	UsePrefix bool

	// KeyCodec and ValueCodec default to StringCodec and JSONCodec.
	KeyCodec   Codec
	ValueCodec Codec

	PageSize int64
	LockWait time.Duration

	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// DefaultManagerConfig returns the default manager configuration.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		UsePrefix:  true,
		KeyCodec:   StringCodec{},
		ValueCodec: JSONCodec{},
	}
}

// Manager creates and tracks named caches over one shared client.
// Cache returns the same instance for the same name for the manager's
// lifetime.
type Manager struct {
	mu     sync.RWMutex
	caches map[string]*Cache

	client redis.UniversalClient
	cfg    *ManagerConfig
}

// NewManager creates a cache manager.
func NewManager(client redis.UniversalClient, cfg *ManagerConfig) *Manager {
	if cfg == nil {
		cfg = DefaultManagerConfig()
	}
	return &Manager{
		caches: make(map[string]*Cache),
		client: client,
		cfg:    cfg,
	}
}

// Cache returns the cache with the given name, creating it on first
// use with the manager's defaults.
func (m *Manager) Cache(name string) (*Cache, error) {
	m.mu.RLock()
	c, ok := m.caches[name]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[name]; ok {
		return c, nil
	}

	c, err := New(m.client, m.cacheConfig(name))
	if err != nil {
		return nil, err
	}
	m.caches[name] = c
	return c, nil
}

// CacheNames returns the names of all caches created so far, sorted.
func (m *Manager) CacheNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) cacheConfig(name string) *CacheConfig {
	ttl := m.cfg.DefaultTTL
	if override, ok := m.cfg.TTLs[name]; ok {
		ttl = override
	}

	var prefix []byte
	if m.cfg.UsePrefix {
		prefix = []byte(name + ":")
	}

	return &CacheConfig{
		Name:       name,
		Prefix:     prefix,
		TTL:        ttl,
		KeyCodec:   m.cfg.KeyCodec,
		ValueCodec: m.cfg.ValueCodec,
		PageSize:   m.cfg.PageSize,
		LockWait:   m.cfg.LockWait,
		Logger:     m.cfg.Logger,
		Metrics:    m.cfg.Metrics,
	}
}
