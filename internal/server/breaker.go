package server

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/redcache/redcache"
)

// breakerSet holds one circuit breaker per cache so a Redis outage on a
// hot cache stops hammering the store. Breakers live only in this
// facade; the engine itself never retries or short-circuits.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func newBreakerSet() *breakerSet {
	return &breakerSet{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the breaker for the named cache.
func (b *breakerSet) Execute(cache string, fn func() (any, error)) (any, error) {
	return b.getOrCreate(cache).Execute(fn)
}

func (b *breakerSet) getOrCreate(cache string) *gobreaker.CircuitBreaker[any] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if breaker, ok := b.breakers[cache]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        cache,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Serialization failures are client errors, not store health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redcache.ErrSerialization)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	b.breakers[cache] = breaker

	return breaker
}
