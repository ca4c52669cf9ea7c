package redcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockCoordinator implements the two concurrency aids around the
// cache's lock key. The spin-wait guard is advisory: it delays reads
// and writes while a clear is believed to be running but acquires
// nothing, so an operation that passed the check can still race a
// clear that starts afterwards. The exclusive marker is a plain
// sentinel key with no owner identity and no lease.
type lockCoordinator struct {
	client  redis.UniversalClient
	lockKey string
	backoff time.Duration
}

// awaitUnlocked polls the lock key until it is absent, sleeping the
// configured backoff between polls. The reported bool says whether a
// lock was observed at least once and is diagnostic only. The poll has
// no bound of its own; cancelling the context is the caller's timeout.
func (lc *lockCoordinator) awaitUnlocked(ctx context.Context) (bool, error) {
	observed := false
	for {
		n, err := lc.client.Exists(ctx, lc.lockKey).Result()
		if err != nil {
			return observed, err
		}
		if n == 0 {
			return observed, nil
		}
		observed = true

		timer := time.NewTimer(lc.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return observed, ctx.Err()
		case <-timer.C:
		}
	}
}

// tryEnterExclusive claims the marker with a single SET NX, so two
// concurrent clears cannot both observe "absent" and proceed. Returns
// false when another clear already holds the marker.
func (lc *lockCoordinator) tryEnterExclusive(ctx context.Context) (bool, error) {
	return lc.client.SetNX(ctx, lc.lockKey, "1", 0).Result()
}

// exit drops the marker unconditionally. Callers defer it so the
// marker is released on every path out of a clear, including failures
// mid-drain. A transport failure during the delete itself can leave
// the marker orphaned; there is no lease to expire it.
func (lc *lockCoordinator) exit(ctx context.Context) error {
	return lc.client.Del(ctx, lc.lockKey).Err()
}
