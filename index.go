package redcache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// keyIndex tracks every physical key a cache has inserted, in a single
// sorted set. All members sit at score 0: the set is a membership index
// with stable byte-order iteration, not a priority structure. It exists
// so Clear can enumerate the cache's keys without scanning the whole
// keyspace.
type keyIndex struct {
	setKey   string
	pageSize int64
}

// record queues a ZADD for the key on the given command surface, which
// may be a transaction pipeline so the caller can bundle it with the
// value write. Re-adding an existing member is a no-op.
func (ix *keyIndex) record(ctx context.Context, c redis.Cmdable, key string) {
	c.ZAdd(ctx, ix.setKey, redis.Z{Score: 0, Member: key})
}

// forget queues removal of the key from the index.
func (ix *keyIndex) forget(ctx context.Context, c redis.Cmdable, key string) {
	c.ZRem(ctx, ix.setKey, key)
}

// drainAll deletes every indexed key and then the index itself,
// fetching members in fixed-size rank pages so neither memory nor
// request size grows with the cache. Deleting the value keys does not
// touch the sorted set, so rank offsets stay valid while paging; the
// set is dropped in one DEL at the end. A page shorter than pageSize
// signals exhaustion.
//
// The loop is not atomic across pages. A failure partway through
// leaves a smaller index that a retry resumes from.
func (ix *keyIndex) drainAll(ctx context.Context, c redis.Cmdable) error {
	for page := int64(0); ; page++ {
		start := page * ix.pageSize
		stop := (page+1)*ix.pageSize - 1

		keys, err := c.ZRange(ctx, ix.setKey, start, stop).Result()
		if err != nil {
			return fmt.Errorf("range index page %d: %w", page, err)
		}

		if len(keys) > 0 {
			if err := c.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete index page %d: %w", page, err)
			}
		}

		if int64(len(keys)) < ix.pageSize {
			break
		}
	}

	if err := c.Del(ctx, ix.setKey).Err(); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	return nil
}
