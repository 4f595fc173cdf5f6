package cache

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "memorial:list:"

// ListCache keeps serialized collection listings in memcached. Each
// collection has a generation counter; listings are stored under the
// generation they were read at and Invalidate bumps the counter, so an
// entry written by a slow reader after a write is never found again.
// A nil client turns every call into a miss.
type ListCache struct {
	mc  *memcache.Client
	ttl time.Duration
	now func() time.Time
}

func NewListCache(mc *memcache.Client, ttl time.Duration) *ListCache {
	return &ListCache{mc: mc, ttl: ttl, now: time.Now}
}

func generationKey(collection string) string {
	return keyPrefix + "gen:" + collection
}

func dataKey(collection string, gen uint64) string {
	return keyPrefix + collection + ":" + strconv.FormatUint(gen, 10)
}

// Generation returns the current generation of collection, starting one
// if memcached has none.
func (c *ListCache) Generation(ctx context.Context, collection string) (uint64, bool) {
	if c.mc == nil {
		return 0, false
	}

	for attempt := 0; attempt < 2; attempt++ {
		item, err := c.mc.Get(generationKey(collection))
		if err == nil {
			gen, err := strconv.ParseUint(string(item.Value), 10, 64)
			if err != nil {
				c.warn(ctx, "list cache generation is not a number", collection, err)
				return 0, false
			}
			return gen, true
		}
		if err != memcache.ErrCacheMiss {
			c.warn(ctx, "list cache generation get failed", collection, err)
			return 0, false
		}

		// evicted or never set: start above anything handed out before
		gen := uint64(c.now().UnixNano())
		err = c.mc.Add(&memcache.Item{
			Key:   generationKey(collection),
			Value: []byte(strconv.FormatUint(gen, 10)),
		})
		if err == nil {
			return gen, true
		}
		if err != memcache.ErrNotStored {
			c.warn(ctx, "list cache generation add failed", collection, err)
			return 0, false
		}
	}
	return 0, false
}

func (c *ListCache) Get(ctx context.Context, collection string, gen uint64) ([]byte, bool) {
	if c.mc == nil {
		return nil, false
	}
	item, err := c.mc.Get(dataKey(collection, gen))
	if err != nil {
		if err != memcache.ErrCacheMiss {
			c.warn(ctx, "list cache get failed", collection, err)
		}
		return nil, false
	}
	return item.Value, true
}

func (c *ListCache) Set(ctx context.Context, collection string, gen uint64, value []byte) {
	if c.mc == nil {
		return
	}
	err := c.mc.Set(&memcache.Item{
		Key:        dataKey(collection, gen),
		Value:      value,
		Expiration: int32(c.ttl / time.Second),
	})
	if err != nil {
		c.warn(ctx, "list cache set failed", collection, err)
	}
}

// Invalidate advances the generation of collection. Entries of earlier
// generations expire on their own.
func (c *ListCache) Invalidate(ctx context.Context, collection string) {
	if c.mc == nil {
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		_, err := c.mc.Increment(generationKey(collection), 1)
		if err == nil {
			return
		}
		if err != memcache.ErrCacheMiss {
			c.warn(ctx, "list cache invalidate failed", collection, err)
			return
		}

		err = c.mc.Add(&memcache.Item{
			Key:   generationKey(collection),
			Value: []byte(strconv.FormatUint(uint64(c.now().UnixNano()), 10)),
		})
		if err == nil {
			return
		}
		if err != memcache.ErrNotStored {
			c.warn(ctx, "list cache invalidate failed", collection, err)
			return
		}
		// someone else started a generation meanwhile; bump theirs
	}
}

func (c *ListCache) warn(ctx context.Context, msg, collection string, err error) {
	slog.WarnContext(
		ctx, msg,
		slog.String("collection", collection),
		slog.String("error", err.Error()),
		slog.String("module", "cache"),
	)
}
