package query

import (
	"context"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/ipfs/go-cid"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

// CachingSource wraps a blockstore.Source with an in-memory bigcache,
// so repeated Walker.Get calls against overlapping paths (shared
// ancestors near the root are refetched on almost every query) don't
// pay a remote round trip every time.
type CachingSource struct {
	upstream blockstore.Source
	cache    *bigcache.BigCache
}

// NewCachingSource wraps upstream with a cache that evicts entries after
// ttl. Blocks are content-addressed and therefore never go stale, so ttl
// exists only to bound memory, not for correctness.
func NewCachingSource(ctx context.Context, upstream blockstore.Source, ttl time.Duration) (*CachingSource, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 256
	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &CachingSource{upstream: upstream, cache: cache}, nil
}

func (s *CachingSource) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	key := c.KeyString()
	if block, err := s.cache.Get(key); err == nil {
		return block, nil
	}

	block, err := s.upstream.Get(ctx, c)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(key, block)
	return block, nil
}
