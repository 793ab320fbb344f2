package hamt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"golang.org/x/sync/errgroup"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

// Record is one (key, value) pair read off a RecordSource.
type Record struct {
	Key   []byte
	Value cid.Cid
}

// RecordSource yields records in arbitrary order until exhausted, at
// which point Next returns io.EOF. Implementations need not be safe for
// concurrent use; BuildSharded gives each worker its own source.
type RecordSource interface {
	Next() (Record, error)
}

// ShardSourceFunc builds the RecordSource a single shard worker should
// read from, given the shard's top-level slot index (in [0, Fanout)).
// Callers are expected to filter or seek an underlying data set down to
// just the records whose digest selects that slot, mirroring the
// sled-prefix-range scan the reference parallel builder performs per
// worker.
type ShardSourceFunc func(shard int) (RecordSource, error)

// BuildSharded runs the shard-and-stitch protocol: one independent tree
// per top-level slot, built concurrently, each collapsed
// with CollapsePartial, then combined with StitchSubtrees into one root.
// This is the Go analogue of the reference implementation's
// rayon::par_iter over shard prefixes.
func BuildSharded(ctx context.Context, opts Options, sink blockstore.Sink, newSource ShardSourceFunc) (cid.Cid, error) {
	if err := opts.Validate(); err != nil {
		return cid.Undef, err
	}

	fanout := opts.Fanout()
	shardCIDs := make([]cid.Cid, fanout)

	g, gctx := errgroup.WithContext(ctx)
	for shard := 0; shard < fanout; shard++ {
		shard := shard
		g.Go(func() error {
			src, err := newSource(shard)
			if err != nil {
				return fmt.Errorf("hamt: shard %d: building source: %w", shard, err)
			}

			t, err := New(opts)
			if err != nil {
				return err
			}

			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec, err := src.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("hamt: shard %d: reading record: %w", shard, err)
				}
				if err := t.Set(rec.Key, rec.Value); err != nil {
					return fmt.Errorf("hamt: shard %d: %w", shard, err)
				}
			}

			c, err := t.CollapsePartial(gctx, sink)
			if err != nil {
				return fmt.Errorf("hamt: shard %d: %w", shard, err)
			}
			shardCIDs[shard] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return cid.Undef, err
	}

	return StitchSubtrees(ctx, sink, opts, shardCIDs)
}
