// Package blockstore defines the block sink and source contracts that the
// hamt, car, and query packages are built against, plus two concrete
// implementations.
package blockstore

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
)

// ErrNotFound is returned by Source.Get when no block exists for a CID.
var ErrNotFound = errors.New("blockstore: block not found")

// Sink accepts blocks produced during Collapse. Put must be safe to call
// concurrently and must treat writing the same (cid, block) pair twice as
// a no-op, since independent shard workers can produce the same block
// (every empty shard collapses to the same empty node block).
type Sink interface {
	Put(ctx context.Context, c cid.Cid, block []byte) error
}

// Source resolves a CID to its block, for query.Walker and CAR export.
type Source interface {
	Get(ctx context.Context, c cid.Cid) ([]byte, error)
}

// Iterator enumerates every (cid, block) pair a store holds, in
// unspecified order. Used by CAR export to stream a whole tree.
type Iterator interface {
	Iter(ctx context.Context, fn func(c cid.Cid, block []byte) error) error
}

// Store is the full contract a block store may satisfy: a sink, a
// source, and an iterator together.
type Store interface {
	Sink
	Source
	Iterator
}
