// Package query implements remote, stateless-per-fetch descent: given a
// root CID and a key, fetch exactly the blocks on the path to that key,
// one at a time, over a blockstore.Source.
package query

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/hamt"
)

// Walker resolves keys against a tree it never holds in memory: every
// Get call fetches only the blocks it needs to visit, in order, and is
// safe to cancel between fetches via ctx.
type Walker struct {
	source blockstore.Source
}

// New returns a Walker reading blocks from source.
func New(source blockstore.Source) *Walker {
	return &Walker{source: source}
}

// Get resolves key starting from the tree rooted at root, fetching one
// block per trie level descended.
func (w *Walker) Get(ctx context.Context, root cid.Cid, key []byte) (cid.Cid, bool, error) {
	rootBlockBytes, err := w.source.Get(ctx, root)
	if err != nil {
		return cid.Undef, false, fmt.Errorf("query: fetching root block %s: %w", root, err)
	}
	rb, err := hamt.DecodeRootBlock(rootBlockBytes)
	if err != nil {
		return cid.Undef, false, err
	}

	digest := hamt.Digest(key)
	return w.descend(ctx, rb.Root, key, digest, 0, rb.Width)
}

// descend walks one decoded node, fetching a child block and recursing
// when the slot holds a link, or resolving immediately when it holds a
// bucket.
func (w *Walker) descend(ctx context.Context, node *hamt.DecodedNode, key []byte, digest [32]byte, depth, width int) (cid.Cid, bool, error) {
	if err := ctx.Err(); err != nil {
		return cid.Undef, false, err
	}

	idx, err := hamt.SlotIndex(digest, depth, width)
	if err != nil {
		return cid.Undef, false, err
	}
	if idx >= node.Fanout() {
		return cid.Undef, false, fmt.Errorf("%w: slot %d >= fanout %d", hamt.ErrOutOfBounds, idx, node.Fanout())
	}
	if !node.Occupied(idx) {
		return cid.Undef, false, nil
	}

	elem := node.Element(node.DataIndex(idx))
	if entries, ok := elem.Bucket(); ok {
		i := sort.Search(len(entries), func(i int) bool {
			return bytes.Compare(entries[i].Key, key) >= 0
		})
		if i < len(entries) && bytes.Equal(entries[i].Key, key) {
			return entries[i].Value, true, nil
		}
		return cid.Undef, false, nil
	}

	childCID, ok := elem.Child()
	if !ok {
		return cid.Undef, false, fmt.Errorf("%w: occupied slot is neither a link nor a bucket", hamt.ErrBadBlock)
	}

	childBlockBytes, err := w.source.Get(ctx, childCID)
	if err != nil {
		return cid.Undef, false, fmt.Errorf("query: fetching block %s: %w", childCID, err)
	}
	child, err := hamt.DecodeNodeBlock(childBlockBytes)
	if err != nil {
		return cid.Undef, false, err
	}
	return w.descend(ctx, child, key, digest, depth+1, width)
}
