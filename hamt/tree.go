package hamt

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

// Tree is a single, in-memory HAMT under construction: a root node plus
// the parameters fixed at creation.
type Tree struct {
	Options Options
	root    *Node
	sealed  bool
}

// New allocates an empty tree under opts.
func New(opts Options) (*Tree, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Tree{Options: opts, root: NewNode(opts.BitWidth)}, nil
}

// Set inserts or overwrites a (key, value) pair.
func (t *Tree) Set(key []byte, value cid.Cid) error {
	if t.sealed {
		return fmt.Errorf("hamt: %w", ErrSealed)
	}
	digest := Digest(key)
	return t.root.Set(key, value, digest, 0, t.Options)
}

// Get resolves key against the live, uncollapsed tree.
func (t *Tree) Get(key []byte) (cid.Cid, bool, error) {
	digest := Digest(key)
	return t.root.Get(key, digest, 0, t.Options.BitWidth)
}

// Collapse serializes the whole tree, writes every block to sink, and
// returns the root block's CID. This is the entry point for a tree built
// single-threaded, start to finish.
func (t *Tree) Collapse(ctx context.Context, sink blockstore.Sink) (cid.Cid, error) {
	for i, e := range t.root.data {
		child, ok := e.(*childNode)
		if !ok {
			continue
		}
		c, err := child.node.Collapse(ctx, sink)
		if err != nil {
			return cid.Undef, err
		}
		t.root.data[i] = &sealedChild{cid: c}
	}

	blk, err := encodeRootBlock(t.root, t.Options)
	if err != nil {
		return cid.Undef, err
	}
	c, err := sumCID(blk)
	if err != nil {
		return cid.Undef, err
	}
	if err := sink.Put(ctx, c, blk); err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrSinkIO, err)
	}
	t.sealed = true
	return c, nil
}

// CollapsePartial serializes a tree built as one shard of a
// shard-and-stitch build. A shard's top-level node must have at most one
// occupied slot: everything else is routed there by construction, since
// a shard owns exactly one top-level slot's worth of keyspace. An empty
// shard (no records landed on it) collapses an empty child node so
// StitchSubtrees still gets a node-shaped CID for every slot. The single
// child is collapsed and written like any other node; its own CID is
// returned to the coordinator for StitchSubtrees.
func (t *Tree) CollapsePartial(ctx context.Context, sink blockstore.Sink) (cid.Cid, error) {
	if t.root.occupiedCount() > 1 {
		return cid.Undef, fmt.Errorf("%w: shard root has %d occupied slots, want 0 or 1", ErrShardShape, t.root.occupiedCount())
	}

	if t.root.occupiedCount() == 0 {
		c, err := NewNode(t.Options.BitWidth).Collapse(ctx, sink)
		if err != nil {
			return cid.Undef, err
		}
		t.sealed = true
		return c, nil
	}

	switch e := t.root.data[0].(type) {
	case *childNode:
		c, err := e.node.Collapse(ctx, sink)
		if err != nil {
			return cid.Undef, err
		}
		t.sealed = true
		return c, nil

	case *bucket:
		// A shard whose slot never grew past BucketSize stays a bucket
		// rather than splitting on its own; StitchSubtrees still needs a
		// node-shaped CID for every slot, so force the split here
		// regardless of size. canDescend(0, ...) is true for every
		// supported bit width, so this can't recurse into a
		// collision sink.
		child := NewNode(t.Options.BitWidth)
		for _, entry := range e.entries {
			digest := Digest(entry.Key)
			if err := child.Set(entry.Key, entry.Value, digest, 1, t.Options); err != nil {
				return cid.Undef, err
			}
		}
		c, err := child.Collapse(ctx, sink)
		if err != nil {
			return cid.Undef, err
		}
		t.sealed = true
		return c, nil

	default:
		return cid.Undef, fmt.Errorf("%w: shard's occupied slot is not node- or bucket-shaped", ErrShardShape)
	}
}

// StitchSubtrees combines exactly Fanout shard CIDs, one per top-level
// slot in slot order, into a single root block. Every slot in the
// resulting root is occupied, since shard-and-stitch partitions the
// full keyspace.
func StitchSubtrees(ctx context.Context, sink blockstore.Sink, opts Options, shardCIDs []cid.Cid) (cid.Cid, error) {
	if err := opts.Validate(); err != nil {
		return cid.Undef, err
	}
	if len(shardCIDs) != opts.Fanout() {
		return cid.Undef, fmt.Errorf("%w: got %d shards, want %d", ErrStitchArity, len(shardCIDs), opts.Fanout())
	}

	root := NewNode(opts.BitWidth)
	root.bitmap = make([]byte, len(root.bitmap))
	for i := range root.bitmap {
		root.bitmap[i] = 0xff
	}
	// Trim the bitmap's trailing padding bits, if Fanout isn't a
	// multiple of 8, back down to exactly Fanout set bits. With
	// least-significant-bit-first packing the valid bits of the last
	// byte are the low ones, so the padding to clear is the high ones.
	if rem := opts.Fanout() % 8; rem != 0 {
		mask := byte(1<<uint(rem)) - 1
		root.bitmap[len(root.bitmap)-1] &= mask
	}
	root.data = make([]element, opts.Fanout())
	for i, c := range shardCIDs {
		root.data[i] = &sealedChild{cid: c}
	}

	blk, err := encodeRootBlock(root, opts)
	if err != nil {
		return cid.Undef, err
	}
	rootCID, err := sumCID(blk)
	if err != nil {
		return cid.Undef, err
	}
	if err := sink.Put(ctx, rootCID, blk); err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrSinkIO, err)
	}
	return rootCID, nil
}
