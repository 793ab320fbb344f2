package hamt

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"
	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

// BucketEntry is one (key, value-CID) pair held inline in a bucket.
// Entries within a bucket are kept sorted ascending by Key.
type BucketEntry struct {
	Key   []byte
	Value cid.Cid
}

// element is the sum type occupying a Node slot: either a live in-memory
// child (building), a sealed child (collapsed to a CID), or a bucket.
// Modeling these as distinct concrete types, rather than a single struct
// mutated in place, keeps the building/sealed states from aliasing each
// other.
type element interface {
	isElement()
}

// childNode is an occupied slot pointing at a live, mutable sub-node.
type childNode struct {
	node *Node
}

// sealedChild is an occupied slot that has been collapsed to its CID.
// Once a slot holds a sealedChild it can never be written again.
type sealedChild struct {
	cid cid.Cid
}

// bucket is an occupied slot holding inline (key, value) pairs.
type bucket struct {
	entries []BucketEntry
}

func (*childNode) isElement()  {}
func (*sealedChild) isElement() {}
func (*bucket) isElement()      {}

// Node is one level of the trie: a sparse array of 2^Width slots,
// represented as a bitmap plus a dense, slot-ordered element list.
type Node struct {
	width int
	bitmap []byte
	data   []element
}

// NewNode allocates an empty node for the given bit width.
func NewNode(width int) *Node {
	return &Node{width: width, bitmap: newBitmap(width), data: nil}
}

// Fanout returns 2^Width, this node's slot count.
func (n *Node) Fanout() int { return 1 << n.width }

func (n *Node) occupied(i int) bool { return bitSet(n.bitmap, i) }

func (n *Node) dataIndex(i int) int { return popcountBefore(n.bitmap, i) }

func (n *Node) insertElement(slotIdx int, e element) {
	di := n.dataIndex(slotIdx)
	setBit(n.bitmap, slotIdx)
	n.data = append(n.data, nil)
	copy(n.data[di+1:], n.data[di:])
	n.data[di] = e
}

// searchBucket returns the index of key in a sorted bucket, and whether
// it was found. On a miss, the index is where key would be inserted to
// keep the bucket sorted.
func searchBucket(entries []BucketEntry, key []byte) (int, bool) {
	i := sort.Search(len(entries), func(i int) bool {
		return bytes.Compare(entries[i].Key, key) >= 0
	})
	if i < len(entries) && bytes.Equal(entries[i].Key, key) {
		return i, true
	}
	return i, false
}

// Get resolves key to a value CID by descending from this node.
func (n *Node) Get(key []byte, digest [32]byte, depth int, width int) (cid.Cid, bool, error) {
	idx, err := SlotIndex(digest, depth, width)
	if err != nil {
		return cid.Undef, false, err
	}
	if idx >= n.Fanout() {
		return cid.Undef, false, fmt.Errorf("%w: slot %d >= fanout %d", ErrOutOfBounds, idx, n.Fanout())
	}
	if !n.occupied(idx) {
		return cid.Undef, false, nil
	}

	switch e := n.data[n.dataIndex(idx)].(type) {
	case *childNode:
		return e.node.Get(key, digest, depth+1, width)
	case *sealedChild:
		return cid.Undef, false, fmt.Errorf("hamt: %w: slot is sealed; use query.Walker against a block store instead", ErrSealed)
	case *bucket:
		if i, ok := searchBucket(e.entries, key); ok {
			return e.entries[i].Value, true, nil
		}
		return cid.Undef, false, nil
	default:
		return cid.Undef, false, fmt.Errorf("hamt: unknown element type %T", e)
	}
}

// Set inserts or overwrites (key, value) below this node. Overwrite-in-place
// on an existing key and last-write-wins on a repeated key make Set
// idempotent and order-insensitive on the final mapping, which is what
// guarantees root-CID order-independence once combined with canonical
// serialization.
func (n *Node) Set(key []byte, value cid.Cid, digest [32]byte, depth int, opts Options) error {
	idx, err := SlotIndex(digest, depth, opts.BitWidth)
	if err != nil {
		return err
	}
	if idx >= n.Fanout() {
		return fmt.Errorf("%w: slot %d >= fanout %d", ErrOutOfBounds, idx, n.Fanout())
	}

	if !n.occupied(idx) {
		n.insertElement(idx, &bucket{entries: []BucketEntry{{Key: key, Value: value}}})
		return nil
	}

	di := n.dataIndex(idx)
	switch e := n.data[di].(type) {
	case *childNode:
		return e.node.Set(key, value, digest, depth+1, opts)

	case *sealedChild:
		return fmt.Errorf("hamt: %w", ErrSealed)

	case *bucket:
		pos, found := searchBucket(e.entries, key)
		if found {
			e.entries[pos].Value = value
			return nil
		}

		if len(e.entries) < opts.BucketSize || !canDescend(depth, opts.BitWidth) {
			e.entries = append(e.entries, BucketEntry{})
			copy(e.entries[pos+1:], e.entries[pos:])
			e.entries[pos] = BucketEntry{Key: key, Value: value}
			return nil
		}

		// Bucket is full and splitting is still possible: allocate a
		// child, reinsert every existing entry under its own digest,
		// then insert the new pair.
		child := NewNode(opts.BitWidth)
		for _, entry := range e.entries {
			entryDigest := Digest(entry.Key)
			if err := child.Set(entry.Key, entry.Value, entryDigest, depth+1, opts); err != nil {
				return err
			}
		}
		if err := child.Set(key, value, digest, depth+1, opts); err != nil {
			return err
		}
		n.data[di] = &childNode{node: child}
		return nil

	default:
		return fmt.Errorf("hamt: unknown element type %T", e)
	}
}

// Collapse performs a post-order traversal: every live child is
// recursively collapsed to its CID, the node is serialized, the
// resulting block is written to sink, and the node's own CID is returned.
// Buckets are never collapsed on their own; they are serialized inline
// within their parent's block.
func (n *Node) Collapse(ctx context.Context, sink blockstore.Sink) (cid.Cid, error) {
	for i, e := range n.data {
		child, ok := e.(*childNode)
		if !ok {
			continue
		}
		c, err := child.node.Collapse(ctx, sink)
		if err != nil {
			return cid.Undef, err
		}
		n.data[i] = &sealedChild{cid: c}
	}

	blk, err := encodeNodeBlock(n)
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
	return c, nil
}

// occupiedCount returns how many top-level slots are occupied.
func (n *Node) occupiedCount() int {
	return popcountAll(n.bitmap, n.Fanout())
}
