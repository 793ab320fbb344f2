package hamt

import "errors"

// Error kinds per the HAMT wire/algorithm contract. All are fatal to the
// operation that surfaced them; the core performs no internal retries.
var (
	// ErrOutOfBounds means a slot index exceeded a node's capacity, which
	// indicates corrupt digest math or a parameter mismatch.
	ErrOutOfBounds = errors.New("hamt: slot index out of bounds")

	// ErrBadDigest means a hash could not be sliced into a bit-width chunk
	// at the requested depth (wrong length, or depth exceeds the digest).
	ErrBadDigest = errors.New("hamt: digest slice out of range")

	// ErrBadBlock means a fetched/decoded block violated the expected
	// shape: wrong CBOR tag, wrong array arity, or a popcount/data-length
	// mismatch.
	ErrBadBlock = errors.New("hamt: malformed block")

	// ErrShardShape means CollapsePartial was called on a private tree
	// with more than one occupied top-level slot. An empty shard or a
	// shard whose slot holds a bucket is not rejected: CollapsePartial
	// forces it into node shape instead.
	ErrShardShape = errors.New("hamt: shard does not have exactly one node-shaped top-level slot")

	// ErrStitchArity means StitchSubtrees was called with a shard count
	// that does not equal the tree's fan-out.
	ErrStitchArity = errors.New("hamt: shard count does not match fan-out")

	// ErrSinkIO wraps a block sink failure encountered during collapse.
	ErrSinkIO = errors.New("hamt: block sink write failed")

	// ErrSealed is returned when Set or Get is attempted on an in-memory
	// node whose slot has already been collapsed into a CID.
	ErrSealed = errors.New("hamt: node is sealed; tree is immutable after collapse")

	// ErrUnsupportedHashAlg means a root block named a multihash code
	// this implementation does not know how to walk.
	ErrUnsupportedHashAlg = errors.New("hamt: unsupported hash algorithm")
)
