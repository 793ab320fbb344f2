package hamt

import (
	"fmt"

	"github.com/multiformats/go-multihash"
)

// Options holds the tree-wide parameters fixed at creation time and
// carried, unchanged, for the life of a tree.
type Options struct {
	// BitWidth is the number of hash bits consumed per level, W in [1, 8].
	// Fan-out per node is 2^BitWidth.
	BitWidth int

	// BucketSize is the maximum number of entries a leaf bucket holds
	// before it splits into a child node.
	BucketSize int

	// HashAlg is the multihash code for the digest function. Pinned to
	// SHA2_256; any other value makes Validate reject it.
	HashAlg uint64
}

// DefaultOptions mirrors the parameters the reference implementation
// hard-codes: width 5 (32-way fan-out), bucket size 3, SHA-256.
func DefaultOptions() Options {
	return Options{
		BitWidth:   5,
		BucketSize: 3,
		HashAlg:    multihash.SHA2_256,
	}
}

// NewOptions validates and returns a set of tree parameters.
func NewOptions(bitWidth, bucketSize int) (Options, error) {
	opts := Options{BitWidth: bitWidth, BucketSize: bucketSize, HashAlg: multihash.SHA2_256}
	return opts, opts.Validate()
}

// Validate checks that W is in [1,8], B >= 1, and the hash algorithm is
// supported (SHA-256 is the only one this format pins).
func (o Options) Validate() error {
	if o.BitWidth < 1 || o.BitWidth > 8 {
		return fmt.Errorf("hamt: bit width %d out of range [1,8]", o.BitWidth)
	}
	if o.BucketSize < 1 {
		return fmt.Errorf("hamt: bucket size %d must be >= 1", o.BucketSize)
	}
	if o.HashAlg != multihash.SHA2_256 {
		return fmt.Errorf("%w: code 0x%x", ErrUnsupportedHashAlg, o.HashAlg)
	}
	return nil
}

// Fanout returns 2^BitWidth, the number of slots in every node.
func (o Options) Fanout() int {
	return 1 << o.BitWidth
}

// MaxDepth returns floor(256/BitWidth), the number of levels a digest can
// index: nodes exist at depths 0 through MaxDepth()-1, and buckets in a
// node at depth MaxDepth()-1 are the collision sink.
func (o Options) MaxDepth() int {
	return digestBits / o.BitWidth
}
