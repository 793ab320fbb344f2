package hamt

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"
	"github.com/multiformats/go-multihash"
)

// rootBlockKeys, in the order the DAG-CBOR canonical map-key rule
// (sorted by length then byte-lex) puts them: "hamt" (4), "hashAlg" (7),
// "bucketSize" (10).
const (
	keyHamt       = "hamt"
	keyHashAlg    = "hashAlg"
	keyBucketSize = "bucketSize"
)

var canonicalEncMode = sync.OnceValue(func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("hamt: building canonical CBOR encode mode: %v", err))
	}
	return em
})

func marshalCanonical(v any) ([]byte, error) {
	b, err := canonicalEncMode().Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("hamt: cbor encode: %w", err)
	}
	return b, nil
}

// cidTag wraps a CID as CBOR tag 42 over a byte string whose first byte
// is the multibase-identity prefix.
func cidTag(c cid.Cid) cbor.Tag {
	return cbor.Tag{Number: 42, Content: append([]byte{0x00}, c.Bytes()...)}
}

func cidFromTag(v any) (cid.Cid, error) {
	tag, ok := v.(cbor.Tag)
	if !ok {
		return cid.Undef, fmt.Errorf("%w: expected tag 42, got %T", ErrBadBlock, v)
	}
	if tag.Number != 42 {
		return cid.Undef, fmt.Errorf("%w: expected tag 42, got tag %d", ErrBadBlock, tag.Number)
	}
	content, ok := tag.Content.([]byte)
	if !ok || len(content) == 0 || content[0] != 0x00 {
		return cid.Undef, fmt.Errorf("%w: tag content is not an identity-prefixed CID", ErrBadBlock)
	}
	_, c, err := cid.CidFromBytes(content[1:])
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrBadBlock, err)
	}
	return c, nil
}

// sumCID computes the version-1, dag-cbor-codec, SHA-256-multihash CID of
// an already-encoded block, matching the fan-out layer's own CID
// construction in cmd-car-split.go.
func sumCID(block []byte) (cid.Cid, error) {
	builder := cid.V1Builder{MhLength: -1, MhType: uint64(multicodec.Sha2_256), Codec: uint64(multicodec.DagCbor)}
	c, err := builder.Sum(block)
	if err != nil {
		return cid.Undef, fmt.Errorf("hamt: computing CID: %w", err)
	}
	return c, nil
}

// nodeArray builds the array(2) [map, data] representation shared by
// node blocks and the root block's embedded "hamt" field.
func nodeArray(n *Node) ([]any, error) {
	data := make([]any, len(n.data))
	for i, e := range n.data {
		switch v := e.(type) {
		case *sealedChild:
			data[i] = cidTag(v.cid)
		case *bucket:
			entries := make([]any, len(v.entries))
			for j, ent := range v.entries {
				entries[j] = []any{ent.Key, cidTag(ent.Value)}
			}
			data[i] = entries
		case *childNode:
			return nil, fmt.Errorf("hamt: cannot serialize an unsealed child node; call Collapse first")
		default:
			return nil, fmt.Errorf("hamt: unknown element type %T", e)
		}
	}
	return []any{n.bitmap, data}, nil
}

// encodeNodeBlock produces the bare [map, data] node block.
func encodeNodeBlock(n *Node) ([]byte, error) {
	arr, err := nodeArray(n)
	if err != nil {
		return nil, err
	}
	return marshalCanonical(arr)
}

// encodeRootBlock produces the 3-entry root block: the root node embedded
// inline, the multihash code, and the fan-out (stored, as in the
// reference implementation, under the historically misnamed "bucketSize"
// key).
func encodeRootBlock(root *Node, opts Options) ([]byte, error) {
	arr, err := nodeArray(root)
	if err != nil {
		return nil, err
	}
	m := map[string]any{
		keyHamt:       arr,
		keyHashAlg:    opts.HashAlg,
		keyBucketSize: uint64(root.Fanout()),
	}
	return marshalCanonical(m)
}

// DecodedElement is the read-only counterpart of element, produced by
// decoding a block fetched over the query path: every occupied slot is
// either a CID link or an inline bucket, never a live sub-node.
type DecodedElement struct {
	child  *cid.Cid
	bucket []BucketEntry
}

// Child returns the element's link CID, if it holds one.
func (e DecodedElement) Child() (cid.Cid, bool) {
	if e.child == nil {
		return cid.Undef, false
	}
	return *e.child, true
}

// Bucket returns the element's inline entries, if it holds a bucket.
func (e DecodedElement) Bucket() ([]BucketEntry, bool) {
	if e.bucket == nil {
		return nil, false
	}
	return e.bucket, true
}

// DecodedNode is a node as read back off the wire, used by query.Walker.
type DecodedNode struct {
	bitmap []byte
	data   []DecodedElement
}

// Fanout returns 2^Width as recovered from this node's bitmap length.
func (d *DecodedNode) Fanout() int { return len(d.bitmap) * 8 }

// Occupied reports whether slot i is occupied.
func (d *DecodedNode) Occupied(i int) bool { return bitSet(d.bitmap, i) }

// DataIndex maps a slot index to its position in Element.
func (d *DecodedNode) DataIndex(i int) int { return popcountBefore(d.bitmap, i) }

// Element returns the decoded element at a data-array position, as
// produced by DataIndex.
func (d *DecodedNode) Element(dataIdx int) DecodedElement { return d.data[dataIdx] }

// decodeNodeArray parses the [map, data] shape shared by node blocks and
// the root block's embedded "hamt" field.
func decodeNodeArray(raw any) (*DecodedNode, error) {
	arr, ok := raw.([]any)
	if !ok || len(arr) != 2 {
		return nil, fmt.Errorf("%w: expected a 2-element array", ErrBadBlock)
	}
	bitmap, ok := arr[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: map field is not a byte string", ErrBadBlock)
	}
	rawData, ok := arr[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: data field is not an array", ErrBadBlock)
	}

	want := popcountAll(bitmap, len(bitmap)*8)
	if want != len(rawData) {
		return nil, fmt.Errorf("%w: popcount %d != data length %d", ErrBadBlock, want, len(rawData))
	}

	data := make([]DecodedElement, len(rawData))
	for i, raw := range rawData {
		switch v := raw.(type) {
		case []any:
			entries := make([]BucketEntry, len(v))
			for j, rawEntry := range v {
				pair, ok := rawEntry.([]any)
				if !ok || len(pair) != 2 {
					return nil, fmt.Errorf("%w: bucket entry is not a 2-tuple", ErrBadBlock)
				}
				key, ok := pair[0].([]byte)
				if !ok {
					return nil, fmt.Errorf("%w: bucket key is not a byte string", ErrBadBlock)
				}
				valCID, err := cidFromTag(pair[1])
				if err != nil {
					return nil, err
				}
				entries[j] = BucketEntry{Key: key, Value: valCID}
			}
			data[i] = DecodedElement{bucket: entries}
		default:
			c, err := cidFromTag(raw)
			if err != nil {
				return nil, err
			}
			data[i] = DecodedElement{child: &c}
		}
	}
	return &DecodedNode{bitmap: bitmap, data: data}, nil
}

// DecodeNodeBlock parses a non-root node block, as fetched over the
// query path.
func DecodeNodeBlock(block []byte) (*DecodedNode, error) {
	var arr []any
	if err := cbor.Unmarshal(block, &arr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBlock, err)
	}
	return decodeNodeArray(arr)
}

// RootBlock is a decoded root block: tree-wide parameters plus the
// embedded root node.
type RootBlock struct {
	HashAlg uint64
	Width   int
	Root    *DecodedNode
}

// DecodeRootBlock parses the 3-entry root block and recovers the bit
// width from the embedded root node's bitmap length (the true bucket
// size is never recorded on the wire).
func DecodeRootBlock(block []byte) (*RootBlock, error) {
	var m map[string]cbor.RawMessage
	if err := cbor.Unmarshal(block, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBlock, err)
	}

	hashAlgRaw, ok := m[keyHashAlg]
	if !ok {
		return nil, fmt.Errorf("%w: missing hashAlg", ErrBadBlock)
	}
	var hashAlg uint64
	if err := cbor.Unmarshal(hashAlgRaw, &hashAlg); err != nil {
		return nil, fmt.Errorf("%w: hashAlg: %v", ErrBadBlock, err)
	}
	if hashAlg != multihash.SHA2_256 {
		return nil, fmt.Errorf("%w: code 0x%x", ErrUnsupportedHashAlg, hashAlg)
	}

	hamtRaw, ok := m[keyHamt]
	if !ok {
		return nil, fmt.Errorf("%w: missing hamt", ErrBadBlock)
	}
	var hamtArr []any
	if err := cbor.Unmarshal(hamtRaw, &hamtArr); err != nil {
		return nil, fmt.Errorf("%w: hamt: %v", ErrBadBlock, err)
	}
	root, err := decodeNodeArray(hamtArr)
	if err != nil {
		return nil, err
	}

	width := log2(len(root.bitmap) * 8)
	return &RootBlock{HashAlg: hashAlg, Width: width, Root: root}, nil
}

// log2 returns floor(log2(x)), which is exact for a power of two; it
// panics for x <= 0.
func log2(x int) int {
	if x <= 0 {
		panic("hamt: log2 of non-positive value")
	}
	w := 0
	for x > 1 {
		x >>= 1
		w++
	}
	return w
}
