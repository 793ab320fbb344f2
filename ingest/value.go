// Package ingest turns raw records into (key, value-CID) pairs ready for
// hamt.Tree.Set or hamt.BuildSharded, mirroring the reference
// implementation's load_data_ser_blocks and value.rs.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multicodec"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
)

var valueEncMode = func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("ingest: building canonical CBOR encode mode: %v", err))
	}
	return em
}()

// EncodeJSONValue re-encodes an arbitrary JSON document as canonical
// DAG-CBOR, recursively: JSON objects become CBOR maps with their keys
// sorted (mirroring the reference implementation's BTreeMap dispatch),
// arrays and scalars translate directly.
func EncodeJSONValue(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("ingest: parsing json value: %w", err)
	}
	cborValue := canonicalizeJSON(v)
	return valueEncMode.Marshal(cborValue)
}

// canonicalizeJSON converts the generic map[string]any/[]any tree
// encoding/json produces into a shape the CBOR encoder's canonical map
// key ordering will serialize deterministically.
func canonicalizeJSON(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(x))
		for _, k := range keys {
			out[k] = canonicalizeJSON(x[k])
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = canonicalizeJSON(e)
		}
		return out
	default:
		return x
	}
}

// PutValue encodes a JSON value, writes it to sink as its own block, and
// returns its CID, the value half of a HAMT (key, value-CID) pair.
func PutValue(ctx context.Context, sink blockstore.Sink, raw json.RawMessage) (cid.Cid, error) {
	block, err := EncodeJSONValue(raw)
	if err != nil {
		return cid.Undef, err
	}
	builder := cid.V1Builder{MhLength: -1, MhType: uint64(multicodec.Sha2_256), Codec: uint64(multicodec.DagCbor)}
	c, err := builder.Sum(block)
	if err != nil {
		return cid.Undef, fmt.Errorf("ingest: computing value cid: %w", err)
	}
	if err := sink.Put(ctx, c, block); err != nil {
		return cid.Undef, fmt.Errorf("ingest: writing value block: %w", err)
	}
	return c, nil
}
