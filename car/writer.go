// Package car exports a collapsed tree as a CAR v1 archive and reads one
// back, mirroring the reference implementation's car.rs.
package car

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	carv1 "github.com/ipld/go-car"
	"github.com/ipld/go-car/util"

	"github.com/rpcpool/go-ipld-hamt/blockstore"
	"github.com/rpcpool/go-ipld-hamt/dummycid"
)

// WriteHeader writes the fixed, single-root CAR v1 preamble: version 1,
// one placeholder root. The real root CID is recorded by convention as
// the archive's first block, not in the header, since the root is only
// known once the whole tree has been collapsed and the header must be
// written before streaming starts.
func WriteHeader(w io.Writer) error {
	return carv1.WriteHeader(&carv1.CarHeader{
		Roots:   []cid.Cid{dummycid.DummyCID},
		Version: 1,
	}, w)
}

// Export streams header + every block in store as a CAR v1 archive to w.
// root is written first so a reader can treat the first section as the
// tree's entry point without needing the (placeholder) header root.
func Export(ctx context.Context, w io.Writer, store blockstore.Iterator, root cid.Cid) error {
	if err := WriteHeader(w); err != nil {
		return fmt.Errorf("car: writing header: %w", err)
	}

	seen := make(map[cid.Cid]struct{})
	writeSection := func(c cid.Cid, block []byte) error {
		if _, ok := seen[c]; ok {
			return nil
		}
		seen[c] = struct{}{}
		if err := util.LdWrite(w, c.Bytes(), block); err != nil {
			return fmt.Errorf("car: writing section for %s: %w", c, err)
		}
		return nil
	}

	rootBlock, err := storeGet(ctx, store, root)
	if err != nil {
		return err
	}
	if err := writeSection(root, rootBlock); err != nil {
		return err
	}

	return store.Iter(ctx, func(c cid.Cid, block []byte) error {
		return writeSection(c, block)
	})
}

// storeGet looks c up through blockstore.Source when the store also
// implements it, and otherwise finds it by scanning the whole store.
func storeGet(ctx context.Context, store blockstore.Iterator, c cid.Cid) ([]byte, error) {
	if src, ok := store.(blockstore.Source); ok {
		return src.Get(ctx, c)
	}

	var found []byte
	err := store.Iter(ctx, func(candidate cid.Cid, block []byte) error {
		if candidate == c {
			found = block
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, blockstore.ErrNotFound
	}
	return found, nil
}
