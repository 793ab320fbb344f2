package blockstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// DirStore is a Store backed by a directory of flat files, one per block,
// fanned out two hex-prefix levels deep so no directory holds more than a
// few thousand entries even for a tree with tens of millions of blocks.
// No lightweight embedded key-value library offers a direct fit for a
// bare CID-keyed blob (available candidates are either full databases or
// tied to a different storage model entirely), so this layer is written
// directly against os/path/filepath rather than forcing a mismatched
// dependency into the role.
type DirStore struct {
	root string
}

// NewDirStore returns a DirStore rooted at dir, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blockstore: creating store root: %w", err)
	}
	return &DirStore{root: dir}, nil
}

// pathFor derives the fan-out prefix from the multihash digest itself,
// not from the CID's leading version/codec/hash-code bytes, which are
// identical across every block of the same kind and would otherwise
// collapse the whole fan-out into one pair of directories.
func (s *DirStore) pathFor(c cid.Cid) string {
	name := hex.EncodeToString(c.Bytes())
	prefix := name
	if decoded, err := multihash.Decode(c.Hash()); err == nil && len(decoded.Digest) >= 2 {
		prefix = hex.EncodeToString(decoded.Digest)
	}
	return filepath.Join(s.root, prefix[0:2], prefix[2:4], name)
}

// Put writes block under a content-derived path. It opens with O_EXCL so
// that two workers racing to write the same block (common during a
// shard-and-stitch build, since every empty shard writes the same empty
// node block) never corrupt each other; an EEXIST from that race is treated
// as success rather than an error.
func (s *DirStore) Put(_ context.Context, c cid.Cid, block []byte) error {
	path := s.pathFor(c)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("blockstore: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("blockstore: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(block); err != nil {
		os.Remove(path)
		return fmt.Errorf("blockstore: %w", err)
	}
	return nil
}

func (s *DirStore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	block, err := os.ReadFile(s.pathFor(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blockstore: %w", err)
	}
	return block, nil
}

// Iter walks every block file under root. Directory names are not decoded
// back into CIDs; instead the leaf file name (the full hex-encoded CID
// bytes) is parsed directly.
func (s *DirStore) Iter(ctx context.Context, fn func(c cid.Cid, block []byte) error) error {
	return filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := hex.DecodeString(d.Name())
		if err != nil {
			return nil // skip anything that isn't one of our block files
		}
		_, c, err := cid.CidFromBytes(raw)
		if err != nil {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("blockstore: %w", err)
		}
		block, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("blockstore: %w", err)
		}

		return fn(c, block)
	})
}
