package car

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"github.com/ipfs/go-libipfs/blocks"
	carv1 "github.com/ipld/go-car"
	"github.com/ipld/go-car/util"
)

// Reader streams sections back out of a CAR v1 archive written by
// Export, one (cid, block) pair at a time.
type Reader struct {
	Header *carv1.CarHeader
	br     *bufio.Reader
}

// NewReader parses the header off r and returns a Reader positioned at
// the first block section.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReaderSize(r, 1<<20)

	hb, err := util.LdRead(br)
	if err != nil {
		return nil, fmt.Errorf("car: reading header: %w", err)
	}
	var ch carv1.CarHeader
	if err := ipldcbor.DecodeInto(hb, &ch); err != nil {
		return nil, fmt.Errorf("car: invalid header: %w", err)
	}
	if ch.Version != 1 {
		return nil, fmt.Errorf("car: unsupported version %d", ch.Version)
	}

	return &Reader{Header: &ch, br: br}, nil
}

// Next returns the next (cid, block) section, or io.EOF once the archive
// is exhausted.
func (r *Reader) Next() (cid.Cid, []byte, error) {
	sectionLen, err := readSectionLength(r.br)
	if err != nil {
		return cid.Cid{}, nil, err
	}

	cidLen, c, err := cid.CidFromReader(r.br)
	if err != nil {
		return cid.Cid{}, nil, fmt.Errorf("car: reading cid: %w", err)
	}

	remaining := int64(sectionLen) - int64(cidLen)
	if remaining < 0 {
		return cid.Cid{}, nil, fmt.Errorf("car: section length %d shorter than its cid", sectionLen)
	}

	block := make([]byte, remaining)
	if _, err := io.ReadFull(r.br, block); err != nil {
		return cid.Cid{}, nil, fmt.Errorf("car: reading block: %w", err)
	}

	return c, block, nil
}

// NextBlock is Next wrapped in a blocks.Block, for callers that want to
// hand sections to code built against the blocks.Block interface rather
// than raw (cid, bytes) pairs.
func (r *Reader) NextBlock() (blocks.Block, error) {
	c, data, err := r.Next()
	if err != nil {
		return nil, err
	}
	return blocks.NewBlockWithCid(data, c)
}

// readSectionLength reads the varint length prefix that begins every CAR
// section, returning io.EOF cleanly at the archive's natural end.
func readSectionLength(br *bufio.Reader) (uint64, error) {
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("car: peeking next section: %w", err)
	}

	l, err := binary.ReadUvarint(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if l > uint64(util.MaxAllowedSectionSize) {
		return 0, errors.New("car: section length exceeds util.MaxAllowedSectionSize")
	}
	return l, nil
}
