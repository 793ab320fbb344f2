package query

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ipfs/go-cid"
)

// HTTPSource fetches blocks from an IPFS HTTP API's /api/v0/block/get
// endpoint, the Go analogue of the reference implementation's
// ipfs-api-backend-hyper client.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource returns a Source backed by the IPFS HTTP API rooted at
// baseURL (e.g. "http://127.0.0.1:5001").
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{baseURL: baseURL, client: client}
}

func (s *HTTPSource) Get(ctx context.Context, c cid.Cid) ([]byte, error) {
	endpoint := s.baseURL + "/api/v0/block/get?arg=" + url.QueryEscape(c.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("query: building request for %s: %w", c, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query: fetching block %s: %w", c, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query: gateway returned %s for block %s", resp.Status, c)
	}

	block, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("query: reading block %s: %w", c, err)
	}
	return block, nil
}
