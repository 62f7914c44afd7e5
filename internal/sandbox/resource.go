package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ipvm-wg/homestar/internal/invocation"
)

// Fetcher resolves a Resource's scheme-qualified URI into module
// bytes. Implementations must be context-aware and safe for
// concurrent use, mirroring how the rest of this system treats its
// content-addressed storage collaborators.
type Fetcher interface {
	Fetch(ctx context.Context, r invocation.Resource) ([]byte, error)
}

// BlockStore is the subset of an IPFS-compatible block store the
// sandbox depends on to resolve ipfs:// resources.
type BlockStore interface {
	GetBlock(ctx context.Context, cidStr string) ([]byte, error)
}

// CachingFetcher wraps an underlying Fetcher with an in-memory,
// URI-keyed byte cache. A resource is immutable once published (its
// URI names a CID or a fixed HTTPS location treated as immutable by
// convention), so the cache never needs invalidation.
type CachingFetcher struct {
	blocks BlockStore
	http   *http.Client

	mu    sync.RWMutex
	bytes map[string][]byte
}

// NewCachingFetcher builds a Fetcher that serves ipfs:// resources
// from blocks and https:// resources over http, memoizing both by URI.
func NewCachingFetcher(blocks BlockStore, httpClient *http.Client) *CachingFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &CachingFetcher{
		blocks: blocks,
		http:   httpClient,
		bytes:  make(map[string][]byte),
	}
}

func (f *CachingFetcher) Fetch(ctx context.Context, r invocation.Resource) ([]byte, error) {
	f.mu.RLock()
	if cached, ok := f.bytes[r.URI]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	scheme, err := r.Scheme()
	if err != nil {
		return nil, &FetchError{URI: r.URI, Err: err}
	}

	var data []byte
	switch scheme {
	case invocation.SchemeIPFS:
		data, err = f.fetchIPFS(ctx, r)
	case invocation.SchemeHTTPS:
		data, err = f.fetchHTTPS(ctx, r)
	default:
		err = fmt.Errorf("unsupported resource scheme %q", scheme)
	}
	if err != nil {
		return nil, &FetchError{URI: r.URI, Err: err}
	}

	f.mu.Lock()
	f.bytes[r.URI] = data
	f.mu.Unlock()
	return data, nil
}

func (f *CachingFetcher) fetchIPFS(ctx context.Context, r invocation.Resource) ([]byte, error) {
	if f.blocks == nil {
		return nil, fmt.Errorf("no block store configured")
	}
	cidStr, err := r.CIDString()
	if err != nil {
		return nil, err
	}
	return f.blocks.GetBlock(ctx, cidStr)
}

func (f *CachingFetcher) fetchHTTPS(ctx context.Context, r invocation.Resource) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
