package did

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"miw/pkg/platform/sentinel"
)

// Resolver resolves a DID to its document. Implementations are expected to be
// safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, didStr string) (*Document, error)
}

// WebResolver fetches did:web documents over HTTPS. Resolution failures wrap
// sentinel.ErrUnavailable so verification code can downgrade them to a failed
// check instead of a service error.
type WebResolver struct {
	client *http.Client
}

// WebResolverOption configures a WebResolver.
type WebResolverOption func(*WebResolver)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) WebResolverOption {
	return func(r *WebResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// NewWebResolver constructs a resolver with an explicit request timeout so an
// unresponsive host cannot stall a verification request indefinitely.
func NewWebResolver(timeout time.Duration, opts ...WebResolverOption) *WebResolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &WebResolver{client: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *WebResolver) Resolve(ctx context.Context, didStr string) (*Document, error) {
	d, err := Parse(didStr)
	if err != nil {
		return nil, err
	}
	docURL, err := d.DocumentURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build resolution request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w: %w", didStr, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("resolve %s: %w", didStr, sentinel.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolve %s: status %d: %w", didStr, resp.StatusCode, sentinel.ErrUnavailable)
	}

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode DID document for %s: %w", didStr, err)
	}
	if doc.ID != didStr {
		return nil, fmt.Errorf("document id %s does not match requested DID %s: %w", doc.ID, didStr, sentinel.ErrInvalidState)
	}
	return &doc, nil
}
