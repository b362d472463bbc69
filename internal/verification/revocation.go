package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	vc "miw/internal/vc/models"
	"miw/pkg/platform/circuit"
	"miw/pkg/platform/sentinel"
)

// StatusListClient talks to the external revocation service over HTTP. A
// circuit breaker sheds lookups while the service is down so every
// validation request does not pay the full timeout.
type StatusListClient struct {
	baseURL string
	client  *http.Client
	token   string

	breaker       *circuit.Breaker
	probeInterval time.Duration
	mu            sync.Mutex
	lastProbe     time.Time
}

type StatusListOption func(*StatusListClient)

// WithBearerToken authenticates revocation lookups.
func WithBearerToken(token string) StatusListOption {
	return func(c *StatusListClient) { c.token = token }
}

// WithStatusHTTPClient overrides the HTTP client, mainly for tests.
func WithStatusHTTPClient(client *http.Client) StatusListOption {
	return func(c *StatusListClient) {
		if client != nil {
			c.client = client
		}
	}
}

func NewStatusListClient(baseURL string, timeout time.Duration, opts ...StatusListOption) *StatusListClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &StatusListClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		breaker:       circuit.New("revocation", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		probeInterval: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusOf posts the credentialStatus entry to the revocation service and
// returns the reported status string. While the breaker is open only one
// probe per cooldown goes out; everything else fails fast as unavailable.
func (c *StatusListClient) StatusOf(ctx context.Context, status *vc.Status) (string, error) {
	if c.breaker.IsOpen() && !c.allowProbe() {
		return "", fmt.Errorf("revocation lookup: circuit open: %w", sentinel.ErrUnavailable)
	}

	result, err := c.statusOf(ctx, status)
	if err != nil {
		c.breaker.RecordFailure()
		return "", err
	}
	c.breaker.RecordSuccess()
	return result, nil
}

func (c *StatusListClient) allowProbe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastProbe) < c.probeInterval {
		return false
	}
	c.lastProbe = time.Now()
	return true
}

func (c *StatusListClient) statusOf(ctx context.Context, status *vc.Status) (string, error) {
	body, err := json.Marshal(status)
	if err != nil {
		return "", fmt.Errorf("encode credential status: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/revocations/verify", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("revocation lookup: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("revocation lookup: status %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode revocation response: %w", err)
	}
	return strings.ToLower(out.Status), nil
}
