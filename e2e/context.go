// Package e2e drives a running wallet service over HTTP with godog.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext carries shared state across scenario steps: the HTTP client,
// the current caller identity, and the last response.
type TestContext struct {
	BaseURL    string
	SigningKey string
	Issuer     string

	client *http.Client

	callerBPN  string
	lastStatus int
	lastBody   []byte
}

func NewTestContext(baseURL, signingKey, issuer string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SigningKey: signingKey,
		Issuer:     issuer,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.callerBPN = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

// AuthenticateAs mints a service-auth token for the BPN and uses it on all
// following requests.
func (tc *TestContext) AuthenticateAs(bpn string) {
	tc.callerBPN = bpn
}

// CallerBPN returns the currently authenticated tenant.
func (tc *TestContext) CallerBPN() string { return tc.callerBPN }

func (tc *TestContext) bearerToken() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"bpn": tc.callerBPN,
		"sub": tc.callerBPN,
		"iss": tc.Issuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(5 * time.Minute).Unix(),
	})
	return token.SignedString([]byte(tc.SigningKey))
}

// POST sends a JSON body to the path as the current caller.
func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

// GET fetches the path as the current caller.
func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

// DELETE issues a delete as the current caller.
func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil)
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.callerBPN != "" {
		token, err := tc.bearerToken()
		if err != nil {
			return fmt.Errorf("mint bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	return nil
}

// LastStatus returns the status code of the most recent response.
func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// ResponseField walks a dot-separated path into the last JSON response.
func (tc *TestContext) ResponseField(path string) (any, error) {
	var decoded any
	if err := json.Unmarshal(tc.lastBody, &decoded); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	current := decoded
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not present in response", path)
		}
	}
	return current, nil
}

// ResponseList decodes the last response as a JSON array.
func (tc *TestContext) ResponseList() ([]any, error) {
	var decoded []any
	if err := json.Unmarshal(tc.lastBody, &decoded); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return decoded, nil
}
