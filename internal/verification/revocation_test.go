package verification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vc "miw/internal/vc/models"
	"miw/pkg/platform/sentinel"
)

func testStatus() *vc.Status {
	return &vc.Status{
		ID:   "https://revocation.example.com/status/1#42",
		Type: "StatusList2021Entry",
	}
}

func TestStatusListClientReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/revocations/verify", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "Active"}`))
	}))
	defer srv.Close()

	client := NewStatusListClient(srv.URL, time.Second, WithBearerToken("secret"))

	status, err := client.StatusOf(context.Background(), testStatus())
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)
}

func TestStatusListClientUnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewStatusListClient(srv.URL, time.Second)

	_, err := client.StatusOf(context.Background(), testStatus())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestStatusListClientShedsLoadWhileDown(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewStatusListClient(srv.URL, time.Second)
	ctx := context.Background()

	// Five failures open the circuit, the sixth is the allowed probe.
	for i := 0; i < 6; i++ {
		_, err := client.StatusOf(ctx, testStatus())
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	hitsAfterOpen := hits.Load()

	// Within the probe cooldown further lookups fail fast.
	for i := 0; i < 10; i++ {
		_, err := client.StatusOf(ctx, testStatus())
		require.ErrorIs(t, err, sentinel.ErrUnavailable)
	}
	assert.Equal(t, hitsAfterOpen, hits.Load(), "open circuit must not hit the service")
}
