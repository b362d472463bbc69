package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miw/internal/signing"
	"miw/internal/wallet/handler"
	"miw/internal/wallet/models"
	"miw/internal/wallet/service"
	"miw/internal/wallet/store"
	"miw/pkg/requestcontext"
	"miw/pkg/testutil"
)

const (
	authorityBPN = "BPNL000000000000"
	tenantBPN    = "BPNL000000000001"
)

func newRouter(t *testing.T) (chi.Router, *service.Service) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(), signing.NewRegistry(signing.NewInMemoryKeyStore()), service.Config{
		Host:          "wallets.example.com",
		AuthorityBPN:  authorityBPN,
		AuthorityName: "Authority Operator",
	}, service.WithLogger(logger))

	h := handler.New(svc, logger)
	r := chi.NewRouter()
	h.Register(r)
	h.RegisterPublic(r)
	return r, svc
}

func TestCreateWallet(t *testing.T) {
	router, _ := newRouter(t)

	testutil.Given(t, "an authenticated tenant", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/api/wallets", models.CreateWalletRequest{
			BPN:  tenantBPN,
			Name: "Tenant One",
		})
		req = testutil.WithCallerBPN(req, tenantBPN)

		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		wallet := testutil.UnmarshalResponse[models.Wallet](t, rr)
		assert.Equal(t, tenantBPN, wallet.BPN)
		assert.Equal(t, "did:web:wallets.example.com:"+tenantBPN, wallet.DID)
	})
}

func TestCreateWalletForOtherTenantForbidden(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/wallets", models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	req = testutil.WithCallerBPN(req, "BPNL000000000002")

	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreateWalletRejectsBadBody(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/wallets", `{"name": "No BPN"}`)
	req = testutil.WithCallerBPN(req, tenantBPN)

	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetWalletByIdentifier(t *testing.T) {
	router, svc := newRouter(t)
	ctx := requestcontext.WithCallerBPN(context.Background(), tenantBPN)
	created, err := svc.Create(ctx, models.CreateWalletRequest{BPN: tenantBPN, Name: "Tenant One"})
	require.NoError(t, err)

	req := testutil.NewRequest(t, http.MethodGet, "/api/wallets/"+tenantBPN)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	wallet := testutil.UnmarshalResponse[models.Wallet](t, rr)
	assert.Equal(t, created.DID, wallet.DID)
}

func TestGetUnknownWalletNotFound(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewRequest(t, http.MethodGet, "/api/wallets/BPNL999999999999")
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDIDDocumentEndpoints(t *testing.T) {
	router, svc := newRouter(t)
	require.NoError(t, svc.EnsureAuthorityWallet(context.Background()))

	t.Run("tenant document", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/"+authorityBPN+"/did.json")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)

		doc := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "did:web:wallets.example.com:"+authorityBPN, (*doc)["id"])
	})

	t.Run("authority well-known document", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/.well-known/did.json")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusOK, rr.Code)

		doc := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "did:web:wallets.example.com:"+authorityBPN, (*doc)["id"])
	})
}
