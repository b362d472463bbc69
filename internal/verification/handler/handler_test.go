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

	"miw/internal/vc/models"
	"miw/internal/verification"
	"miw/internal/verification/handler"
	"miw/pkg/testutil"
)

type stubVerifier struct {
	lastInput  verification.CredentialInput
	lastChecks verification.Checks
}

func (s *stubVerifier) VerifyCredential(_ context.Context, in verification.CredentialInput, checks verification.Checks) (*verification.CredentialResult, error) {
	s.lastInput = in
	s.lastChecks = checks
	return &verification.CredentialResult{Valid: true}, nil
}

func newRouter(t *testing.T) (chi.Router, *stubVerifier) {
	t.Helper()
	verifier := &stubVerifier{}
	h := handler.New(verifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r, verifier
}

func TestValidateEmbeddedCredential(t *testing.T) {
	router, verifier := newRouter(t)

	body := models.Credential{
		Context: []string{models.ContextCredentialsV1},
		ID:      "urn:uuid:3e1f8b2a-1111-2222-3333-444455556666",
		Type:    []string{models.TypeVerifiableCredential, models.TypeMembership},
		Issuer:  "did:web:issuer.example.com",
	}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/credentials/validation?withCredentialExpiryDate=true", body)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, verifier.lastInput.Credential)
	assert.Equal(t, body.Type, verifier.lastInput.Credential.Type)
	assert.True(t, verifier.lastChecks.Signature)
	assert.True(t, verifier.lastChecks.Expiry)
	assert.False(t, verifier.lastChecks.Revocation)
}

func TestValidateToken(t *testing.T) {
	router, verifier := newRouter(t)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/credentials/validation?withRevocation=true",
		`{"jwt": "eyJ.eyJ.sig"}`)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, "eyJ.eyJ.sig", verifier.lastInput.Token)
	assert.Nil(t, verifier.lastInput.Credential)
	assert.True(t, verifier.lastChecks.Revocation)
}

func TestValidateRejectsEmptyRequest(t *testing.T) {
	router, _ := newRouter(t)

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/api/credentials/validation", `{}`)
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
