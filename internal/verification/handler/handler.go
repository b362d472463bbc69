// Package handler exposes credential validation over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"miw/internal/vc/models"
	"miw/internal/verification"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/httputil"
	"miw/pkg/requestcontext"
)

// Service defines the validation operations the HTTP layer needs.
type Service interface {
	VerifyCredential(ctx context.Context, in verification.CredentialInput, checks verification.Checks) (*verification.CredentialResult, error)
}

// Handler handles validation endpoints.
type Handler struct {
	verifier Service
	logger   *slog.Logger
}

func New(verifier Service, logger *slog.Logger) *Handler {
	return &Handler{verifier: verifier, logger: logger}
}

// Register mounts the validation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/credentials/validation", h.handleValidate)
}

// validateRequest accepts either a compact JWT or an embedded-proof
// credential object. The credential fields live at the top level, matching
// the issuance response shape.
type validateRequest struct {
	Token string `json:"jwt,omitempty"`
	models.Credential
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "malformed validation request",
			"error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return
	}

	in := verification.CredentialInput{Token: req.Token}
	if req.Token == "" {
		if len(req.Credential.Type) == 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request must carry a jwt or a verifiable credential"))
			return
		}
		cred := req.Credential
		in.Credential = &cred
	}

	checks := verification.Checks{
		Signature:  true,
		Expiry:     boolQuery(r, "withCredentialExpiryDate"),
		Revocation: boolQuery(r, "withRevocation"),
	}

	result, err := h.verifier.VerifyCredential(ctx, in, checks)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func boolQuery(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
