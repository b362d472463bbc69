// Package handler exposes credential operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miw/internal/credential/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/httputil"
	"miw/pkg/requestcontext"
)

// Service defines the credential operations the HTTP layer needs.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (*models.IssueResult, error)
	IssueMembership(ctx context.Context, req models.IssueMembershipRequest) (*models.IssueResult, error)
	IssueDismantler(ctx context.Context, req models.IssueDismantlerRequest) (*models.IssueResult, error)
	IssueFramework(ctx context.Context, req models.IssueFrameworkRequest) (*models.IssueResult, error)
	Store(ctx context.Context, req models.StoreRequest) (*models.Record, error)
	List(ctx context.Context, identifier string, filter models.Filter) ([]*models.Record, error)
	Delete(ctx context.Context, holderIdentifier, credentialID string) error
}

// Handler handles credential endpoints.
type Handler struct {
	credentials Service
	logger      *slog.Logger
}

func New(credentials Service, logger *slog.Logger) *Handler {
	return &Handler{credentials: credentials, logger: logger}
}

// Register mounts the credential routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/credentials", h.handleIssue)
	r.Get("/api/credentials", h.handleList)
	r.Delete("/api/credentials", h.handleDelete)
	r.Post("/api/credentials/issuer/membership", h.handleIssueMembership)
	r.Post("/api/credentials/issuer/dismantler", h.handleIssueDismantler)
	r.Post("/api/credentials/issuer/framework", h.handleIssueFramework)
	r.Post("/api/credentials/holder", h.handleStore)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.credentials.Issue(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "credential issuance failed",
			"issuer", req.IssuerIdentifier, "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleIssueMembership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueMembershipRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.credentials.IssueMembership(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleIssueDismantler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueDismantlerRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.credentials.IssueDismantler(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleIssueFramework(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.IssueFrameworkRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.credentials.IssueFramework(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleStore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.StoreRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	rec, err := h.credentials.Store(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identifier := r.URL.Query().Get("holderIdentifier")
	if identifier == "" {
		identifier = requestcontext.CallerBPN(ctx)
	}
	filter := models.Filter{
		Type:         r.URL.Query().Get("type"),
		CredentialID: r.URL.Query().Get("credentialId"),
	}
	records, err := h.credentials.List(ctx, identifier, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	credentialID := r.URL.Query().Get("credentialId")
	if credentialID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credentialId query parameter is required"))
		return
	}
	identifier := r.URL.Query().Get("holderIdentifier")
	if identifier == "" {
		identifier = requestcontext.CallerBPN(ctx)
	}
	if err := h.credentials.Delete(ctx, identifier, credentialID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
