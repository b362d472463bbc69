// Package handler exposes secure token service operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miw/internal/sts"
	"miw/pkg/platform/httputil"
	"miw/pkg/requestcontext"
)

// Service defines the token operations the HTTP layer needs.
type Service interface {
	IssueToken(ctx context.Context, req sts.IssueRequest) (*sts.IssueResult, error)
	Validate(ctx context.Context, req sts.ValidateRequest) (*sts.ValidationResult, error)
}

// Handler handles token endpoints.
type Handler struct {
	tokens Service
	logger *slog.Logger
}

func New(tokens Service, logger *slog.Logger) *Handler {
	return &Handler{tokens: tokens, logger: logger}
}

// Register mounts the token routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/token", h.handleIssue)
	r.Post("/api/token/validation", h.handleValidate)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[sts.IssueRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.tokens.IssueToken(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "token issuance failed",
			"error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[sts.ValidateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.tokens.Validate(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
