// Package handler exposes presentation operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miw/internal/presentation"
	"miw/pkg/platform/httputil"
	"miw/pkg/requestcontext"
)

// Service defines the presentation operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, req presentation.CreateRequest) (*presentation.CreateResult, error)
	Validate(ctx context.Context, req presentation.ValidateRequest) (*presentation.ValidateResult, error)
	CreateScoped(ctx context.Context, req presentation.ScopedRequest) (*presentation.CreateResult, error)
}

// Handler handles presentation endpoints.
type Handler struct {
	presentations Service
	logger        *slog.Logger
}

func New(presentations Service, logger *slog.Logger) *Handler {
	return &Handler{presentations: presentations, logger: logger}
}

// Register mounts the presentation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/presentations", h.handleCreate)
	r.Post("/api/presentations/validation", h.handleValidate)
	r.Post("/api/presentations/iatp", h.handleCreateScoped)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[presentation.CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.presentations.Create(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "presentation creation failed",
			"error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[presentation.ValidateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.presentations.Validate(ctx, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateScoped(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[presentation.ScopedRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.presentations.CreateScoped(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "scoped presentation failed",
			"error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}
