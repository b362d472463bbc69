// Package handler exposes wallet operations over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"miw/internal/wallet/models"
	"miw/pkg/platform/httputil"
	"miw/pkg/requestcontext"
)

// Service defines the wallet operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, req models.CreateWalletRequest) (*models.Wallet, error)
	FindByIdentifier(ctx context.Context, identifier string) (*models.Wallet, error)
	List(ctx context.Context) ([]*models.Wallet, error)
	Authority(ctx context.Context) (*models.Wallet, error)
}

// Handler handles wallet endpoints.
type Handler struct {
	wallets Service
	logger  *slog.Logger
}

func New(wallets Service, logger *slog.Logger) *Handler {
	return &Handler{wallets: wallets, logger: logger}
}

// Register mounts the wallet routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/wallets", h.handleCreate)
	r.Get("/api/wallets", h.handleList)
	r.Get("/api/wallets/{identifier}", h.handleGet)
}

// RegisterPublic mounts the unauthenticated did:web document routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/{bpn}/did.json", h.handleDIDDocument)
	r.Get("/.well-known/did.json", h.handleAuthorityDIDDocument)
}

func (h *Handler) handleDIDDocument(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallets.FindByIdentifier(r.Context(), chi.URLParam(r, "bpn"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet.Document)
}

func (h *Handler) handleAuthorityDIDDocument(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.wallets.Authority(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet.Document)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateWalletRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	wallet, err := h.wallets.Create(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "wallet creation failed",
			"bpn", req.BPN, "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wallet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wallet, err := h.wallets.FindByIdentifier(ctx, chi.URLParam(r, "identifier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.wallets.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallets)
}
