// Package service orchestrates wallet lifecycle: creation with key and DID
// document provisioning, identifier resolution, and the authority wallet
// bootstrap.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"miw/internal/audit"
	"miw/internal/did"
	"miw/internal/signing"
	"miw/internal/wallet/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/platform/sentinel"
	"miw/pkg/requestcontext"
)

// Store is the wallet persistence contract consumed by this service.
type Store interface {
	Create(ctx context.Context, w *models.Wallet) error
	FindByBPN(ctx context.Context, bpn string) (*models.Wallet, error)
	FindByDID(ctx context.Context, didStr string) (*models.Wallet, error)
	ExistsByBPN(ctx context.Context, bpn string) (bool, error)
	List(ctx context.Context) ([]*models.Wallet, error)
}

// CreatedHook runs after a wallet is persisted. The credential feature hooks
// in here to issue the new wallet its BPN credential.
type CreatedHook func(ctx context.Context, w *models.Wallet) error

// Config carries the identity-minting parameters.
type Config struct {
	// Host is the did:web host this service publishes documents under.
	Host string
	// AuthorityBPN identifies the one wallet allowed to issue privileged
	// credential families.
	AuthorityBPN string
	// AuthorityName is the display name given to the bootstrapped wallet.
	AuthorityName string
}

// Service manages wallets.
type Service struct {
	store       Store
	signers     *signing.Registry
	cfg         Config
	logger      *slog.Logger
	createdHook CreatedHook
	audit       *audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCreatedHook registers a post-creation callback. Hook failures fail the
// creation so a wallet is never left without its bootstrap credential.
func WithCreatedHook(hook CreatedHook) Option {
	return func(s *Service) { s.createdHook = hook }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func New(store Store, signers *signing.Registry, cfg Config, opts ...Option) *Service {
	s := &Service{store: store, signers: signers, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetCreatedHook wires the post-creation callback after construction, which
// breaks the construction cycle between the wallet and credential services.
func (s *Service) SetCreatedHook(hook CreatedHook) { s.createdHook = hook }

// Create provisions a wallet: key pair, did:web document, store record. The
// caller must be the wallet's own tenant or the authority.
func (s *Service) Create(ctx context.Context, req models.CreateWalletRequest) (*models.Wallet, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if caller := requestcontext.CallerBPN(ctx); caller != "" && caller != req.BPN && caller != s.cfg.AuthorityBPN {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller may not create a wallet for another BPN")
	}

	walletID := uuid.New()
	jwk, err := s.signers.GenerateKeyPair(ctx, walletID, req.Algorithm)
	if err != nil {
		return nil, err
	}

	walletDID := did.FromWebLocation(s.cfg.Host, req.BPN).String()
	doc := did.NewDocument(walletDID, jwk)

	w, err := models.NewWallet(walletID, req.BPN, req.Name, walletDID, doc, req.Algorithm, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, w); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "wallet for %s already exists", req.BPN)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create wallet")
	}

	s.logger.InfoContext(ctx, "wallet created",
		"request_id", requestcontext.RequestID(ctx),
		"bpn", w.BPN,
		"did", w.DID,
		"algorithm", w.Algorithm,
	)

	if s.createdHook != nil {
		if err := s.createdHook(ctx, w); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to bootstrap wallet credential")
		}
	}

	if s.audit != nil {
		event := audit.Event{
			Timestamp: time.Now().UTC(),
			Action:    audit.ActionWalletCreated,
			CallerBPN: requestcontext.CallerBPN(ctx),
			HolderDID: w.DID,
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.audit.Emit(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
		}
	}
	return w, nil
}

// FindByIdentifier resolves a wallet by BPN or DID.
func (s *Service) FindByIdentifier(ctx context.Context, identifier string) (*models.Wallet, error) {
	var (
		w   *models.Wallet
		err error
	)
	if did.IsDID(identifier) {
		w, err = s.store.FindByDID(ctx, identifier)
	} else {
		w, err = s.store.FindByBPN(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "wallet %s not found", identifier)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load wallet")
	}
	return w, nil
}

// ExistsByBPN reports whether a wallet exists for the BPN.
func (s *Service) ExistsByBPN(ctx context.Context, bpn string) (bool, error) {
	return s.store.ExistsByBPN(ctx, bpn)
}

// List returns all wallets ordered by BPN.
func (s *Service) List(ctx context.Context) ([]*models.Wallet, error) {
	return s.store.List(ctx)
}

// Authority loads the authority wallet.
func (s *Service) Authority(ctx context.Context) (*models.Wallet, error) {
	return s.FindByIdentifier(ctx, s.cfg.AuthorityBPN)
}

// AuthorityBPN exposes the configured authority BPN for access-control checks.
func (s *Service) AuthorityBPN() string { return s.cfg.AuthorityBPN }

// EnsureAuthorityWallet is the idempotent startup routine that creates the
// authority wallet when absent. A create racing another instance surfaces as
// a benign conflict.
func (s *Service) EnsureAuthorityWallet(ctx context.Context) error {
	exists, err := s.store.ExistsByBPN(ctx, s.cfg.AuthorityBPN)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check authority wallet")
	}
	if exists {
		return nil
	}
	_, err = s.Create(ctx, models.CreateWalletRequest{
		BPN:       s.cfg.AuthorityBPN,
		Name:      s.cfg.AuthorityName,
		Algorithm: signing.AlgorithmED25519,
	})
	if err != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
		s.logger.InfoContext(ctx, "authority wallet already exists", "bpn", s.cfg.AuthorityBPN)
		return nil
	}
	return err
}
