package presentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"miw/internal/audit"
	credmodels "miw/internal/credential/models"
	"miw/internal/did"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	walletmodels "miw/internal/wallet/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/requestcontext"
)

// WalletResolver is the slice of the wallet service this package needs.
type WalletResolver interface {
	FindByIdentifier(ctx context.Context, identifier string) (*walletmodels.Wallet, error)
}

// HolderStore looks up the caller's stored credentials for the scoped flow.
type HolderStore interface {
	FindByHolderAndTypes(ctx context.Context, holderDID string, types []string) ([]*credmodels.Record, error)
}

// Resolver resolves external signer DIDs during validation.
type Resolver interface {
	Resolve(ctx context.Context, didStr string) (*did.Document, error)
}

// CredentialVerifier checks embedded credentials inside a presentation.
type CredentialVerifier interface {
	ProofValid(ctx context.Context, cred *vc.Credential) bool
}

// TokenLedger marks an access token's jti as consumed. A second consume of
// the same jti returns sentinel.ErrAlreadyUsed.
type TokenLedger interface {
	Consume(ctx context.Context, jti string, expiresAt time.Time) error
}

// Service builds and validates presentations.
type Service struct {
	wallets  WalletResolver
	holders  HolderStore
	signers  *signing.Registry
	resolver Resolver
	verifier CredentialVerifier
	ledger   TokenLedger

	logger *slog.Logger
	tracer trace.Tracer
	audit  *audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(p *audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithTokenLedger wires the replay ledger used by the scoped flow.
func WithTokenLedger(ledger TokenLedger) Option {
	return func(s *Service) { s.ledger = ledger }
}

func New(wallets WalletResolver, holders HolderStore, signers *signing.Registry, resolver Resolver, verifier CredentialVerifier, opts ...Option) *Service {
	s := &Service{
		wallets:  wallets,
		holders:  holders,
		signers:  signers,
		resolver: resolver,
		verifier: verifier,
		logger:   slog.Default(),
		tracer:   otel.Tracer("presentation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create builds one presentation over the given credentials, signed by the
// caller's wallet. The holder is always the signer.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "presentation.Create")
	defer span.End()

	caller := requestcontext.CallerBPN(ctx)
	if caller == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is missing")
	}
	holder, err := s.wallets.FindByIdentifier(ctx, caller)
	if err != nil {
		return nil, err
	}
	return s.sign(ctx, holder, req.Credentials, req.Audience, req.AsJWT)
}

// Validate checks a compact-token presentation: token signature, optional
// audience match, token expiry, then every embedded credential's proof and
// expiry. One failing sub-check invalidates the whole presentation.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	ctx, span := s.tracer.Start(ctx, "presentation.Validate")
	defer span.End()

	claims := &vc.PresentationClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(req.Token, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "parse presentation token")
	}
	if claims.VP == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "token carries no vp claim")
	}
	res := &ValidateResult{Valid: true, Presentation: claims.VP, Token: req.Token}

	doc, err := s.resolver.Resolve(ctx, claims.Issuer)
	if err != nil {
		s.logger.WarnContext(ctx, "presentation signer resolution failed",
			"issuer", claims.Issuer, "error", err)
		res.Valid = false
		return res, nil
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA", "ES256K"}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(req.Token, &vc.PresentationClaims{}, signing.Keyfunc(doc)); err != nil {
		s.logger.DebugContext(ctx, "presentation signature invalid", "error", err)
		res.Valid = false
	}

	if req.Audience != "" && !containsAudience(claims.Audience, req.Audience) {
		res.Valid = false
	}
	now := time.Now()
	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time) {
		res.Valid = false
	}

	// Embedded credentials are never re-wrapped as tokens, so each gets a
	// proof check, not token validation.
	for i := range claims.VP.VerifiableCredential {
		cred := &claims.VP.VerifiableCredential[i]
		if req.WithExpiry && cred.IsExpiredAt(now) {
			res.Valid = false
		}
		if !s.verifier.ProofValid(ctx, cred) {
			res.Valid = false
		}
	}
	return res, nil
}

func (s *Service) sign(ctx context.Context, holder *walletmodels.Wallet, credentials []vc.Credential, audience string, asJWT bool) (*CreateResult, error) {
	signer, err := s.signers.For(holder.Algorithm)
	if err != nil {
		return nil, err
	}
	encoding := signing.EncodingEmbedded
	if asJWT {
		encoding = signing.EncodingJWT
	}
	signed, err := signer.CreatePresentation(ctx, signing.PresentationConfig{
		HolderDoc:      holder.Document,
		HolderWalletID: holder.ID,
		Audience:       audience,
		Credentials:    credentials,
		Encoding:       encoding,
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionPresentationCreated,
		HolderDID: holder.DID,
	})
	s.logger.InfoContext(ctx, "presentation created",
		"holder_did", holder.DID, "credentials", len(credentials), "as_jwt", asJWT)
	return &CreateResult{Presentation: signed.Presentation, Token: signed.Token}, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.CallerBPN = requestcontext.CallerBPN(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

func containsAudience(aud jwt.ClaimStrings, expected string) bool {
	for _, a := range aud {
		if a == expected {
			return true
		}
	}
	return false
}
