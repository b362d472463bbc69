package sts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"miw/internal/audit"
	"miw/internal/did"
	"miw/internal/signing"
	walletmodels "miw/internal/wallet/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/requestcontext"
)

// WalletResolver is the slice of the wallet service this package needs.
type WalletResolver interface {
	FindByIdentifier(ctx context.Context, identifier string) (*walletmodels.Wallet, error)
}

// Resolver resolves external DIDs during token validation.
type Resolver interface {
	Resolve(ctx context.Context, didStr string) (*did.Document, error)
}

// Ledger records issued token jtis for replay protection.
type Ledger interface {
	Register(ctx context.Context, jti string, expiresAt time.Time) error
}

// Config carries token policy. The pair TTL is configuration-driven, not
// derived from any credential.
type Config struct {
	TokenTTL time.Duration
}

func (c *Config) applyDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = 5 * time.Minute
	}
}

// Service issues and validates secure token pairs.
type Service struct {
	wallets  WalletResolver
	signers  *signing.Registry
	resolver Resolver
	ledger   Ledger
	cfg      Config

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

func New(wallets WalletResolver, signers *signing.Registry, resolver Resolver, ledger Ledger, cfg Config, opts ...Option) *Service {
	cfg.applyDefaults()
	s := &Service{
		wallets:  wallets,
		signers:  signers,
		resolver: resolver,
		ledger:   ledger,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("sts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueToken creates an access token for the partner audience and an ID
// token nesting it. Both tokens share one expiration instant; deriving the
// second expiry from a fresh clock read would leak the time spent in the
// first signature operation.
func (s *Service) IssueToken(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, "sts.IssueToken")
	defer span.End()

	self, err := s.wallets.FindByIdentifier(ctx, req.SelfIdentifier)
	if err != nil {
		return nil, err
	}
	caller := requestcontext.CallerBPN(ctx)
	if caller == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity is missing")
	}
	if !strings.EqualFold(caller, self.BPN) {
		return nil, dErrors.Newf(dErrors.CodeForbidden, "caller %s may not issue tokens for wallet %s", caller, self.BPN)
	}
	partner, err := s.wallets.FindByIdentifier(ctx, req.PartnerIdentifier)
	if err != nil {
		return nil, err
	}

	signer, err := s.signers.For(self.Algorithm)
	if err != nil {
		return nil, err
	}
	vm, err := self.Document.FindVerificationMethod("")
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx).UTC().Truncate(time.Second)
	expiresAt := now.Add(s.cfg.TokenTTL)
	nonce := uuid.NewString()
	accessJTI := uuid.NewString()

	accessToken, err := signer.SignToken(ctx, self.ID, AccessClaims{
		Scope: strings.Join(req.Scopes, " "),
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    self.DID,
			Subject:   self.DID,
			Audience:  jwt.ClaimStrings{partner.DID},
			ID:        accessJTI,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}, vm.ID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Register(ctx, accessJTI, expiresAt); err != nil {
		return nil, err
	}

	idToken, err := signer.SignToken(ctx, self.ID, IDClaims{
		AccessToken: accessToken,
		Nonce:       nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    self.DID,
			Subject:   self.DID,
			Audience:  jwt.ClaimStrings{partner.DID},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}, vm.ID)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionTokenIssued,
		HolderDID: self.DID,
		IssuerDID: self.DID,
	})
	s.logger.InfoContext(ctx, "token pair issued",
		"self_did", self.DID, "partner_did", partner.DID, "expires_at", expiresAt)

	return &IssueResult{IDToken: idToken, AccessToken: accessToken, ExpiresAt: expiresAt}, nil
}

// Validate runs the full check list against a self-issued token nesting an
// access token. Checks are recorded independently, never short-circuited, so
// the caller learns every failed check in one pass.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidationResult, error) {
	ctx, span := s.tracer.Start(ctx, "sts.Validate")
	defer span.End()

	outer := &IDClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(req.Token, outer); err != nil {
		return &ValidationResult{Errors: []string{CheckMalformedToken}}, nil
	}

	var errs []string
	now := time.Now()

	if !did.IsDID(outer.Subject) || outer.Subject != outer.Issuer {
		errs = append(errs, CheckInvalidSubject)
	}
	if outer.ExpiresAt == nil || now.After(outer.ExpiresAt.Time) {
		errs = append(errs, CheckTokenExpired)
	}

	var inner *AccessClaims
	switch {
	case outer.AccessToken == "":
		errs = append(errs, CheckMissingAccessToken)
	default:
		inner = &AccessClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(outer.AccessToken, inner); err != nil {
			errs = append(errs, CheckMalformedToken)
			inner = nil
		}
	}

	if inner != nil {
		if !audiencesEqual(outer.Audience, inner.Audience) {
			errs = append(errs, CheckAudienceMismatch)
		}
		if outer.Nonce != inner.Nonce {
			errs = append(errs, CheckNonceMismatch)
		}
		// The outer token must be signed by the wallet the access token was
		// issued for, the access token by its own issuer.
		if len(inner.Audience) == 0 || !s.signatureValid(ctx, req.Token, inner.Audience[0], &IDClaims{}) {
			errs = append(errs, CheckInvalidSignature)
		}
		if !s.signatureValid(ctx, outer.AccessToken, inner.Issuer, &AccessClaims{}) {
			errs = append(errs, CheckInvalidAccessSignature)
		}
	}

	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

func (s *Service) signatureValid(ctx context.Context, token, signerDID string, claims jwt.Claims) bool {
	doc, err := s.docFor(ctx, signerDID)
	if err != nil {
		s.logger.WarnContext(ctx, "signer resolution failed", "did", signerDID, "error", err)
		return false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA", "ES256K"}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, claims, signing.Keyfunc(doc)); err != nil {
		return false
	}
	return true
}

// docFor prefers a local wallet's document and falls back to remote
// resolution for external parties.
func (s *Service) docFor(ctx context.Context, didStr string) (*did.Document, error) {
	if w, err := s.wallets.FindByIdentifier(ctx, didStr); err == nil {
		return w.Document, nil
	}
	return s.resolver.Resolve(ctx, didStr)
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

func audiencesEqual(a, b jwt.ClaimStrings) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
