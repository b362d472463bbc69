// Package verification implements the credential validation pipeline:
// signature, expiry, and revocation checks that are independently skippable
// and combined into a single valid flag. Semantic failures (bad signature,
// expired, revoked, unreachable resolver) flip result fields; only malformed
// input is an error.
package verification

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"miw/internal/did"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// Resolver resolves an issuer DID to its document for signature checks.
type Resolver interface {
	Resolve(ctx context.Context, didStr string) (*did.Document, error)
}

// RevocationClient queries the external revocation service for the status of
// a credential's credentialStatus entry.
type RevocationClient interface {
	StatusOf(ctx context.Context, status *vc.Status) (string, error)
}

// StatusActive is the only revocation status that keeps a credential valid.
const StatusActive = "active"

// StatusUnknown is reported when the revocation service cannot be reached;
// an unknown status fails the check rather than crashing the request.
const StatusUnknown = "unknown"

// Checks selects which validations to run. Unset checks are skipped and do
// not influence the result, with one exception: a credential that declares a
// credentialStatus is always checked for revocation.
type Checks struct {
	Signature  bool
	Expiry     bool
	Revocation bool
}

// CredentialInput is either a raw credential object or its compact-token
// form. A non-empty Token wins.
type CredentialInput struct {
	Token      string
	Credential *vc.Credential
}

// CredentialResult reports the outcome of a validation run. Valid is the AND
// of every performed check; the other fields echo check detail for callers
// that need to know which check failed.
type CredentialResult struct {
	Valid              bool           `json:"valid"`
	Credential         *vc.Credential `json:"verifiableCredential,omitempty"`
	Token              string         `json:"jwt,omitempty"`
	ValidateExpiryDate *bool          `json:"validateExpiryDate,omitempty"`
	CredentialStatus   string         `json:"credentialStatus,omitempty"`
}

// Service runs the validation pipeline.
type Service struct {
	resolver   Resolver
	revocation RevocationClient

	logger       *slog.Logger
	tracer       trace.Tracer
	checkTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithRevocationClient wires the external revocation service. Without it,
// revocation checks on credentials that declare a status fail closed.
func WithRevocationClient(client RevocationClient) Option {
	return func(s *Service) { s.revocation = client }
}

// WithCheckTimeout bounds each outbound call (DID resolution, revocation
// lookup). A timeout downgrades to a failed check, never a service error.
func WithCheckTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.checkTimeout = timeout
		}
	}
}

func New(resolver Resolver, opts ...Option) *Service {
	s := &Service{
		resolver:     resolver,
		logger:       slog.Default(),
		tracer:       otel.Tracer("verification"),
		checkTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VerifyCredential runs the selected checks against the input. The returned
// error covers malformed input only; a credential that merely fails a check
// comes back with Valid=false.
func (s *Service) VerifyCredential(ctx context.Context, in CredentialInput, checks Checks) (*CredentialResult, error) {
	ctx, span := s.tracer.Start(ctx, "verification.VerifyCredential")
	defer span.End()

	res := &CredentialResult{Valid: true}

	var cred *vc.Credential
	switch {
	case in.Token != "":
		claims, err := parseCredentialToken(in.Token)
		if err != nil {
			return nil, err
		}
		cred = claims.VC
		res.Token = in.Token
		if checks.Signature && !s.tokenSignatureValid(ctx, in.Token, cred.Issuer) {
			res.Valid = false
		}
	case in.Credential != nil:
		cred = in.Credential
		if checks.Signature && !s.ProofValid(ctx, cred) {
			res.Valid = false
		}
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "a credential or a token is required")
	}
	res.Credential = cred

	if checks.Expiry {
		ok := !cred.IsExpiredAt(time.Now())
		res.ValidateExpiryDate = &ok
		if !ok {
			res.Valid = false
		}
	}

	if cred.CredentialStatus != nil {
		status := s.revocationStatus(ctx, cred.CredentialStatus)
		res.CredentialStatus = status
		if status != StatusActive {
			res.Valid = false
		}
	}

	return res, nil
}

// ProofValid reports whether a credential's embedded proof verifies against
// its resolved issuer document. Resolution and crypto failures are false,
// never errors.
func (s *Service) ProofValid(ctx context.Context, cred *vc.Credential) bool {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	doc, err := s.resolver.Resolve(ctx, cred.Issuer)
	if err != nil {
		s.logger.WarnContext(ctx, "issuer resolution failed",
			"issuer", cred.Issuer, "credential_id", cred.ID, "error", err)
		return false
	}
	if err := signing.VerifyCredentialProof(cred, doc); err != nil {
		s.logger.DebugContext(ctx, "credential proof invalid",
			"credential_id", cred.ID, "error", err)
		return false
	}
	return true
}

func (s *Service) tokenSignatureValid(ctx context.Context, token, issuer string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	doc, err := s.resolver.Resolve(ctx, issuer)
	if err != nil {
		s.logger.WarnContext(ctx, "issuer resolution failed", "issuer", issuer, "error", err)
		return false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"EdDSA", "ES256K"}),
		jwt.WithoutClaimsValidation(),
	)
	if _, err := parser.ParseWithClaims(token, &vc.CredentialClaims{}, signing.Keyfunc(doc)); err != nil {
		s.logger.DebugContext(ctx, "credential token signature invalid", "issuer", issuer, "error", err)
		return false
	}
	return true
}

func (s *Service) revocationStatus(ctx context.Context, status *vc.Status) string {
	if s.revocation == nil {
		return StatusUnknown
	}
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()

	result, err := s.revocation.StatusOf(ctx, status)
	if err != nil {
		s.logger.WarnContext(ctx, "revocation lookup failed", "status_id", status.ID, "error", err)
		return StatusUnknown
	}
	return result
}

// parseCredentialToken performs the structural parse only; signature checks
// are a separate, skippable step.
func parseCredentialToken(token string) (*vc.CredentialClaims, error) {
	claims := &vc.CredentialClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "parse credential token")
	}
	if claims.VC == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "token carries no vc claim")
	}
	return claims, nil
}
