package signing

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"miw/internal/did"
	"miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/requestcontext"
)

// CredentialConfig describes one credential to sign. Required fields are
// enforced by Validate so constraint checks live in one place instead of
// scattered nil checks at call sites.
type CredentialConfig struct {
	ID             string // defaulted to issuerDID#uuid when empty
	Context        []string
	Types          []string // specific types; the base type is prepended
	IssuerDoc      *did.Document
	IssuerWalletID uuid.UUID
	HolderDID      string
	Subjects       models.SubjectList
	ExpirationDate *time.Time
	SelfIssued     bool
	Status         *models.Status
	Encoding       Encoding
}

func (c *CredentialConfig) Validate() error {
	if c.IssuerDoc == nil {
		return dErrors.New(dErrors.CodeValidation, "issuer DID document is required")
	}
	if len(c.Subjects) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one credential subject is required")
	}
	if c.IssuerWalletID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "issuer wallet id is required")
	}
	if c.Encoding != EncodingEmbedded && c.Encoding != EncodingJWT {
		return dErrors.Newf(dErrors.CodeValidation, "unknown encoding %q", c.Encoding)
	}
	return nil
}

// PresentationConfig describes one presentation to sign. Audience is
// mandatory only for the compact-token encoding; Validate enforces this.
type PresentationConfig struct {
	ID             string
	HolderDoc      *did.Document
	HolderWalletID uuid.UUID
	Audience       string
	Credentials    []models.Credential
	Encoding       Encoding
}

func (c *PresentationConfig) Validate() error {
	if c.HolderDoc == nil {
		return dErrors.New(dErrors.CodeValidation, "holder DID document is required")
	}
	if c.HolderWalletID == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "holder wallet id is required")
	}
	if len(c.Credentials) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one credential is required")
	}
	if c.Encoding == EncodingJWT && c.Audience == "" {
		return dErrors.New(dErrors.CodeBadRequest, "audience is required for token presentations")
	}
	if c.Encoding != EncodingEmbedded && c.Encoding != EncodingJWT {
		return dErrors.Newf(dErrors.CodeValidation, "unknown encoding %q", c.Encoding)
	}
	return nil
}

// SignedCredential is the output of CreateCredential. Token is set only for
// the compact-token encoding; Credential is always populated.
type SignedCredential struct {
	Credential *models.Credential
	Token      string
}

// SignedPresentation is the output of CreatePresentation.
type SignedPresentation struct {
	Presentation *models.Presentation
	Token        string
}

// Signer produces signed credentials, presentations, and raw detached
// signatures for one algorithm.
type Signer interface {
	Algorithm() Algorithm
	CreateCredential(ctx context.Context, cfg CredentialConfig) (*SignedCredential, error)
	CreatePresentation(ctx context.Context, cfg PresentationConfig) (*SignedPresentation, error)
	SignDetached(ctx context.Context, walletID uuid.UUID, payload []byte) (string, error)
	SignToken(ctx context.Context, walletID uuid.UUID, claims jwt.Claims, kid string) (string, error)
}

// variant supplies the per-algorithm primitives the generic signer builds on.
type variant interface {
	algorithm() Algorithm
	method() jwt.SigningMethod
	generate() ([]byte, *did.JWK, error)
	privateKey(raw []byte) (any, error)
	publicKey(jwk *did.JWK) (any, error)
}

type signer struct {
	v    variant
	keys KeyStore
}

func (s *signer) Algorithm() Algorithm { return s.v.algorithm() }

func (s *signer) key(ctx context.Context, walletID uuid.UUID) (any, error) {
	raw, err := s.keys.PrivateKeyFor(ctx, walletID, s.v.algorithm())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "private key not found")
	}
	return s.v.privateKey(raw)
}

func (s *signer) CreateCredential(ctx context.Context, cfg CredentialConfig) (*SignedCredential, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC().Truncate(time.Second)

	credID := cfg.ID
	if credID == "" {
		credID = cfg.IssuerDoc.ID + "#" + uuid.NewString()
	}
	credContext := cfg.Context
	if len(credContext) == 0 {
		credContext = append([]string(nil), models.DefaultContext...)
	}

	cred := &models.Credential{
		Context:           credContext,
		ID:                credID,
		Type:              append([]string{models.TypeVerifiableCredential}, cfg.Types...),
		Issuer:            cfg.IssuerDoc.ID,
		IssuanceDate:      now,
		ExpirationDate:    cfg.ExpirationDate,
		CredentialSubject: cfg.Subjects,
		CredentialStatus:  cfg.Status,
	}

	vm, err := cfg.IssuerDoc.FindVerificationMethod("")
	if err != nil {
		return nil, err
	}
	key, err := s.key(ctx, cfg.IssuerWalletID)
	if err != nil {
		return nil, err
	}

	switch cfg.Encoding {
	case EncodingEmbedded:
		payload, err := cred.SigningInput()
		if err != nil {
			return nil, fmt.Errorf("serialize credential: %w", err)
		}
		jws, err := signDetached(s.v.method(), key, payload)
		if err != nil {
			return nil, err
		}
		cred.Proof = &models.Proof{
			Type:               models.ProofTypeJWS2020,
			Created:            now,
			ProofPurpose:       models.ProofPurposeAssertion,
			VerificationMethod: vm.ID,
			JWS:                jws,
		}
		return &SignedCredential{Credential: cred}, nil

	case EncodingJWT:
		claims := models.CredentialClaims{
			VC: cred,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:   cred.Issuer,
				Subject:  cfg.HolderDID,
				ID:       cred.ID,
				IssuedAt: jwt.NewNumericDate(now),
			},
		}
		// exp is always derived from the credential's own expiry, never a
		// fixed TTL.
		if cred.ExpirationDate != nil {
			claims.ExpiresAt = jwt.NewNumericDate(*cred.ExpirationDate)
		}
		token, err := s.signClaims(claims, key, vm.ID)
		if err != nil {
			return nil, err
		}
		return &SignedCredential{Credential: cred, Token: token}, nil

	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown encoding %q", cfg.Encoding)
	}
}

func (s *signer) CreatePresentation(ctx context.Context, cfg PresentationConfig) (*SignedPresentation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC().Truncate(time.Second)

	vpID := cfg.ID
	if vpID == "" {
		vpID = "urn:uuid:" + uuid.NewString()
	}
	vp := &models.Presentation{
		Context:              []string{models.ContextCredentialsV1},
		ID:                   vpID,
		Type:                 []string{models.TypeVerifiablePresentation},
		Holder:               cfg.HolderDoc.ID,
		VerifiableCredential: cfg.Credentials,
	}

	vm, err := cfg.HolderDoc.FindVerificationMethod("")
	if err != nil {
		return nil, err
	}
	key, err := s.key(ctx, cfg.HolderWalletID)
	if err != nil {
		return nil, err
	}

	switch cfg.Encoding {
	case EncodingEmbedded:
		payload, err := vp.SigningInput()
		if err != nil {
			return nil, fmt.Errorf("serialize presentation: %w", err)
		}
		jws, err := signDetached(s.v.method(), key, payload)
		if err != nil {
			return nil, err
		}
		vp.Proof = &models.Proof{
			Type:               models.ProofTypeJWS2020,
			Created:            now,
			ProofPurpose:       models.ProofPurposeAssertion,
			VerificationMethod: vm.ID,
			JWS:                jws,
		}
		return &SignedPresentation{Presentation: vp}, nil

	case EncodingJWT:
		claims := models.PresentationClaims{
			VP: vp,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:   cfg.HolderDoc.ID,
				Subject:  cfg.HolderDoc.ID,
				Audience: jwt.ClaimStrings{cfg.Audience},
				ID:       vpID,
				IssuedAt: jwt.NewNumericDate(now),
			},
		}
		// The token expires with the earliest embedded credential so that a
		// presentation can never outlive its contents.
		if earliest := earliestExpiry(cfg.Credentials); earliest != nil {
			claims.ExpiresAt = jwt.NewNumericDate(*earliest)
		}
		token, err := s.signClaims(claims, key, vm.ID)
		if err != nil {
			return nil, err
		}
		return &SignedPresentation{Presentation: vp, Token: token}, nil

	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown encoding %q", cfg.Encoding)
	}
}

func (s *signer) SignDetached(ctx context.Context, walletID uuid.UUID, payload []byte) (string, error) {
	key, err := s.key(ctx, walletID)
	if err != nil {
		return "", err
	}
	return signDetached(s.v.method(), key, payload)
}

// SignToken signs arbitrary claims as a compact token with this signer's
// algorithm. The STS builds its token pair through this path.
func (s *signer) SignToken(ctx context.Context, walletID uuid.UUID, claims jwt.Claims, kid string) (string, error) {
	key, err := s.key(ctx, walletID)
	if err != nil {
		return "", err
	}
	return s.signClaims(claims, key, kid)
}

func (s *signer) signClaims(claims jwt.Claims, key any, kid string) (string, error) {
	token := jwt.NewWithClaims(s.v.method(), claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func earliestExpiry(creds []models.Credential) *time.Time {
	var earliest *time.Time
	for i := range creds {
		exp := creds[i].ExpirationDate
		if exp == nil {
			continue
		}
		if earliest == nil || exp.Before(*earliest) {
			earliest = exp
		}
	}
	return earliest
}
