// Package sts implements the secure token service: issuing paired
// access/ID tokens between wallets and validating self-issued tokens that
// nest an access token.
package sts

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "miw/pkg/domain-errors"
	pstrings "miw/pkg/platform/strings"
)

// AccessClaims is the inner access token: issued by the self wallet for a
// partner audience, carrying the granted scopes and a replay-guarded jti.
type AccessClaims struct {
	Scope string `json:"scope"`
	Nonce string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// IDClaims is the outer token: self-issued (iss == sub), nesting the access
// token and sharing its expiry.
type IDClaims struct {
	AccessToken string `json:"access_token,omitempty"`
	Nonce       string `json:"nonce,omitempty"`
	jwt.RegisteredClaims
}

// IssueRequest asks for a token pair. Identifiers may be BPNs or DIDs.
type IssueRequest struct {
	SelfIdentifier    string   `json:"selfIdentifier"`
	PartnerIdentifier string   `json:"partnerIdentifier"`
	Scopes            []string `json:"scopes"`
}

func (r *IssueRequest) Normalize() {
	r.SelfIdentifier = strings.TrimSpace(r.SelfIdentifier)
	r.PartnerIdentifier = strings.TrimSpace(r.PartnerIdentifier)
	r.Scopes = pstrings.DedupeAndTrim(r.Scopes)
}

func (r *IssueRequest) Validate() error {
	if r.SelfIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "selfIdentifier is required")
	}
	if r.PartnerIdentifier == "" {
		return dErrors.New(dErrors.CodeValidation, "partnerIdentifier is required")
	}
	if len(r.Scopes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one scope is required")
	}
	return nil
}

// IssueResult is the issued pair. Both tokens expire at the same instant.
type IssueResult struct {
	IDToken     string    `json:"token"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ValidateRequest carries the self-issued token to validate.
type ValidateRequest struct {
	Token string `json:"token"`
}

func (r *ValidateRequest) Normalize() { r.Token = strings.TrimSpace(r.Token) }

func (r *ValidateRequest) Validate() error {
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "token is required")
	}
	return nil
}

// Named validation failures. Every failed check contributes one entry so
// callers can report which check failed.
const (
	CheckMalformedToken         = "malformed_token"
	CheckInvalidSubject         = "invalid_subject"
	CheckTokenExpired           = "token_expired"
	CheckMissingAccessToken     = "missing_access_token"
	CheckAudienceMismatch       = "audience_mismatch"
	CheckNonceMismatch          = "nonce_mismatch"
	CheckInvalidSignature       = "invalid_signature"
	CheckInvalidAccessSignature = "invalid_access_token_signature"
)

// ValidationResult is valid only when the error list is empty.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
