// Package presentation builds and validates verifiable presentations,
// including the token-driven scoped flow.
package presentation

import (
	"strings"

	vc "miw/internal/vc/models"
	dErrors "miw/pkg/domain-errors"
)

// CreateRequest builds one presentation over credentials the caller holds.
type CreateRequest struct {
	Credentials []vc.Credential `json:"verifiableCredentials"`
	Audience    string          `json:"audience,omitempty"`
	AsJWT       bool            `json:"asJwt,omitempty"`
}

func (r *CreateRequest) Normalize() { r.Audience = strings.TrimSpace(r.Audience) }

func (r *CreateRequest) Validate() error {
	if len(r.Credentials) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one credential is required")
	}
	if r.AsJWT && r.Audience == "" {
		return dErrors.New(dErrors.CodeBadRequest, "audience is required for token presentations")
	}
	return nil
}

// CreateResult carries the presentation in the requested encoding.
type CreateResult struct {
	Presentation *vc.Presentation `json:"vp,omitempty"`
	Token        string           `json:"jwt,omitempty"`
}

// ValidateRequest checks a compact-token presentation. Embedded JSON-LD
// presentations are not supported and fail with a bad-request error.
type ValidateRequest struct {
	Token        string           `json:"vp,omitempty"`
	Presentation *vc.Presentation `json:"presentation,omitempty"`
	Audience     string           `json:"audience,omitempty"`
	WithExpiry   bool             `json:"withDateValidation,omitempty"`
}

func (r *ValidateRequest) Normalize() {
	r.Token = strings.TrimSpace(r.Token)
	r.Audience = strings.TrimSpace(r.Audience)
}

func (r *ValidateRequest) Validate() error {
	if r.Presentation != nil {
		return dErrors.New(dErrors.CodeBadRequest, "embedded presentation validation is not supported, pass a token")
	}
	if r.Token == "" {
		return dErrors.New(dErrors.CodeValidation, "a presentation token is required")
	}
	return nil
}

// ValidateResult reports the combined outcome: the AND of the presentation
// checks and every embedded credential's checks.
type ValidateResult struct {
	Valid        bool             `json:"valid"`
	Presentation *vc.Presentation `json:"vp,omitempty"`
	Token        string           `json:"jwt,omitempty"`
}

// ScopedRequest drives presentation creation from an access token whose
// scope claim names the credential types to present.
type ScopedRequest struct {
	AccessToken string `json:"accessToken"`
	AsJWT       bool   `json:"asJwt,omitempty"`
}

func (r *ScopedRequest) Normalize() { r.AccessToken = strings.TrimSpace(r.AccessToken) }

func (r *ScopedRequest) Validate() error {
	if r.AccessToken == "" {
		return dErrors.New(dErrors.CodeValidation, "accessToken is required")
	}
	return nil
}
