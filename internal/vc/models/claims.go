package models

import "github.com/golang-jwt/jwt/v5"

// CredentialClaims is the compact-token rendering of a credential: the
// embedded form travels under the vc claim, with exp derived from the
// credential's own expirationDate.
type CredentialClaims struct {
	VC *Credential `json:"vc"`
	jwt.RegisteredClaims
}

// PresentationClaims is the compact-token rendering of a presentation.
type PresentationClaims struct {
	VP *Presentation `json:"vp"`
	jwt.RegisteredClaims
}
