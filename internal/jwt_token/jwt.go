// Package jwttoken validates service-auth tokens from the identity provider.
// These are plain HMAC tokens carrying the caller's BPN; they are unrelated
// to the verifiable-credential tokens the signing package produces.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"miw/internal/platform/middleware"
	dErrors "miw/pkg/domain-errors"
)

// Claims are the identity-provider token claims this service reads.
type Claims struct {
	BPN string `json:"bpn"`
	jwt.RegisteredClaims
}

// JWTService handles service-auth token creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken mints a caller token. Used by tests and local development;
// production deployments take tokens from the external identity provider.
func (s *JWTService) GenerateToken(bpn string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		BPN: bpn,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   bpn,
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks signature and expiry and returns the caller identity.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.BPN == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no bpn claim")
	}
	return &middleware.Identity{BPN: claims.BPN, Subject: claims.Subject}, nil
}
