package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"miw/internal/did"
	dErrors "miw/pkg/domain-errors"
)

type ed25519Variant struct{}

func (ed25519Variant) algorithm() Algorithm      { return AlgorithmED25519 }
func (ed25519Variant) method() jwt.SigningMethod { return jwt.SigningMethodEdDSA }

func (ed25519Variant) generate() ([]byte, *did.JWK, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return priv, did.JWKFromEd25519(pub), nil
}

func (ed25519Variant) privateKey(raw []byte) (any, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "ed25519 private key has %d bytes", len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func (ed25519Variant) publicKey(jwk *did.JWK) (any, error) {
	return jwk.Ed25519Key()
}
