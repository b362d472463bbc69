package signing

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/golang-jwt/jwt/v5"

	"miw/internal/did"
	dErrors "miw/pkg/domain-errors"
)

type secp256k1Variant struct{}

func (secp256k1Variant) algorithm() Algorithm      { return AlgorithmSecp256k1 }
func (secp256k1Variant) method() jwt.SigningMethod { return SigningMethodES256K }

func (secp256k1Variant) generate() ([]byte, *did.JWK, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate secp256k1 key: %w", err)
	}
	return priv.Serialize(), did.JWKFromSecp256k1(priv.PubKey()), nil
}

func (secp256k1Variant) privateKey(raw []byte) (any, error) {
	if len(raw) != 32 {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "secp256k1 private key has %d bytes", len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return priv, nil
}

func (secp256k1Variant) publicKey(jwk *did.JWK) (any, error) {
	return jwk.Secp256k1Key()
}
