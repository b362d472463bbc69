package signing

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethodES256K implements ECDSA over secp256k1 with SHA-256, the
// "ES256K" JOSE algorithm. golang-jwt does not ship it, so it is registered
// here and resolved by name during token parsing.
var SigningMethodES256K *signingMethodES256K

type signingMethodES256K struct{}

func init() {
	SigningMethodES256K = &signingMethodES256K{}
	jwt.RegisterSigningMethod(SigningMethodES256K.Alg(), func() jwt.SigningMethod {
		return SigningMethodES256K
	})
}

func (m *signingMethodES256K) Alg() string { return "ES256K" }

// Sign produces a 64-byte R||S signature, the JOSE raw encoding.
func (m *signingMethodES256K) Sign(signingString string, key any) ([]byte, error) {
	priv, ok := key.(*btcec.PrivateKey)
	if !ok {
		return nil, jwt.ErrInvalidKeyType
	}
	hash := sha256.Sum256([]byte(signingString))
	sig := ecdsa.Sign(priv, hash[:])
	r := sig.R()
	s := sig.S()
	rb := r.Bytes()
	sb := s.Bytes()
	out := make([]byte, 0, 64)
	out = append(out, rb[:]...)
	out = append(out, sb[:]...)
	return out, nil
}

func (m *signingMethodES256K) Verify(signingString string, sig []byte, key any) error {
	pub, ok := key.(*btcec.PublicKey)
	if !ok {
		return jwt.ErrInvalidKeyType
	}
	if len(sig) != 64 {
		return errors.New("ES256K signature must be 64 bytes")
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return jwt.ErrSignatureInvalid
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return jwt.ErrSignatureInvalid
	}
	hash := sha256.Sum256([]byte(signingString))
	if !ecdsa.NewSignature(&r, &s).Verify(hash[:], pub) {
		return jwt.ErrSignatureInvalid
	}
	return nil
}
