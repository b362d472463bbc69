// Package signing is the algorithm-polymorphic signing layer. A wallet's
// configured algorithm selects the concrete signer; the request selects the
// encoding (embedded proof vs. compact token). All key material flows through
// the KeyStore so signers never hold keys themselves.
package signing

import (
	"strings"

	dErrors "miw/pkg/domain-errors"
)

// Algorithm identifies a supported signature scheme. Algorithm is a property
// of wallet identity, fixed at wallet creation.
type Algorithm string

const (
	AlgorithmED25519   Algorithm = "ED25519"
	AlgorithmSecp256k1 Algorithm = "SECP256K1"
)

// ParseAlgorithm validates an algorithm name. Unknown algorithms are a
// configuration error, not a user error.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToUpper(strings.TrimSpace(s))) {
	case AlgorithmED25519:
		return AlgorithmED25519, nil
	case AlgorithmSecp256k1:
		return AlgorithmSecp256k1, nil
	default:
		return "", dErrors.Newf(dErrors.CodeUnsupportedAlgorithm, "unsupported signing algorithm %q", s)
	}
}

// Encoding selects the artifact serialization.
type Encoding string

const (
	// EncodingEmbedded produces a JSON object with an attached proof.
	EncodingEmbedded Encoding = "embedded"
	// EncodingJWT wraps the embedded form in a signed compact token.
	EncodingJWT Encoding = "jwt"
)
