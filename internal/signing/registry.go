package signing

import (
	"context"

	"github.com/google/uuid"

	"miw/internal/did"
	dErrors "miw/pkg/domain-errors"
)

// Registry resolves signers by algorithm. The table is fixed at construction
// so dispatch is a map lookup, never reflection.
type Registry struct {
	keys     KeyStore
	signers  map[Algorithm]Signer
	variants map[Algorithm]variant
}

// NewRegistry builds the signer table over the given key store, one signer
// per supported algorithm.
func NewRegistry(keys KeyStore) *Registry {
	variants := []variant{ed25519Variant{}, secp256k1Variant{}}
	r := &Registry{
		keys:     keys,
		signers:  make(map[Algorithm]Signer, len(variants)),
		variants: make(map[Algorithm]variant, len(variants)),
	}
	for _, v := range variants {
		r.signers[v.algorithm()] = &signer{v: v, keys: keys}
		r.variants[v.algorithm()] = v
	}
	return r
}

// For returns the signer for a wallet's algorithm. An unknown algorithm is a
// configuration error.
func (r *Registry) For(alg Algorithm) (Signer, error) {
	s, ok := r.signers[alg]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeUnsupportedAlgorithm, "no signer registered for algorithm %q", alg)
	}
	return s, nil
}

// GenerateKeyPair creates a fresh key for the algorithm, persists the private
// part under the wallet id, and returns the public part as a JWK.
func (r *Registry) GenerateKeyPair(ctx context.Context, walletID uuid.UUID, alg Algorithm) (*did.JWK, error) {
	v, ok := r.variants[alg]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeUnsupportedAlgorithm, "no signer registered for algorithm %q", alg)
	}
	raw, jwk, err := v.generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate key pair")
	}
	if err := r.keys.SavePrivateKey(ctx, walletID, alg, raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist private key")
	}
	return jwk, nil
}
