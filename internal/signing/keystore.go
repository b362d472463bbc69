package signing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"miw/pkg/platform/sentinel"
)

// KeyStore hands out decrypted private key material for a wallet. Encryption
// at rest is the store implementation's concern; signers always receive raw
// key bytes.
type KeyStore interface {
	PrivateKeyFor(ctx context.Context, walletID uuid.UUID, alg Algorithm) ([]byte, error)
	SavePrivateKey(ctx context.Context, walletID uuid.UUID, alg Algorithm, key []byte) error
}

// InMemoryKeyStore keeps private keys in process memory. Unit tests and
// single-node development use this; production wires the Postgres store.
type InMemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{keys: make(map[string][]byte)}
}

func (s *InMemoryKeyStore) PrivateKeyFor(ctx context.Context, walletID uuid.UUID, alg Algorithm) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID(walletID, alg)]
	if !ok {
		return nil, fmt.Errorf("private key for wallet %s (%s): %w", walletID, alg, sentinel.ErrNotFound)
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, nil
}

func (s *InMemoryKeyStore) SavePrivateKey(ctx context.Context, walletID uuid.UUID, alg Algorithm, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(key))
	copy(stored, key)
	s.keys[keyID(walletID, alg)] = stored
	return nil
}

func keyID(walletID uuid.UUID, alg Algorithm) string {
	return walletID.String() + "/" + string(alg)
}
