// Package store provides the JTI replay ledger backends.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"miw/pkg/platform/sentinel"
)

type jtiRecord struct {
	used      bool
	expiresAt time.Time
}

// JTIMemory is the in-memory replay ledger. Entries for expired tokens are
// pruned lazily on access.
type JTIMemory struct {
	mu      sync.Mutex
	records map[string]*jtiRecord
}

func NewJTIMemory() *JTIMemory {
	return &JTIMemory{records: map[string]*jtiRecord{}}
}

// Register records a freshly issued jti as unused. Registering a jti that is
// already present is a no-op.
func (s *JTIMemory) Register(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	if _, ok := s.records[jti]; ok {
		return nil
	}
	s.records[jti] = &jtiRecord{expiresAt: expiresAt}
	return nil
}

// Consume atomically marks a jti as used. The check and the mark happen
// under one lock so two concurrent consumers cannot both see "unused".
func (s *JTIMemory) Consume(ctx context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune()
	if r, ok := s.records[jti]; ok {
		if r.used {
			return fmt.Errorf("jti %s: %w", jti, sentinel.ErrAlreadyUsed)
		}
		r.used = true
		return nil
	}
	s.records[jti] = &jtiRecord{used: true, expiresAt: expiresAt}
	return nil
}

// prune drops entries whose token already expired; an expired token fails
// signature-independent expiry checks anyway, so its replay state is moot.
func (s *JTIMemory) prune() {
	now := time.Now()
	for jti, r := range s.records {
		if now.After(r.expiresAt) {
			delete(s.records, jti)
		}
	}
}
