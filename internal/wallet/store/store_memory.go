// Package store provides wallet persistence. The in-memory variant backs unit
// tests and single-node development; the Postgres variant is the production
// path.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"miw/internal/wallet/models"
	"miw/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded wallet store.
type InMemory struct {
	mu    sync.RWMutex
	byBPN map[string]*models.Wallet
	byDID map[string]*models.Wallet
}

func NewInMemory() *InMemory {
	return &InMemory{
		byBPN: make(map[string]*models.Wallet),
		byDID: make(map[string]*models.Wallet),
	}
}

func (s *InMemory) Create(ctx context.Context, w *models.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToUpper(w.BPN)
	if _, exists := s.byBPN[key]; exists {
		return fmt.Errorf("wallet for bpn %s: %w", w.BPN, sentinel.ErrConflict)
	}
	if _, exists := s.byDID[w.DID]; exists {
		return fmt.Errorf("wallet for did %s: %w", w.DID, sentinel.ErrConflict)
	}
	clone := *w
	s.byBPN[key] = &clone
	s.byDID[w.DID] = &clone
	return nil
}

func (s *InMemory) FindByBPN(ctx context.Context, bpn string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byBPN[strings.ToUpper(bpn)]
	if !ok {
		return nil, fmt.Errorf("wallet for bpn %s: %w", bpn, sentinel.ErrNotFound)
	}
	clone := *w
	return &clone, nil
}

func (s *InMemory) FindByDID(ctx context.Context, didStr string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byDID[didStr]
	if !ok {
		return nil, fmt.Errorf("wallet for did %s: %w", didStr, sentinel.ErrNotFound)
	}
	clone := *w
	return &clone, nil
}

func (s *InMemory) ExistsByBPN(ctx context.Context, bpn string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byBPN[strings.ToUpper(bpn)]
	return ok, nil
}

func (s *InMemory) List(ctx context.Context) ([]*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Wallet, 0, len(s.byBPN))
	for _, w := range s.byBPN {
		clone := *w
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BPN < out[j].BPN })
	return out, nil
}
