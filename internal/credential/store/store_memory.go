// Package store persists credential records, split into holder-side and
// issuer-side tables per the record ownership rules: holder records are
// deleted when superseded, issuer records are append-only.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"miw/internal/credential/models"
	vc "miw/internal/vc/models"
	"miw/pkg/platform/sentinel"
)

// HolderMemory is the in-memory holder-side record store.
type HolderMemory struct {
	mu      sync.RWMutex
	records []*models.Record
}

func NewHolderMemory() *HolderMemory {
	return &HolderMemory{}
}

func (s *HolderMemory) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.records = append(s.records, &clone)
	return nil
}

func (s *HolderMemory) ListByHolder(ctx context.Context, holderDID string, filter models.Filter) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, r := range s.records {
		if r.HolderDID == holderDID && filter.Matches(r) {
			clone := *r
			out = append(out, &clone)
		}
	}
	sortByCreatedAtDesc(out)
	return out, nil
}

func (s *HolderMemory) FindByHolderAndTypes(ctx context.Context, holderDID string, types []string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	var out []*models.Record
	for _, r := range s.records {
		if r.HolderDID == holderDID && wanted[r.Type] {
			clone := *r
			out = append(out, &clone)
		}
	}
	sortByCreatedAtDesc(out)
	return out, nil
}

func (s *HolderMemory) FindByHolderAndCredentialID(ctx context.Context, holderDID, credentialID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.HolderDID == holderDID && r.CredentialID == credentialID {
			clone := *r
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("holder record %s: %w", credentialID, sentinel.ErrNotFound)
}

func (s *HolderMemory) Delete(ctx context.Context, holderDID, credentialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.HolderDID == holderDID && r.CredentialID == credentialID {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("holder record %s: %w", credentialID, sentinel.ErrNotFound)
}

// DeleteSupersededSummaries removes every non-stored summary holder record
// for the (holder, issuer) pair. Stored summaries are never touched.
func (s *HolderMemory) DeleteSupersededSummaries(ctx context.Context, holderDID, issuerDID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		superseded := r.HolderDID == holderDID &&
			r.IssuerDID == issuerDID &&
			r.Type == vc.TypeSummary &&
			!r.Stored
		if !superseded {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return nil
}

// IssuerMemory is the in-memory issuer-side record store. It has no delete
// operation: issuer history is append-only.
type IssuerMemory struct {
	mu      sync.RWMutex
	records []*models.Record
}

func NewIssuerMemory() *IssuerMemory {
	return &IssuerMemory{}
}

func (s *IssuerMemory) Create(ctx context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.records = append(s.records, &clone)
	return nil
}

func (s *IssuerMemory) ListByIssuer(ctx context.Context, issuerDID string, filter models.Filter) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, r := range s.records {
		if r.IssuerDID == issuerDID && filter.Matches(r) {
			clone := *r
			out = append(out, &clone)
		}
	}
	sortByCreatedAtDesc(out)
	return out, nil
}

// LatestSummary returns the most recently created summary record for the
// (issuer, holder) pair, or sentinel.ErrNotFound.
func (s *IssuerMemory) LatestSummary(ctx context.Context, issuerDID, holderDID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Record
	for _, r := range s.records {
		if r.IssuerDID != issuerDID || r.HolderDID != holderDID || r.Type != vc.TypeSummary {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("summary for %s/%s: %w", issuerDID, holderDID, sentinel.ErrNotFound)
	}
	clone := *latest
	return &clone, nil
}

// CountByHolderAndType counts issued records of a type for a holder, used by
// the duplicate-issuance guard.
func (s *IssuerMemory) CountByHolderAndType(ctx context.Context, issuerDID, holderDID, credType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.records {
		if r.IssuerDID == issuerDID && r.HolderDID == holderDID && r.Type == credType {
			count++
		}
	}
	return count, nil
}

func sortByCreatedAtDesc(records []*models.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
