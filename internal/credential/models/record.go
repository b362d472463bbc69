// Package models defines the stored credential record shapes.
package models

import (
	"time"

	"github.com/google/uuid"

	vc "miw/internal/vc/models"
)

// Record is a stored, indexed wrapper around a credential. Every locally
// issued credential has exactly one holder record and one issuer record
// pointing at the same credential id; externally stored credentials have only
// a holder record.
type Record struct {
	ID           uuid.UUID `json:"id"`
	CredentialID string    `json:"credentialId"`
	HolderDID    string    `json:"holderDid"`
	IssuerDID    string    `json:"issuerDid"`
	// Type is the credential's primary specific type, used for indexing.
	Type string `json:"type"`
	// Stored marks credentials imported by the holder rather than issued
	// through this service. Stored summaries are exempt from the summary
	// rewrite.
	Stored     bool           `json:"stored"`
	Credential *vc.Credential `json:"credential"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NewRecord wraps a credential for storage under the given role fields.
func NewRecord(cred *vc.Credential, holderDID string, stored bool, createdAt time.Time) *Record {
	primary := ""
	if specific := cred.SpecificTypes(); len(specific) > 0 {
		primary = specific[0]
	}
	return &Record{
		ID:           uuid.New(),
		CredentialID: cred.ID,
		HolderDID:    holderDID,
		IssuerDID:    cred.Issuer,
		Type:         primary,
		Stored:       stored,
		Credential:   cred,
		CreatedAt:    createdAt,
	}
}

// Filter narrows holder/issuer record listings.
type Filter struct {
	Type         string
	CredentialID string
}

// Matches reports whether the record satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.CredentialID != "" && r.CredentialID != f.CredentialID {
		return false
	}
	return true
}
