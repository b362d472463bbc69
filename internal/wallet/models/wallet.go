// Package models defines the wallet identity root.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"miw/internal/did"
	"miw/internal/signing"
	dErrors "miw/pkg/domain-errors"
)

// Wallet is the identity root for one tenant: a business partner number bound
// to a DID and a signing algorithm. Immutable after creation except for the
// credential collections hanging off it.
type Wallet struct {
	ID        uuid.UUID
	BPN       string
	Name      string
	DID       string
	Document  *did.Document
	Algorithm signing.Algorithm
	CreatedAt time.Time
}

// NewWallet constructs a wallet with validated invariants.
func NewWallet(id uuid.UUID, bpn, name, didStr string, doc *did.Document, alg signing.Algorithm, createdAt time.Time) (*Wallet, error) {
	bpn = strings.TrimSpace(bpn)
	if bpn == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "bpn is required")
	}
	if didStr == "" || doc == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "did and DID document are required")
	}
	if _, err := signing.ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}
	return &Wallet{
		ID:        id,
		BPN:       bpn,
		Name:      strings.TrimSpace(name),
		DID:       didStr,
		Document:  doc,
		Algorithm: alg,
		CreatedAt: createdAt,
	}, nil
}

// CreateWalletRequest is the service-level request for wallet creation.
type CreateWalletRequest struct {
	BPN       string            `json:"bpn"`
	Name      string            `json:"name"`
	Algorithm signing.Algorithm `json:"algorithm,omitempty"`
}

func (r *CreateWalletRequest) Normalize() {
	r.BPN = strings.TrimSpace(r.BPN)
	r.Name = strings.TrimSpace(r.Name)
	if r.Algorithm == "" {
		r.Algorithm = signing.AlgorithmED25519
	}
}

func (r *CreateWalletRequest) Validate() error {
	if r.BPN == "" {
		return dErrors.New(dErrors.CodeValidation, "bpn is required")
	}
	if _, err := signing.ParseAlgorithm(string(r.Algorithm)); err != nil {
		return err
	}
	return nil
}
