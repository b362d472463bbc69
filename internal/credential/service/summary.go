package service

import (
	"context"
	"errors"
	"strings"

	"miw/internal/audit"
	"miw/internal/credential/models"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	walletmodels "miw/internal/wallet/models"
	"miw/pkg/platform/sentinel"
	"miw/pkg/requestcontext"
)

// rebuildSummary replaces the live summary credential for an (issuer, holder)
// pair. The item list is seeded from the newest issuer-side summary record,
// transformed by mutate, and re-issued as a fresh credential: the old summary
// is superseded, never mutated, so issuer history stays append-only while the
// holder sees exactly one live summary. Stored (externally authored) summary
// credentials in the holder wallet are left untouched.
//
// Must run inside the caller's transaction.
func (s *Service) rebuildSummary(ctx context.Context, issuer, holder *walletmodels.Wallet, mutate func([]string) []string) error {
	var items []string
	latest, err := s.issuers.LatestSummary(ctx, issuer.DID, holder.DID)
	switch {
	case err == nil:
		items, err = latest.Credential.SummaryItems()
		if err != nil {
			return err
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// First credential for this pair; start empty.
	default:
		return err
	}
	items = mutate(items)

	if err := s.holders.DeleteSupersededSummaries(ctx, holder.DID, issuer.DID); err != nil {
		return err
	}

	signer, err := s.signers.For(issuer.Algorithm)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)
	expiry := now.Add(s.cfg.CredentialValidity)
	signed, err := signer.CreateCredential(ctx, signing.CredentialConfig{
		Types:          []string{vc.TypeSummary},
		IssuerDoc:      issuer.Document,
		IssuerWalletID: issuer.ID,
		HolderDID:      holder.DID,
		Subjects: vc.SubjectList{{
			"id":               holder.DID,
			"holderIdentifier": holder.BPN,
			"items":            items,
		}},
		ExpirationDate: &expiry,
		SelfIssued:     strings.EqualFold(holder.BPN, s.wallets.AuthorityBPN()),
		Encoding:       signing.EncodingEmbedded,
	})
	if err != nil {
		return err
	}

	if err := s.holders.Create(ctx, models.NewRecord(signed.Credential, holder.DID, false, now)); err != nil {
		return err
	}
	if err := s.issuers.Create(ctx, models.NewRecord(signed.Credential, holder.DID, false, now)); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.SummariesRebuilt.Inc()
	}
	s.emit(ctx, audit.Event{
		Action:       audit.ActionSummaryRebuilt,
		HolderDID:    holder.DID,
		IssuerDID:    issuer.DID,
		CredentialID: signed.Credential.ID,
		Type:         vc.TypeSummary,
	})
	return nil
}
