package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"miw/internal/credential/models"
	vc "miw/internal/vc/models"
	"miw/pkg/platform/sentinel"
)

const (
	issuerDID = "did:web:example.com:BPNL000000000000"
	holderDID = "did:web:example.com:BPNL000000000001"
)

type RecordStoreSuite struct {
	suite.Suite
	holders *HolderMemory
	issuers *IssuerMemory
	ctx     context.Context
}

func (s *RecordStoreSuite) SetupTest() {
	s.holders = NewHolderMemory()
	s.issuers = NewIssuerMemory()
	s.ctx = context.Background()
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) newCredential(credType string) *vc.Credential {
	return &vc.Credential{
		Context:           vc.DefaultContext,
		ID:                issuerDID + "#" + credType + "-" + time.Now().Format("150405.000000000"),
		Type:              []string{vc.TypeVerifiableCredential, credType},
		Issuer:            issuerDID,
		IssuanceDate:      time.Now().UTC(),
		CredentialSubject: vc.SubjectList{{"id": holderDID}},
	}
}

func (s *RecordStoreSuite) TestHolderRecordLifecycle() {
	s.Run("creates and lists by type", func() {
		rec := models.NewRecord(s.newCredential(vc.TypeMembership), holderDID, false, time.Now())
		s.Require().NoError(s.holders.Create(s.ctx, rec))

		found, err := s.holders.ListByHolder(s.ctx, holderDID, models.Filter{Type: vc.TypeMembership})
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(rec.CredentialID, found[0].CredentialID)
	})

	s.Run("delete removes the record", func() {
		rec := models.NewRecord(s.newCredential(vc.TypeDismantler), holderDID, false, time.Now())
		s.Require().NoError(s.holders.Create(s.ctx, rec))
		s.Require().NoError(s.holders.Delete(s.ctx, holderDID, rec.CredentialID))

		_, err := s.holders.FindByHolderAndCredentialID(s.ctx, holderDID, rec.CredentialID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("delete of unknown record reports not found", func() {
		err := s.holders.Delete(s.ctx, holderDID, "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *RecordStoreSuite) TestFindByHolderAndTypes() {
	for _, credType := range []string{vc.TypeMembership, vc.TypeDismantler, vc.TypeBPN} {
		rec := models.NewRecord(s.newCredential(credType), holderDID, false, time.Now())
		s.Require().NoError(s.holders.Create(s.ctx, rec))
	}

	found, err := s.holders.FindByHolderAndTypes(s.ctx, holderDID, []string{vc.TypeMembership, vc.TypeBPN})
	s.Require().NoError(err)
	s.Len(found, 2)
}

func (s *RecordStoreSuite) TestSupersededSummaryDeletion() {
	base := time.Now().Add(-time.Hour)

	issued := models.NewRecord(s.newCredential(vc.TypeSummary), holderDID, false, base)
	stored := models.NewRecord(s.newCredential(vc.TypeSummary), holderDID, true, base.Add(time.Minute))
	other := models.NewRecord(s.newCredential(vc.TypeMembership), holderDID, false, base)
	for _, r := range []*models.Record{issued, stored, other} {
		s.Require().NoError(s.holders.Create(s.ctx, r))
	}

	s.Require().NoError(s.holders.DeleteSupersededSummaries(s.ctx, holderDID, issuerDID))

	summaries, err := s.holders.ListByHolder(s.ctx, holderDID, models.Filter{Type: vc.TypeSummary})
	s.Require().NoError(err)
	s.Require().Len(summaries, 1, "only the stored summary survives")
	s.True(summaries[0].Stored)

	memberships, err := s.holders.ListByHolder(s.ctx, holderDID, models.Filter{Type: vc.TypeMembership})
	s.Require().NoError(err)
	s.Len(memberships, 1)
}

func (s *RecordStoreSuite) TestIssuerLatestSummary() {
	s.Run("not found without summaries", func() {
		_, err := s.issuers.LatestSummary(s.ctx, issuerDID, holderDID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns the most recent summary", func() {
		older := models.NewRecord(s.newCredential(vc.TypeSummary), holderDID, false, time.Now().Add(-time.Hour))
		newer := models.NewRecord(s.newCredential(vc.TypeSummary), holderDID, false, time.Now())
		s.Require().NoError(s.issuers.Create(s.ctx, older))
		s.Require().NoError(s.issuers.Create(s.ctx, newer))

		latest, err := s.issuers.LatestSummary(s.ctx, issuerDID, holderDID)
		s.Require().NoError(err)
		s.Equal(newer.CredentialID, latest.CredentialID)
	})
}

func (s *RecordStoreSuite) TestIssuerHistoryIsAppendOnly() {
	rec := models.NewRecord(s.newCredential(vc.TypeMembership), holderDID, false, time.Now())
	s.Require().NoError(s.issuers.Create(s.ctx, rec))

	count, err := s.issuers.CountByHolderAndType(s.ctx, issuerDID, holderDID, vc.TypeMembership)
	s.Require().NoError(err)
	s.Equal(1, count)
}
