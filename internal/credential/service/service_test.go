package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"miw/internal/audit"
	"miw/internal/credential/models"
	"miw/internal/credential/store"
	"miw/internal/did"
	"miw/internal/signing"
	vc "miw/internal/vc/models"
	walletmodels "miw/internal/wallet/models"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/requestcontext"
)

const (
	authorityBPN = "BPNL000000000000"
	holderBPN    = "BPNL000000000001"
)

// fakeWallets resolves wallets by BPN or DID from a fixed set.
type fakeWallets struct {
	byKey     map[string]*walletmodels.Wallet
	authority *walletmodels.Wallet
}

func (f *fakeWallets) add(w *walletmodels.Wallet) {
	f.byKey[strings.ToUpper(w.BPN)] = w
	f.byKey[w.DID] = w
}

func (f *fakeWallets) FindByIdentifier(ctx context.Context, identifier string) (*walletmodels.Wallet, error) {
	if w, ok := f.byKey[identifier]; ok {
		return w, nil
	}
	if w, ok := f.byKey[strings.ToUpper(identifier)]; ok {
		return w, nil
	}
	return nil, dErrors.Newf(dErrors.CodeNotFound, "wallet %s not found", identifier)
}

func (f *fakeWallets) Authority(ctx context.Context) (*walletmodels.Wallet, error) {
	return f.authority, nil
}

func (f *fakeWallets) AuthorityBPN() string { return authorityBPN }

type CredentialServiceSuite struct {
	suite.Suite
	registry *signing.Registry
	wallets  *fakeWallets
	holders  *store.HolderMemory
	issuers  *store.IssuerMemory
	sink     *audit.InMemorySink
	svc      *Service
	ctx      context.Context

	authority *walletmodels.Wallet
	holder    *walletmodels.Wallet
}

func TestCredentialServiceSuite(t *testing.T) {
	suite.Run(t, new(CredentialServiceSuite))
}

func (s *CredentialServiceSuite) SetupTest() {
	s.registry = signing.NewRegistry(signing.NewInMemoryKeyStore())
	s.wallets = &fakeWallets{byKey: map[string]*walletmodels.Wallet{}}
	s.holders = store.NewHolderMemory()
	s.issuers = store.NewIssuerMemory()
	s.sink = audit.NewInMemorySink()
	s.ctx = requestcontext.WithCallerBPN(context.Background(), authorityBPN)

	s.authority = s.newWallet(authorityBPN)
	s.holder = s.newWallet(holderBPN)
	s.wallets.authority = s.authority

	s.svc = New(s.wallets, s.holders, s.issuers, s.registry, Config{},
		WithAudit(audit.NewPublisher(s.sink)))
}

func (s *CredentialServiceSuite) newWallet(bpn string) *walletmodels.Wallet {
	id := uuid.New()
	jwk, err := s.registry.GenerateKeyPair(context.Background(), id, signing.AlgorithmED25519)
	s.Require().NoError(err)
	didStr := "did:web:wallets.example.com:" + bpn
	w, err := walletmodels.NewWallet(id, bpn, "wallet "+bpn, didStr,
		did.NewDocument(didStr, jwk), signing.AlgorithmED25519, time.Now())
	s.Require().NoError(err)
	s.wallets.add(w)
	return w
}

// liveSummaries returns the holder's non-stored summary records.
func (s *CredentialServiceSuite) liveSummaries(holderDID string) []*models.Record {
	all, err := s.holders.ListByHolder(context.Background(), holderDID, models.Filter{Type: vc.TypeSummary})
	s.Require().NoError(err)
	live := all[:0]
	for _, r := range all {
		if !r.Stored {
			live = append(live, r)
		}
	}
	return live
}

func (s *CredentialServiceSuite) summaryItems(holderDID string) []string {
	live := s.liveSummaries(holderDID)
	s.Require().Len(live, 1)
	items, err := live[0].Credential.SummaryItems()
	s.Require().NoError(err)
	return items
}

func (s *CredentialServiceSuite) TestMembershipThenDismantler() {
	_, err := s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)

	records, err := s.holders.ListByHolder(s.ctx, s.holder.DID, models.Filter{Type: vc.TypeMembership})
	s.Require().NoError(err)
	s.Len(records, 1)
	s.Equal([]string{vc.TypeMembership}, s.summaryItems(s.holder.DID))

	_, err = s.svc.IssueDismantler(s.ctx, models.IssueDismantlerRequest{
		BPN:          holderBPN,
		ActivityType: "vehicleDismantle",
	})
	s.Require().NoError(err)

	s.ElementsMatch([]string{vc.TypeMembership, vc.TypeDismantler}, s.summaryItems(s.holder.DID))
	s.Len(s.liveSummaries(s.holder.DID), 1)
}

func (s *CredentialServiceSuite) TestDuplicateMembershipConflicts() {
	_, err := s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)

	_, err = s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *CredentialServiceSuite) TestPrivilegedIssuanceRequiresAuthorityCaller() {
	ctx := requestcontext.WithCallerBPN(context.Background(), holderBPN)

	_, err := s.svc.IssueMembership(ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.IssueDismantler(ctx, models.IssueDismantlerRequest{BPN: holderBPN, ActivityType: "x"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CredentialServiceSuite) TestGenericIssueAsToken() {
	res, err := s.svc.Issue(s.ctx, models.IssueRequest{
		IssuerIdentifier: authorityBPN,
		HolderIdentifier: holderBPN,
		Types:            []string{"BehaviorTwinCredential"},
		Subject:          vc.Subject{"id": s.holder.DID, "purpose": "behavior twin"},
		AsJWT:            true,
	})
	s.Require().NoError(err)
	s.NotEmpty(res.Token)
	s.Require().NotNil(res.Credential)
	s.Contains(res.Credential.Type, "BehaviorTwinCredential")

	// Non-unique types may be issued repeatedly.
	_, err = s.svc.Issue(s.ctx, models.IssueRequest{
		IssuerIdentifier: authorityBPN,
		HolderIdentifier: holderBPN,
		Types:            []string{"BehaviorTwinCredential"},
		Subject:          vc.Subject{"id": s.holder.DID},
	})
	s.NoError(err)
}

func (s *CredentialServiceSuite) TestGenericIssueCallerMustOwnIssuerWallet() {
	ctx := requestcontext.WithCallerBPN(context.Background(), holderBPN)
	_, err := s.svc.Issue(ctx, models.IssueRequest{
		IssuerIdentifier: authorityBPN,
		HolderIdentifier: holderBPN,
		Types:            []string{"BehaviorTwinCredential"},
		Subject:          vc.Subject{"id": s.holder.DID},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CredentialServiceSuite) TestFrameworkUsesCaseTypeAsSpecificType() {
	res, err := s.svc.IssueFramework(s.ctx, models.IssueFrameworkRequest{
		HolderIdentifier: holderBPN,
		UseCaseType:      "SustainabilityCredential",
		ContractTemplate: "https://example.com/contracts/sustainability",
		ContractVersion:  "1.0",
	})
	s.Require().NoError(err)
	s.Contains(res.Credential.Type, vc.TypeFramework)
	s.Contains(res.Credential.Type, "SustainabilityCredential")
	s.Contains(s.summaryItems(s.holder.DID), vc.TypeFramework)
}

func (s *CredentialServiceSuite) TestStoreSkipsSummaryAndIssuerRecord() {
	ctx := requestcontext.WithCallerBPN(context.Background(), holderBPN)
	external := vc.Credential{
		Context: vc.DefaultContext,
		ID:      "did:web:other.example.com#cred-1",
		Type:    []string{vc.TypeVerifiableCredential, "PartnerCredential"},
		Issuer:  "did:web:other.example.com",
		CredentialSubject: vc.SubjectList{{
			"id": s.holder.DID,
		}},
	}

	rec, err := s.svc.Store(ctx, models.StoreRequest{HolderIdentifier: holderBPN, Credential: external})
	s.Require().NoError(err)
	s.True(rec.Stored)

	s.Empty(s.liveSummaries(s.holder.DID))
	issued, err := s.issuers.ListByIssuer(ctx, external.Issuer, models.Filter{})
	s.Require().NoError(err)
	s.Empty(issued)
}

func (s *CredentialServiceSuite) TestStoreRequiresHolderCaller() {
	_, err := s.svc.Store(requestcontext.WithCallerBPN(context.Background(), "BPNL000000000099"),
		models.StoreRequest{
			HolderIdentifier: holderBPN,
			Credential: vc.Credential{
				ID:                "urn:uuid:1",
				Type:              []string{vc.TypeVerifiableCredential},
				Issuer:            "did:web:other.example.com",
				CredentialSubject: vc.SubjectList{{"id": s.holder.DID}},
			},
		})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *CredentialServiceSuite) TestStoredSummaryExemption() {
	// An externally authored summary sits in the holder wallet.
	ctx := requestcontext.WithCallerBPN(context.Background(), holderBPN)
	storedSummary := vc.Credential{
		ID:     "did:web:other.example.com#summary-1",
		Type:   []string{vc.TypeVerifiableCredential, vc.TypeSummary},
		Issuer: "did:web:other.example.com",
		CredentialSubject: vc.SubjectList{{
			"id":    s.holder.DID,
			"items": []string{"MembershipCredential"},
		}},
	}
	_, err := s.svc.Store(ctx, models.StoreRequest{HolderIdentifier: holderBPN, Credential: storedSummary})
	s.Require().NoError(err)

	_, err = s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)

	all, err := s.holders.ListByHolder(ctx, s.holder.DID, models.Filter{Type: vc.TypeSummary})
	s.Require().NoError(err)
	var stored, live int
	for _, r := range all {
		if r.Stored {
			stored++
		} else {
			live++
		}
	}
	s.Equal(1, stored)
	s.Equal(1, live)
}

func (s *CredentialServiceSuite) TestDeleteRewritesSummaryWithoutType() {
	_, err := s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)
	res, err := s.svc.IssueDismantler(s.ctx, models.IssueDismantlerRequest{
		BPN:          holderBPN,
		ActivityType: "vehicleDismantle",
	})
	s.Require().NoError(err)

	holderCtx := requestcontext.WithCallerBPN(context.Background(), holderBPN)
	s.Require().NoError(s.svc.Delete(holderCtx, holderBPN, res.Credential.ID))

	s.Equal([]string{vc.TypeMembership}, s.summaryItems(s.holder.DID))

	_, err = s.holders.FindByHolderAndCredentialID(holderCtx, s.holder.DID, res.Credential.ID)
	s.Error(err)
}

func (s *CredentialServiceSuite) TestSummaryHistoryStaysAppendOnly() {
	_, err := s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)
	_, err = s.svc.IssueDismantler(s.ctx, models.IssueDismantlerRequest{
		BPN:          holderBPN,
		ActivityType: "vehicleDismantle",
	})
	s.Require().NoError(err)

	history, err := s.issuers.ListByIssuer(s.ctx, s.authority.DID, models.Filter{Type: vc.TypeSummary})
	s.Require().NoError(err)
	s.Len(history, 2)
}

func (s *CredentialServiceSuite) TestAuditTrail() {
	_, err := s.svc.IssueMembership(s.ctx, models.IssueMembershipRequest{BPN: holderBPN})
	s.Require().NoError(err)

	var actions []audit.Action
	for _, e := range s.sink.Events() {
		actions = append(actions, e.Action)
		s.Equal(authorityBPN, e.CallerBPN)
	}
	s.Contains(actions, audit.ActionCredentialIssued)
	s.Contains(actions, audit.ActionSummaryRebuilt)
}

func (s *CredentialServiceSuite) TestUnauthenticatedCallerRejected() {
	_, err := s.svc.IssueMembership(context.Background(), models.IssueMembershipRequest{BPN: holderBPN})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
