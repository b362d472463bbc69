package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"miw/internal/audit"
	"miw/internal/signing"
	"miw/internal/wallet/models"
	"miw/internal/wallet/store"
	dErrors "miw/pkg/domain-errors"
	"miw/pkg/requestcontext"
)

const (
	testHost     = "wallets.example.com"
	authorityBPN = "BPNL000000000000"
	tenantBPN    = "BPNL000000000001"
)

type WalletServiceSuite struct {
	suite.Suite
	keys    *signing.InMemoryKeyStore
	signers *signing.Registry
	sink    *audit.InMemorySink
	svc     *Service
}

func (s *WalletServiceSuite) SetupTest() {
	s.keys = signing.NewInMemoryKeyStore()
	s.signers = signing.NewRegistry(s.keys)
	s.sink = audit.NewInMemorySink()
	s.svc = New(store.NewInMemory(), s.signers, Config{
		Host:          testHost,
		AuthorityBPN:  authorityBPN,
		AuthorityName: "Authority Operator",
	}, WithAudit(audit.NewPublisher(s.sink)))
}

func TestWalletServiceSuite(t *testing.T) {
	suite.Run(t, new(WalletServiceSuite))
}

func (s *WalletServiceSuite) callerCtx(bpn string) context.Context {
	return requestcontext.WithCallerBPN(context.Background(), bpn)
}

func (s *WalletServiceSuite) TestCreateProvisionsKeyAndDocument() {
	w, err := s.svc.Create(s.callerCtx(tenantBPN), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().NoError(err)

	s.Equal("did:web:wallets.example.com:"+tenantBPN, w.DID)
	s.Equal(signing.AlgorithmED25519, w.Algorithm)
	s.Require().NotNil(w.Document)
	s.Require().NotEmpty(w.Document.VerificationMethod)
	s.Equal(w.DID, w.Document.VerificationMethod[0].Controller)

	key, err := s.keys.PrivateKeyFor(context.Background(), w.ID, w.Algorithm)
	s.Require().NoError(err)
	s.NotEmpty(key)
}

func (s *WalletServiceSuite) TestCreateSecp256k1Wallet() {
	w, err := s.svc.Create(s.callerCtx(tenantBPN), models.CreateWalletRequest{
		BPN:       tenantBPN,
		Name:      "Tenant One",
		Algorithm: signing.AlgorithmSecp256k1,
	})
	s.Require().NoError(err)
	s.Equal(signing.AlgorithmSecp256k1, w.Algorithm)
	s.Equal("secp256k1", w.Document.VerificationMethod[0].PublicKeyJWK.Crv)
}

func (s *WalletServiceSuite) TestCreateForAnotherTenantIsForbidden() {
	_, err := s.svc.Create(s.callerCtx("BPNL000000000002"), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *WalletServiceSuite) TestAuthorityMayCreateForAnyTenant() {
	_, err := s.svc.Create(s.callerCtx(authorityBPN), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().NoError(err)
}

func (s *WalletServiceSuite) TestDuplicateCreateConflicts() {
	ctx := s.callerCtx(tenantBPN)
	req := models.CreateWalletRequest{BPN: tenantBPN, Name: "Tenant One"}

	_, err := s.svc.Create(ctx, req)
	s.Require().NoError(err)

	_, err = s.svc.Create(ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *WalletServiceSuite) TestCreatedHookFailureFailsCreation() {
	s.svc.SetCreatedHook(func(ctx context.Context, w *models.Wallet) error {
		return dErrors.New(dErrors.CodeInternal, "bootstrap exploded")
	})

	_, err := s.svc.Create(s.callerCtx(tenantBPN), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *WalletServiceSuite) TestFindByIdentifierAcceptsBPNAndDID() {
	w, err := s.svc.Create(s.callerCtx(tenantBPN), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().NoError(err)

	byBPN, err := s.svc.FindByIdentifier(context.Background(), tenantBPN)
	s.Require().NoError(err)
	s.Equal(w.ID, byBPN.ID)

	byDID, err := s.svc.FindByIdentifier(context.Background(), w.DID)
	s.Require().NoError(err)
	s.Equal(w.ID, byDID.ID)

	_, err = s.svc.FindByIdentifier(context.Background(), "BPNL999999999999")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *WalletServiceSuite) TestEnsureAuthorityWalletIsIdempotent() {
	ctx := context.Background()
	s.Require().NoError(s.svc.EnsureAuthorityWallet(ctx))
	s.Require().NoError(s.svc.EnsureAuthorityWallet(ctx))

	authority, err := s.svc.Authority(ctx)
	s.Require().NoError(err)
	s.Equal(authorityBPN, authority.BPN)
	s.True(strings.HasSuffix(authority.DID, authorityBPN))
}

func (s *WalletServiceSuite) TestCreateEmitsAuditEvent() {
	w, err := s.svc.Create(s.callerCtx(tenantBPN), models.CreateWalletRequest{
		BPN:  tenantBPN,
		Name: "Tenant One",
	})
	s.Require().NoError(err)

	events := s.sink.Events()
	s.Require().Len(events, 1)
	s.Equal(audit.ActionWalletCreated, events[0].Action)
	s.Equal(w.DID, events[0].HolderDID)
	s.Equal(tenantBPN, events[0].CallerBPN)
}
