//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"miw/internal/did"
	"miw/internal/signing"
	"miw/internal/wallet/models"
	"miw/internal/wallet/store"
	"miw/pkg/platform/sentinel"
	"miw/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "wallets")
	s.Require().NoError(err)
}

func newTestWallet(t *testing.T, bpn string) *models.Wallet {
	t.Helper()
	didStr := "did:web:wallets.example.com:" + bpn
	doc := did.NewDocument(didStr, &did.JWK{Kty: "OKP", Crv: "Ed25519", X: "dGVzdA"})
	w, err := models.NewWallet(uuid.New(), bpn, "Test Wallet "+bpn, didStr, doc,
		signing.AlgorithmED25519, time.Now().UTC())
	if err != nil {
		t.Fatalf("failed to build wallet: %v", err)
	}
	return w
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	w := newTestWallet(s.T(), "BPNL000000000042")
	s.Require().NoError(s.store.Create(ctx, w))

	byBPN, err := s.store.FindByBPN(ctx, "bpnl000000000042")
	s.Require().NoError(err)
	s.Equal(w.DID, byBPN.DID)
	s.Equal(w.BPN, byBPN.BPN)
	s.Require().NotNil(byBPN.Document)
	s.Equal(w.DID, byBPN.Document.ID)

	byDID, err := s.store.FindByDID(ctx, w.DID)
	s.Require().NoError(err)
	s.Equal(w.ID, byDID.ID)

	exists, err := s.store.ExistsByBPN(ctx, w.BPN)
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestFindMissingReportsNotFound() {
	_, err := s.store.FindByBPN(context.Background(), "BPNL999999999999")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListOrdersByBPN() {
	ctx := context.Background()
	for _, bpn := range []string{"BPNL000000000003", "BPNL000000000001", "BPNL000000000002"} {
		s.Require().NoError(s.store.Create(ctx, newTestWallet(s.T(), bpn)))
	}

	wallets, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(wallets, 3)
	s.Equal("BPNL000000000001", wallets[0].BPN)
	s.Equal("BPNL000000000002", wallets[1].BPN)
	s.Equal("BPNL000000000003", wallets[2].BPN)
}

// TestConcurrentCreateSameBPN verifies the unique constraint turns racing
// creates into exactly one success.
func (s *PostgresStoreSuite) TestConcurrentCreateSameBPN() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestWallet(s.T(), "BPNL000000000777"))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())
}
