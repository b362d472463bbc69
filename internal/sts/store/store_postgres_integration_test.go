//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"miw/internal/sts/store"
	"miw/pkg/platform/sentinel"
	"miw/pkg/testutil/containers"
)

type JTIPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	ledger   *store.JTIPostgres
}

func TestJTIPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(JTIPostgresSuite))
}

func (s *JTIPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.ledger = store.NewJTIPostgres(s.postgres.DB)
}

func (s *JTIPostgresSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "jti_records")
	s.Require().NoError(err)
}

func (s *JTIPostgresSuite) TestConsumeIsOneShot() {
	ctx := context.Background()
	jti := uuid.NewString()
	expiresAt := time.Now().Add(5 * time.Minute)

	s.Require().NoError(s.ledger.Register(ctx, jti, expiresAt))
	s.Require().NoError(s.ledger.Consume(ctx, jti, expiresAt))
	s.Require().ErrorIs(s.ledger.Consume(ctx, jti, expiresAt), sentinel.ErrAlreadyUsed)
}

func (s *JTIPostgresSuite) TestConsumeWithoutRegisterStillGuards() {
	ctx := context.Background()
	jti := uuid.NewString()
	expiresAt := time.Now().Add(5 * time.Minute)

	s.Require().NoError(s.ledger.Consume(ctx, jti, expiresAt))
	s.Require().ErrorIs(s.ledger.Consume(ctx, jti, expiresAt), sentinel.ErrAlreadyUsed)
}

func (s *JTIPostgresSuite) TestRegisterIsIdempotent() {
	ctx := context.Background()
	jti := uuid.NewString()
	expiresAt := time.Now().Add(5 * time.Minute)

	s.Require().NoError(s.ledger.Register(ctx, jti, expiresAt))
	s.Require().NoError(s.ledger.Register(ctx, jti, expiresAt))
}

// TestConcurrentConsumersSeeOneWinner drives racing consumers against the
// conditional update; exactly one must win.
func (s *JTIPostgresSuite) TestConcurrentConsumersSeeOneWinner() {
	ctx := context.Background()
	jti := uuid.NewString()
	expiresAt := time.Now().Add(5 * time.Minute)
	s.Require().NoError(s.ledger.Register(ctx, jti, expiresAt))

	const goroutines = 16
	var wg sync.WaitGroup
	var successCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ledger.Consume(ctx, jti, expiresAt); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one consumer should win")
}
