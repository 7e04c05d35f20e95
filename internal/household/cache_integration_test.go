//go:build integration

package household_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"homeledger/internal/household"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/testutil/containers"
)

type CachedDirectorySuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestCachedDirectorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedDirectorySuite))
}

func (s *CachedDirectorySuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedDirectorySuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// countingDirectory counts authoritative lookups behind the cache.
type countingDirectory struct {
	inner *household.InMemoryDirectory
	calls int
}

func (d *countingDirectory) HouseholdForAccount(ctx context.Context, accountID id.AccountID) (id.HouseholdID, error) {
	d.calls++
	return d.inner.HouseholdForAccount(ctx, accountID)
}

func (s *CachedDirectorySuite) TestReadThroughCaching() {
	ctx := context.Background()
	accountID := id.NewAccountID()
	householdID := id.NewHouseholdID()

	inner := household.NewInMemoryDirectory()
	inner.Link(accountID, householdID)
	counting := &countingDirectory{inner: inner}
	cached := household.NewCachedDirectory(counting, s.redis.Client)

	for i := 0; i < 3; i++ {
		got, err := cached.HouseholdForAccount(ctx, accountID)
		s.Require().NoError(err)
		s.Equal(householdID, got)
	}

	// Only the first lookup reaches the authoritative directory.
	s.Equal(1, counting.calls)
}

func (s *CachedDirectorySuite) TestUnknownAccountNotCached() {
	ctx := context.Background()
	counting := &countingDirectory{inner: household.NewInMemoryDirectory()}
	cached := household.NewCachedDirectory(counting, s.redis.Client)
	unknown := id.NewAccountID()

	for i := 0; i < 2; i++ {
		_, err := cached.HouseholdForAccount(ctx, unknown)
		s.ErrorIs(err, sentinel.ErrNotFound)
	}
	s.Equal(2, counting.calls)
}

func (s *CachedDirectorySuite) TestNilClientReturnsInnerDirectory() {
	inner := household.NewInMemoryDirectory()
	s.Same(inner, household.NewCachedDirectory(inner, nil))
}
