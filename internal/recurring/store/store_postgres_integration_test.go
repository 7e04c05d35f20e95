//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"homeledger/internal/recurring/models"
	"homeledger/internal/recurring/store"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *store.PostgresStore
	householdID id.HouseholdID
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
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"transactions", "recurring_items", "accounts", "households"))

	householdID := uuid.New()
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO households (id, name) VALUES ($1, 'test household')`, householdID)
	s.Require().NoError(err)
	s.householdID = id.HouseholdID(householdID)
}

func (s *PostgresStoreSuite) seedItem(merchant string, active bool) id.RecurringItemID {
	itemID := uuid.New()
	_, err := s.postgres.DB.ExecContext(context.Background(), `
		INSERT INTO recurring_items (
			id, household_id, merchant_name, expected_amount, frequency, next_due_date,
			due_window_before_days, due_window_after_days,
			amount_variance_percent, amount_variance_absolute,
			due_date_weight, amount_weight, recency_weight, match_threshold,
			score_version, tie_break_policy, active, created_at, updated_at
		) VALUES ($1, $2, $3, -84.00, 'monthly', $4, 4, 4, 10, 5.00,
			0.5, 0.35, 0.15, 0.70, 'v1', 'decline', $5, now(), now())
	`, itemID, uuid.UUID(s.householdID), merchant,
		time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), active)
	s.Require().NoError(err)
	return id.RecurringItemID(itemID)
}

func (s *PostgresStoreSuite) TestListActiveByHousehold() {
	ctx := context.Background()
	activeID := s.seedItem("City Power & Light", true)
	s.seedItem("Old Gym", false)

	items, err := s.store.ListActiveByHousehold(ctx, s.householdID)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(activeID, items[0].ID)
	s.Equal("City Power & Light", items[0].MerchantName)
	s.True(items[0].ExpectedAmount.Equal(decimal.RequireFromString("-84.00")))
	s.True(items[0].DueDateWeight.Add(items[0].AmountWeight).Add(items[0].RecencyWeight).
		Equal(decimal.RequireFromString("1.0000")))
	s.Equal(models.FrequencyMonthly, items[0].Frequency)

	other, err := s.store.ListActiveByHousehold(ctx, id.NewHouseholdID())
	s.Require().NoError(err)
	s.Empty(other)
}

func (s *PostgresStoreSuite) TestFindByID() {
	ctx := context.Background()
	itemID := s.seedItem("City Power & Light", true)

	item, err := s.store.FindByID(ctx, itemID)
	s.Require().NoError(err)
	s.Equal(itemID, item.ID)
	s.Equal(s.householdID, item.HouseholdID)

	_, err = s.store.FindByID(ctx, id.NewRecurringItemID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateDueDate() {
	ctx := context.Background()
	itemID := s.seedItem("City Power & Light", true)

	item, err := s.store.FindByID(ctx, itemID)
	s.Require().NoError(err)

	item.AdvanceDueDate(time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.UpdateDueDate(ctx, item))

	found, err := s.store.FindByID(ctx, itemID)
	s.Require().NoError(err)
	s.True(found.NextDueDate.Equal(time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)))

	ghost := *item
	ghost.ID = id.NewRecurringItemID()
	s.ErrorIs(s.store.UpdateDueDate(ctx, &ghost), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLastObservedDateFromTransactions() {
	ctx := context.Background()
	itemID := s.seedItem("City Power & Light", true)

	observed, err := s.store.LastObservedDate(ctx, itemID)
	s.Require().NoError(err)
	s.Nil(observed)

	accountID := uuid.New()
	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, household_id) VALUES ($1, $2)`, accountID, uuid.UUID(s.householdID))
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, recurring_item_id, external_id,
			description, amount, date, review_status, created_at, updated_at)
		VALUES ($1, $2, $3, 'tx-apr', 'CITY POWER & LIGHT', -84.00, $4, 'none', now(), now())
	`, uuid.New(), accountID, uuid.UUID(itemID), time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)

	observed, err = s.store.LastObservedDate(ctx, itemID)
	s.Require().NoError(err)
	s.Require().NotNil(observed)
	s.True(observed.Equal(time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC)))
}
