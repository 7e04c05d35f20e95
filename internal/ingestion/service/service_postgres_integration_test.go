//go:build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"homeledger/internal/household"
	"homeledger/internal/ingestion/models"
	"homeledger/internal/ingestion/service"
	rawstore "homeledger/internal/ingestion/store/raw"
	txstore "homeledger/internal/ingestion/store/transaction"
	"homeledger/internal/platform/postgres"
	recstore "homeledger/internal/recurring/store"
	id "homeledger/pkg/domain"
	"homeledger/pkg/requestcontext"
	"homeledger/pkg/testutil/containers"
)

type ServicePostgresSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	svc       *service.Service
	txStore   *txstore.PostgresStore
	recStore  *recstore.PostgresStore
	accountID id.AccountID
}

func TestServicePostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ServicePostgresSuite))
}

func (s *ServicePostgresSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.txStore = txstore.NewPostgres(s.postgres.DB)
	s.recStore = recstore.NewPostgres(s.postgres.DB)
	s.svc = service.New(
		rawstore.NewPostgres(s.postgres.DB),
		s.txStore,
		s.recStore,
		household.NewPostgresDirectory(s.postgres.DB),
		service.WithStoreTx(postgres.NewTxRunner(s.postgres.DB)),
	)
}

func (s *ServicePostgresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx,
		"raw_ingestion_records", "transactions", "recurring_items", "accounts", "households"))

	householdID := uuid.New()
	accountID := uuid.New()
	_, err := s.postgres.DB.ExecContext(ctx,
		`INSERT INTO households (id, name) VALUES ($1, 'integration household')`, householdID)
	s.Require().NoError(err)
	_, err = s.postgres.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, household_id) VALUES ($1, $2)`, accountID, householdID)
	s.Require().NoError(err)
	s.accountID = id.AccountID(accountID)

	itemID := uuid.New()
	_, err = s.postgres.DB.ExecContext(ctx, `
		INSERT INTO recurring_items (
			id, household_id, merchant_name, expected_amount, frequency, next_due_date,
			due_window_before_days, due_window_after_days,
			amount_variance_percent, amount_variance_absolute,
			due_date_weight, amount_weight, recency_weight, match_threshold,
			score_version, tie_break_policy, active, created_at, updated_at
		) VALUES ($1, $2, 'City Power & Light', -84.00, 'monthly', $3, 4, 4, 10, 5.00,
			0.5, 0.35, 0.15, 0.70, 'v1', 'decline', TRUE, now(), now())
	`, itemID, householdID, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
}

func (s *ServicePostgresSuite) batch() models.BatchInput {
	return models.BatchInput{
		Source:    "plaid",
		AccountID: s.accountID,
		Cursor:    "cursor-001",
		Items: []models.BatchItem{
			{
				SourceTransactionID: "tx-1",
				Description:         "CITY POWER & LIGHT PAYMENT",
				Amount:              decimal.RequireFromString("-84.00"),
				Date:                time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC),
				Payload:             []byte(`{"id":"tx-1"}`),
			},
			{
				SourceTransactionID: "tx-2",
				Description:         "COFFEE SHOP",
				Amount:              decimal.RequireFromString("-4.50"),
				Date:                time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC),
				Payload:             []byte(`{"id":"tx-2"}`),
			},
		},
	}
}

func (s *ServicePostgresSuite) TestBatchCommitsAtomically() {
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC))

	summary, err := s.svc.IngestBatch(ctx, s.batch())
	s.Require().NoError(err)
	s.Equal(2, summary.RawStored)
	s.Equal(2, summary.Inserted)

	// The power bill linked and its due date advanced, all in one commit.
	linked, err := s.txStore.FindByExternalID(ctx, "tx-1")
	s.Require().NoError(err)
	s.Require().NotNil(linked.RecurringItemID)

	item, err := s.recStore.FindByID(ctx, *linked.RecurringItemID)
	s.Require().NoError(err)
	s.True(item.NextDueDate.Equal(time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)))

	plain, err := s.txStore.FindByExternalID(ctx, "tx-2")
	s.Require().NoError(err)
	s.Nil(plain.RecurringItemID)
}

func (s *ServicePostgresSuite) TestResubmitIsIdempotent() {
	ctx := requestcontext.WithTime(context.Background(),
		time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC))

	_, err := s.svc.IngestBatch(ctx, s.batch())
	s.Require().NoError(err)

	summary, err := s.svc.IngestBatch(ctx, s.batch())
	s.Require().NoError(err)
	s.Equal(0, summary.RawStored)
	s.Equal(2, summary.RawDuplicate)
	s.Equal(0, summary.Inserted)
	s.Equal(2, summary.Unchanged)

	// The due date moved exactly one period despite two passes.
	linked, err := s.txStore.FindByExternalID(ctx, "tx-1")
	s.Require().NoError(err)
	item, err := s.recStore.FindByID(ctx, *linked.RecurringItemID)
	s.Require().NoError(err)
	s.True(item.NextDueDate.Equal(time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)))
}
