//go:build integration

package raw_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"homeledger/internal/ingestion/models"
	"homeledger/internal/ingestion/store/raw"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *raw.PostgresStore
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
	s.store = raw.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "raw_ingestion_records"))
}

func newRecord(sourceTxID, payload string) *models.RawIngestionRecord {
	key := models.RawKey{
		Source:              "plaid",
		Cursor:              "cursor-001",
		SourceTransactionID: sourceTxID,
		PayloadHash:         models.HashPayload([]byte(payload)),
	}
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	return models.NewRawIngestionRecord(key, id.NewAccountID(), []byte(payload), now)
}

func (s *PostgresStoreSuite) TestInsertAndFindRoundTrip() {
	ctx := context.Background()
	rec := newRecord("tx-1", `{"id":"tx-1"}`)

	s.Require().NoError(s.store.Insert(ctx, rec))

	found, err := s.store.FindByKey(ctx, rec.Key())
	s.Require().NoError(err)
	s.Equal(rec.ID, found.ID)
	s.Equal(rec.AccountID, found.AccountID)
	s.Equal(rec.Payload, found.Payload)
	s.Nil(found.TransactionID)
	s.True(rec.FirstSeenAt.Equal(found.FirstSeenAt))
}

func (s *PostgresStoreSuite) TestUniqueKeyConflict() {
	ctx := context.Background()

	s.Require().NoError(s.store.Insert(ctx, newRecord("tx-1", `{"id":"tx-1"}`)))

	err := s.store.Insert(ctx, newRecord("tx-1", `{"id":"tx-1"}`))
	s.ErrorIs(err, sentinel.ErrConflict)

	// Same transaction, different payload bytes: a new record, not a conflict.
	s.Require().NoError(s.store.Insert(ctx, newRecord("tx-1", `{"id":"tx-1","pending":true}`)))
}

func (s *PostgresStoreSuite) TestUpdatePersistsOutcome() {
	ctx := context.Background()
	rec := newRecord("tx-1", `{"id":"tx-1"}`)
	s.Require().NoError(s.store.Insert(ctx, rec))

	txID := id.NewTransactionID()
	rec.Touch(rec.AccountID, rec.LastSeenAt.Add(24*time.Hour))
	rec.RecordOutcome(txID, models.DispositionInserted, models.ReasonAmountZero)
	s.Require().NoError(s.store.Update(ctx, rec))

	found, err := s.store.FindByKey(ctx, rec.Key())
	s.Require().NoError(err)
	s.Require().NotNil(found.TransactionID)
	s.Equal(txID, *found.TransactionID)
	s.Equal(models.DispositionInserted, found.LastDisposition)
	s.Equal(models.ReasonAmountZero, found.LastReviewReason)
	s.True(rec.LastSeenAt.Equal(found.LastSeenAt))
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.FindByKey(ctx, models.RawKey{
		Source:              "plaid",
		Cursor:              "cursor-001",
		SourceTransactionID: "ghost",
		PayloadHash:         models.HashPayload([]byte("{}")),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(ctx, newRecord("ghost", "{}"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
