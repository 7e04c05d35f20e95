package raw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

func testRecord(sourceTxID, payload string) *models.RawIngestionRecord {
	key := models.RawKey{
		Source:              "plaid",
		Cursor:              "cursor-001",
		SourceTransactionID: sourceTxID,
		PayloadHash:         models.HashPayload([]byte(payload)),
	}
	now := time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	return models.NewRawIngestionRecord(key, id.NewAccountID(), []byte(payload), now)
}

func TestInMemoryStoreFindByKey(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := testRecord("tx-1", `{"id":"tx-1"}`)

	_, err := store.FindByKey(ctx, rec.Key())
	require.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Insert(ctx, rec))

	found, err := store.FindByKey(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)
	assert.Equal(t, rec.PayloadHash, found.PayloadHash)
}

func TestInMemoryStoreInsertConflict(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := testRecord("tx-1", `{"id":"tx-1"}`)

	require.NoError(t, store.Insert(ctx, rec))
	err := store.Insert(ctx, testRecord("tx-1", `{"id":"tx-1"}`))
	require.ErrorIs(t, err, sentinel.ErrConflict)

	// A changed payload is a different key, not a conflict.
	require.NoError(t, store.Insert(ctx, testRecord("tx-1", `{"id":"tx-1","v":2}`)))
	assert.Equal(t, 2, store.Count())
}

func TestInMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := testRecord("tx-1", `{"id":"tx-1"}`)

	require.ErrorIs(t, store.Update(ctx, rec), sentinel.ErrNotFound)

	require.NoError(t, store.Insert(ctx, rec))
	txID := id.NewTransactionID()
	rec.RecordOutcome(txID, models.DispositionInserted, "")
	require.NoError(t, store.Update(ctx, rec))

	found, err := store.FindByKey(ctx, rec.Key())
	require.NoError(t, err)
	require.NotNil(t, found.TransactionID)
	assert.Equal(t, txID, *found.TransactionID)
	assert.Equal(t, models.DispositionInserted, found.LastDisposition)
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := testRecord("tx-1", `{"id":"tx-1"}`)
	require.NoError(t, store.Insert(ctx, rec))

	found, err := store.FindByKey(ctx, rec.Key())
	require.NoError(t, err)
	found.LastDisposition = models.DispositionUpdated

	again, err := store.FindByKey(ctx, rec.Key())
	require.NoError(t, err)
	assert.Empty(t, again.LastDisposition)
}
