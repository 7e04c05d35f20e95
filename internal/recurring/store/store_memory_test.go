package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeledger/internal/recurring/models"
	id "homeledger/pkg/domain"
	dErrors "homeledger/pkg/domain-errors"
	"homeledger/pkg/platform/sentinel"
)

func testItem(householdID id.HouseholdID) *models.RecurringItem {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return &models.RecurringItem{
		ID:                     id.NewRecurringItemID(),
		HouseholdID:            householdID,
		MerchantName:           "City Power & Light",
		ExpectedAmount:         decimal.RequireFromString("-84.00"),
		Frequency:              models.FrequencyMonthly,
		NextDueDate:            time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
		DueWindowBeforeDays:    4,
		DueWindowAfterDays:     4,
		AmountVariancePercent:  decimal.RequireFromString("10"),
		AmountVarianceAbsolute: decimal.RequireFromString("5.00"),
		DueDateWeight:          decimal.RequireFromString("0.5"),
		AmountWeight:           decimal.RequireFromString("0.35"),
		RecencyWeight:          decimal.RequireFromString("0.15"),
		MatchThreshold:         decimal.RequireFromString("0.70"),
		ScoreVersion:           "v1",
		TieBreakPolicy:         "decline",
		Active:                 true,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func TestPutValidates(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	item := testItem(id.NewHouseholdID())
	item.DueDateWeight = decimal.RequireFromString("0.6")

	err := store.Put(ctx, item)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestListActiveByHousehold(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	householdID := id.NewHouseholdID()

	active := testItem(householdID)
	inactive := testItem(householdID)
	inactive.Active = false
	otherHousehold := testItem(id.NewHouseholdID())

	require.NoError(t, store.Put(ctx, active))
	require.NoError(t, store.Put(ctx, inactive))
	require.NoError(t, store.Put(ctx, otherHousehold))

	items, err := store.ListActiveByHousehold(ctx, householdID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, active.ID, items[0].ID)
}

func TestUpdateDueDate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	item := testItem(id.NewHouseholdID())

	require.ErrorIs(t, store.UpdateDueDate(ctx, item), sentinel.ErrNotFound)

	require.NoError(t, store.Put(ctx, item))
	item.AdvanceDueDate(time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.UpdateDueDate(ctx, item))

	found, err := store.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC), found.NextDueDate)
}

func TestListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	householdID := id.NewHouseholdID()
	item := testItem(householdID)
	require.NoError(t, store.Put(ctx, item))

	items, err := store.ListActiveByHousehold(ctx, householdID)
	require.NoError(t, err)
	items[0].NextDueDate = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	found, err := store.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.NextDueDate, found.NextDueDate)
}

type fixedObservation struct {
	date *time.Time
}

func (f fixedObservation) LastDateForRecurringItem(context.Context, id.RecurringItemID) (*time.Time, error) {
	return f.date, nil
}

func TestLastObservedDate(t *testing.T) {
	ctx := context.Background()
	itemID := id.NewRecurringItemID()

	// Without an observation source every item looks never-observed.
	bare := NewInMemoryStore()
	observed, err := bare.LastObservedDate(ctx, itemID)
	require.NoError(t, err)
	assert.Nil(t, observed)

	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	wired := NewInMemoryStore(WithObservationSource(fixedObservation{date: &date}))
	observed, err = wired.LastObservedDate(ctx, itemID)
	require.NoError(t, err)
	require.NotNil(t, observed)
	assert.Equal(t, date, *observed)
}
