package service

import (
	"context"
	"errors"
	"time"

	"homeledger/internal/ingestion/models"
	recmodels "homeledger/internal/recurring/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// batchState replaces the implicit ORM identity map with explicit
// batch-scoped caches keyed by composite identity. Entries are loaded lazily
// from the durable store on first reference and discarded after commit.
// Processing is strictly sequential, so the state needs no locking.
type batchState struct {
	raw      map[models.RawKey]*rawEntry
	rawOrder []models.RawKey

	transactions map[string]*txEntry
	txOrder      []string

	candidates       []*recmodels.RecurringItem
	candidatesLoaded bool

	lastObserved       map[id.RecurringItemID]*time.Time
	lastObservedLoaded map[id.RecurringItemID]bool

	dirtyRecurring map[id.RecurringItemID]*recmodels.RecurringItem
	recurringOrder []id.RecurringItemID
}

type rawEntry struct {
	rec   *models.RawIngestionRecord
	isNew bool
}

type txEntry struct {
	row   *models.EnrichedTransaction
	isNew bool
	dirty bool
}

func newBatchState() *batchState {
	return &batchState{
		raw:                make(map[models.RawKey]*rawEntry),
		transactions:       make(map[string]*txEntry),
		lastObserved:       make(map[id.RecurringItemID]*time.Time),
		lastObservedLoaded: make(map[id.RecurringItemID]bool),
		dirtyRecurring:     make(map[id.RecurringItemID]*recmodels.RecurringItem),
	}
}

// rawEntry returns the cached record for the key, loading it from the store
// on first reference. Returns nil when the key has never been seen.
func (st *batchState) rawEntry(ctx context.Context, store RawStore, key models.RawKey) (*rawEntry, error) {
	if entry, ok := st.raw[key]; ok {
		return entry, nil
	}
	rec, err := store.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return st.addRaw(rec, false), nil
}

func (st *batchState) addRaw(rec *models.RawIngestionRecord, isNew bool) *rawEntry {
	entry := &rawEntry{rec: rec, isNew: isNew}
	key := rec.Key()
	st.raw[key] = entry
	st.rawOrder = append(st.rawOrder, key)
	return entry
}

// txEntry returns the cached transaction row for the external id, loading it
// from the store on first reference. Returns nil when no row exists yet.
func (st *batchState) txEntry(ctx context.Context, store TransactionStore, externalID string) (*txEntry, error) {
	if entry, ok := st.transactions[externalID]; ok {
		return entry, nil
	}
	row, err := store.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return st.addTransaction(row, false), nil
}

func (st *batchState) addTransaction(row *models.EnrichedTransaction, isNew bool) *txEntry {
	entry := &txEntry{row: row, isNew: isNew}
	st.transactions[row.ExternalID] = entry
	st.txOrder = append(st.txOrder, row.ExternalID)
	return entry
}

// recurringCandidates loads the household's active recurring items once per
// batch. Later items see in-place mutations (advanced due dates) from
// earlier matches.
func (st *batchState) recurringCandidates(ctx context.Context, store RecurringStore, householdID id.HouseholdID) ([]*recmodels.RecurringItem, error) {
	if st.candidatesLoaded {
		return st.candidates, nil
	}
	items, err := store.ListActiveByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	st.candidates = items
	st.candidatesLoaded = true
	return items, nil
}

// lastObservedFor returns the last-observed baseline for a recurring item,
// loading the durable value on first reference. In-batch matches overwrite
// it through setLastObserved so recency chaining follows input order.
func (st *batchState) lastObservedFor(ctx context.Context, store RecurringStore, itemID id.RecurringItemID) (*time.Time, error) {
	if st.lastObservedLoaded[itemID] {
		return st.lastObserved[itemID], nil
	}
	observed, err := store.LastObservedDate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	st.lastObserved[itemID] = observed
	st.lastObservedLoaded[itemID] = true
	return observed, nil
}

func (st *batchState) setLastObserved(itemID id.RecurringItemID, observed time.Time) {
	st.lastObserved[itemID] = &observed
	st.lastObservedLoaded[itemID] = true
}

// markRecurringDirty schedules a due-date advancement for the commit.
func (st *batchState) markRecurringDirty(item *recmodels.RecurringItem) {
	if _, ok := st.dirtyRecurring[item.ID]; !ok {
		st.recurringOrder = append(st.recurringOrder, item.ID)
	}
	st.dirtyRecurring[item.ID] = item
}
