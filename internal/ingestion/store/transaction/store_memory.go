package transaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// InMemoryStore keeps enriched transactions in process memory, keyed by
// external source id (the uniqueness constraint the postgres store enforces).
type InMemoryStore struct {
	mu           sync.RWMutex
	byExternalID map[string]*models.EnrichedTransaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byExternalID: make(map[string]*models.EnrichedTransaction)}
}

// FindByExternalID returns a copy of the row, or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByExternalID(_ context.Context, externalID string) (*models.EnrichedTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.byExternalID[externalID]
	if !ok {
		return nil, fmt.Errorf("find transaction: %w", sentinel.ErrNotFound)
	}
	return cloneTransaction(row), nil
}

// Insert stores a new row; an existing external id is a conflict, mirroring
// the postgres uniqueness constraint.
func (s *InMemoryStore) Insert(_ context.Context, row *models.EnrichedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byExternalID[row.ExternalID]; exists {
		return fmt.Errorf("insert transaction: %w", sentinel.ErrConflict)
	}
	s.byExternalID[row.ExternalID] = cloneTransaction(row)
	return nil
}

// Update rewrites an existing row.
func (s *InMemoryStore) Update(_ context.Context, row *models.EnrichedTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byExternalID[row.ExternalID]; !exists {
		return fmt.Errorf("update transaction: %w", sentinel.ErrNotFound)
	}
	s.byExternalID[row.ExternalID] = cloneTransaction(row)
	return nil
}

// LastDateForRecurringItem returns the most recent transaction date linked to
// the recurring item, or nil when none is linked yet. The recurring store
// uses this as the durable last-observed baseline.
func (s *InMemoryStore) LastDateForRecurringItem(_ context.Context, recurringItemID id.RecurringItemID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *time.Time
	for _, row := range s.byExternalID {
		if row.RecurringItemID == nil || *row.RecurringItemID != recurringItemID {
			continue
		}
		if latest == nil || row.Date.After(*latest) {
			d := row.Date
			latest = &d
		}
	}
	return latest, nil
}

// Count reports the number of stored rows (test helper).
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byExternalID)
}

func cloneTransaction(row *models.EnrichedTransaction) *models.EnrichedTransaction {
	clone := *row
	if row.RecurringItemID != nil {
		recurringID := *row.RecurringItemID
		clone.RecurringItemID = &recurringID
	}
	return &clone
}
