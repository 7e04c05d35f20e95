package raw

import (
	"context"
	"fmt"
	"sync"

	"homeledger/internal/ingestion/models"
	"homeledger/pkg/platform/sentinel"
)

// InMemoryStore keeps raw ingestion records in process memory. Used by unit
// tests and local development; the postgres store is the durable twin.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.RawKey]*models.RawIngestionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[models.RawKey]*models.RawIngestionRecord)}
}

// FindByKey returns a copy of the record for the idempotency key, or
// sentinel.ErrNotFound. Copies keep uncommitted orchestrator mutations out of
// the store.
func (s *InMemoryStore) FindByKey(_ context.Context, key models.RawKey) (*models.RawIngestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("find raw record: %w", sentinel.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// Insert stores a new record; an existing key is a conflict, mirroring the
// postgres uniqueness constraint.
func (s *InMemoryStore) Insert(_ context.Context, rec *models.RawIngestionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.Key()
	if _, exists := s.records[key]; exists {
		return fmt.Errorf("insert raw record: %w", sentinel.ErrConflict)
	}
	s.records[key] = cloneRecord(rec)
	return nil
}

// Update rewrites an existing record.
func (s *InMemoryStore) Update(_ context.Context, rec *models.RawIngestionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rec.Key()
	if _, exists := s.records[key]; !exists {
		return fmt.Errorf("update raw record: %w", sentinel.ErrNotFound)
	}
	s.records[key] = cloneRecord(rec)
	return nil
}

// Count reports the number of stored records (test helper).
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(rec *models.RawIngestionRecord) *models.RawIngestionRecord {
	clone := *rec
	if rec.TransactionID != nil {
		txID := *rec.TransactionID
		clone.TransactionID = &txID
	}
	return &clone
}
