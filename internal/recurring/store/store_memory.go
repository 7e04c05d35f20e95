package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"homeledger/internal/recurring/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// ObservationSource answers "when was a transaction last linked to this
// recurring item". The transaction store implements it; the registry itself
// never owns that fact durably.
type ObservationSource interface {
	LastDateForRecurringItem(ctx context.Context, recurringItemID id.RecurringItemID) (*time.Time, error)
}

// InMemoryStore keeps recurring items in process memory.
type InMemoryStore struct {
	mu           sync.RWMutex
	items        map[id.RecurringItemID]*models.RecurringItem
	observations ObservationSource
}

// Option configures the in-memory store.
type Option func(*InMemoryStore)

// WithObservationSource wires the transaction store providing last-observed
// dates. Without one, every item looks never-observed.
func WithObservationSource(src ObservationSource) Option {
	return func(s *InMemoryStore) {
		s.observations = src
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{items: make(map[id.RecurringItemID]*models.RecurringItem)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put creates or replaces an item (external CRUD surface and test seeding).
func (s *InMemoryStore) Put(_ context.Context, item *models.RecurringItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = cloneItem(item)
	return nil
}

// ListActiveByHousehold returns every active recurring item for a household.
func (s *InMemoryStore) ListActiveByHousehold(_ context.Context, householdID id.HouseholdID) ([]*models.RecurringItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []*models.RecurringItem
	for _, item := range s.items {
		if item.HouseholdID == householdID && item.Active {
			items = append(items, cloneItem(item))
		}
	}
	return items, nil
}

// FindByID returns a copy of the item, or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, itemID id.RecurringItemID) (*models.RecurringItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("find recurring item: %w", sentinel.ErrNotFound)
	}
	return cloneItem(item), nil
}

// UpdateDueDate persists a due-date advancement after a successful match.
func (s *InMemoryStore) UpdateDueDate(_ context.Context, item *models.RecurringItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("update recurring item: %w", sentinel.ErrNotFound)
	}
	existing.NextDueDate = item.NextDueDate
	existing.UpdatedAt = item.UpdatedAt
	return nil
}

// LastObservedDate returns the durable last-observed baseline for an item.
func (s *InMemoryStore) LastObservedDate(ctx context.Context, itemID id.RecurringItemID) (*time.Time, error) {
	if s.observations == nil {
		return nil, nil
	}
	return s.observations.LastDateForRecurringItem(ctx, itemID)
}

func cloneItem(item *models.RecurringItem) *models.RecurringItem {
	clone := *item
	return &clone
}
