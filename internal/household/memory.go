package household

import (
	"context"
	"fmt"
	"sync"

	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// InMemoryDirectory is a map-backed Directory for tests and local runs.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[id.AccountID]id.HouseholdID
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{accounts: make(map[id.AccountID]id.HouseholdID)}
}

// Link associates an account with a household (test seeding).
func (d *InMemoryDirectory) Link(accountID id.AccountID, householdID id.HouseholdID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[accountID] = householdID
}

func (d *InMemoryDirectory) HouseholdForAccount(_ context.Context, accountID id.AccountID) (id.HouseholdID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	householdID, ok := d.accounts[accountID]
	if !ok {
		return id.HouseholdID{}, fmt.Errorf("resolve household for account: %w", sentinel.ErrNotFound)
	}
	return householdID, nil
}
