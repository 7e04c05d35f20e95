// Package household resolves accounts to the household that owns them.
// The ingestion engine only reads this directory; membership management is an
// external concern.
package household

import (
	"context"

	id "homeledger/pkg/domain"
)

// Directory maps a linked account to its owning household. Implementations
// return sentinel.ErrNotFound (wrapped) for unknown accounts.
type Directory interface {
	HouseholdForAccount(ctx context.Context, accountID id.AccountID) (id.HouseholdID, error)
}
