package household

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
)

// PostgresDirectory reads account ownership from the accounts table.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) HouseholdForAccount(ctx context.Context, accountID id.AccountID) (id.HouseholdID, error) {
	var householdID uuid.UUID
	err := d.db.QueryRowContext(ctx,
		`SELECT household_id FROM accounts WHERE id = $1`, uuid.UUID(accountID),
	).Scan(&householdID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return id.HouseholdID{}, fmt.Errorf("resolve household for account: %w", sentinel.ErrNotFound)
		}
		return id.HouseholdID{}, fmt.Errorf("resolve household for account: %w", err)
	}
	return id.HouseholdID(householdID), nil
}
