// Package domain defines the typed identifiers shared across the engine.
//
// Each identifier is a distinct named type over uuid.UUID so the compiler
// rejects cross-type assignment (an AccountID can never be passed where a
// RecurringItemID is expected). Parse functions enforce the invariant that
// IDs are valid, non-empty, non-nil UUIDs at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "homeledger/pkg/domain-errors"
)

// AccountID identifies a linked financial account.
type AccountID uuid.UUID

// HouseholdID identifies a household; recurring items are scoped to one.
type HouseholdID uuid.UUID

// TransactionID identifies an enriched transaction row.
type TransactionID uuid.UUID

// RecurringItemID identifies a recurring bill configuration.
type RecurringItemID uuid.UUID

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseAccountID validates and returns an AccountID.
func ParseAccountID(s string) (AccountID, error) {
	parsed, err := parseUUID(s, "account")
	return AccountID(parsed), err
}

// ParseHouseholdID validates and returns a HouseholdID.
func ParseHouseholdID(s string) (HouseholdID, error) {
	parsed, err := parseUUID(s, "household")
	return HouseholdID(parsed), err
}

// ParseTransactionID validates and returns a TransactionID.
func ParseTransactionID(s string) (TransactionID, error) {
	parsed, err := parseUUID(s, "transaction")
	return TransactionID(parsed), err
}

// ParseRecurringItemID validates and returns a RecurringItemID.
func ParseRecurringItemID(s string) (RecurringItemID, error) {
	parsed, err := parseUUID(s, "recurring item")
	return RecurringItemID(parsed), err
}

func (id AccountID) String() string       { return uuid.UUID(id).String() }
func (id HouseholdID) String() string     { return uuid.UUID(id).String() }
func (id TransactionID) String() string   { return uuid.UUID(id).String() }
func (id RecurringItemID) String() string { return uuid.UUID(id).String() }

func (id AccountID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id HouseholdID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecurringItemID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewAccountID returns a fresh random AccountID.
func NewAccountID() AccountID { return AccountID(uuid.New()) }

// NewHouseholdID returns a fresh random HouseholdID.
func NewHouseholdID() HouseholdID { return HouseholdID(uuid.New()) }

// NewTransactionID returns a fresh random TransactionID.
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }

// NewRecurringItemID returns a fresh random RecurringItemID.
func NewRecurringItemID() RecurringItemID { return RecurringItemID(uuid.New()) }
