package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "homeledger/pkg/domain"
	dErrors "homeledger/pkg/domain-errors"
)

// EnrichedTransaction is the canonical transaction row. At most one row exists
// per external source id; the upserter diffs incoming items against it.
type EnrichedTransaction struct {
	ID              id.TransactionID
	AccountID       id.AccountID
	RecurringItemID *id.RecurringItemID
	ExternalID      string
	Description     string
	Amount          decimal.Decimal
	Date            time.Time
	ReviewStatus    ReviewStatus
	ReviewReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEnrichedTransaction creates a transaction row from normalized item fields.
func NewEnrichedTransaction(accountID id.AccountID, externalID, description string, amount decimal.Decimal, date time.Time, now time.Time) *EnrichedTransaction {
	return &EnrichedTransaction{
		ID:           id.NewTransactionID(),
		AccountID:    accountID,
		ExternalID:   externalID,
		Description:  description,
		Amount:       NormalizeAmount(amount),
		Date:         NormalizeDate(date),
		ReviewStatus: ReviewStatusNone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ApplyFields diffs the four upsert-relevant fields (account id, description,
// amount at two decimals, date) against the row and applies any difference.
// Returns true when at least one field changed; the caller advances UpdatedAt
// through MarkModified as part of the same pass.
func (t *EnrichedTransaction) ApplyFields(accountID id.AccountID, description string, amount decimal.Decimal, date time.Time) bool {
	amount = NormalizeAmount(amount)
	date = NormalizeDate(date)

	changed := false
	if t.AccountID != accountID {
		t.AccountID = accountID
		changed = true
	}
	if t.Description != description {
		t.Description = description
		changed = true
	}
	if !t.Amount.Equal(amount) {
		t.Amount = amount
		changed = true
	}
	if !t.Date.Equal(date) {
		t.Date = date
		changed = true
	}
	return changed
}

// EnsureNeedsReview forces the review status to NeedsReview. The status is a
// one-way ratchet: the engine will backfill a missing reason on a later pass
// but never clears NeedsReview, even if the later item no longer looks
// ambiguous. Returns true when the row actually changed.
func (t *EnrichedTransaction) EnsureNeedsReview(reason string) bool {
	changed := false
	if t.ReviewStatus != ReviewStatusNeedsReview {
		t.ReviewStatus = ReviewStatusNeedsReview
		changed = true
	}
	if t.ReviewReason == "" && reason != "" {
		t.ReviewReason = reason
		changed = true
	}
	return changed
}

// LinkRecurring sets the recurring-item link. The link is set-once by this
// engine; relinking is an invariant violation.
func (t *EnrichedTransaction) LinkRecurring(recurringItemID id.RecurringItemID) error {
	if t.RecurringItemID != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "transaction already linked to a recurring item")
	}
	t.RecurringItemID = &recurringItemID
	return nil
}

// MarkModified advances the last-modified timestamp after a successful change.
func (t *EnrichedTransaction) MarkModified(now time.Time) {
	t.UpdatedAt = now
}
