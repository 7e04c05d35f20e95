// Package models defines the ingestion engine's data model: batch input and
// output shapes, the raw dedup record, and the enriched transaction row.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "homeledger/pkg/domain"
)

// ReviewStatus classifies how much a transaction can be trusted downstream.
type ReviewStatus string

const (
	ReviewStatusNone        ReviewStatus = "none"
	ReviewStatusNeedsReview ReviewStatus = "needs_review"
	ReviewStatusReviewed    ReviewStatus = "reviewed"
)

// Disposition is the per-item outcome of the upsert step.
type Disposition string

const (
	DispositionInserted  Disposition = "inserted"
	DispositionUpdated   Disposition = "updated"
	DispositionUnchanged Disposition = "unchanged"
)

// Review reason codes emitted by the needs-review policy. A caller-supplied
// reason always takes precedence over these.
const (
	ReasonAmountZero         = "ingestion_amount_zero"
	ReasonDateMissing        = "ingestion_date_missing"
	ReasonDescriptionMissing = "ingestion_description_missing"
	ReasonAmbiguousPayload   = "ingestion_ambiguous_payload"
)

// CursorSentinel replaces an empty or whitespace-only delta cursor so the raw
// idempotency key is never keyed on an empty string.
const CursorSentinel = "snapshot"

// SourceSentinel replaces an empty source identifier.
const SourceSentinel = "unknown"

// BatchItem is one vendor-supplied transaction inside a delta batch.
type BatchItem struct {
	SourceTransactionID string          `json:"source_transaction_id"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Date                time.Time       `json:"date"`
	Payload             []byte          `json:"payload"`
	Ambiguous           bool            `json:"ambiguous"`
	ReviewReason        string          `json:"review_reason,omitempty"`
}

// BatchInput is one caller-supplied delta batch, processed synchronously and
// exactly once per (cursor, transaction, payload) triple.
type BatchInput struct {
	Source    string       `json:"source"`
	AccountID id.AccountID `json:"account_id"`
	Cursor    string       `json:"cursor"`
	Items     []BatchItem  `json:"items"`
}

// ItemOutcome reports what happened to a single batch item.
type ItemOutcome struct {
	SourceTransactionID string           `json:"source_transaction_id"`
	TransactionID       id.TransactionID `json:"transaction_id"`
	RawDuplicate        bool             `json:"raw_duplicate"`
	Disposition         Disposition      `json:"disposition"`
	ReviewStatus        ReviewStatus     `json:"review_status"`
	ReviewReason        string           `json:"review_reason,omitempty"`
}

// BatchSummary aggregates counters over one committed batch.
type BatchSummary struct {
	RawStored    int           `json:"raw_stored"`
	RawDuplicate int           `json:"raw_duplicate"`
	Inserted     int           `json:"inserted"`
	Updated      int           `json:"updated"`
	Unchanged    int           `json:"unchanged"`
	Items        []ItemOutcome `json:"items"`
}

// NormalizeCursor trims the delta cursor and substitutes the sentinel when the
// caller sent an empty or whitespace-only value.
func NormalizeCursor(cursor string) string {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return CursorSentinel
	}
	return cursor
}

// NormalizeSource trims the source identifier and substitutes the sentinel
// when empty.
func NormalizeSource(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return SourceSentinel
	}
	return source
}

// NormalizeAmount rounds a monetary amount to two decimal places using
// banker's rounding (round half to even). Financial correctness tests pin
// this; do not switch to round-half-away-from-zero.
func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(2)
}

// NormalizeDate truncates a timestamp to UTC midnight. Transaction dates are
// calendar dates; the time-of-day component is vendor noise.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
