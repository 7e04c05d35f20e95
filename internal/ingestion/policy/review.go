// Package policy classifies batch items as ambiguous or defective before they
// reach the upsert step.
//
// The policy is fail-open: it never rejects an item, it only degrades the
// item's trust signal by routing it to NeedsReview with a reason code.
package policy

import (
	"strings"

	"homeledger/internal/ingestion/models"
)

// Classification is the outcome of the needs-review policy for one item.
type Classification struct {
	NeedsReview bool
	Reason      string
}

// Classify decides whether an item must be routed to NeedsReview and assigns
// a reason code. Independent of persistence; safe to call anywhere.
//
// Reason-code priority when several conditions hold:
// caller-supplied reason > zero-amount > missing-date > missing-description >
// generic ambiguous-payload.
func Classify(item models.BatchItem) Classification {
	zeroAmount := item.Amount.IsZero()
	missingDate := item.Date.IsZero()
	missingDescription := strings.TrimSpace(item.Description) == ""

	if !item.Ambiguous && !zeroAmount && !missingDate && !missingDescription {
		return Classification{}
	}

	reason := strings.TrimSpace(item.ReviewReason)
	if reason == "" {
		switch {
		case zeroAmount:
			reason = models.ReasonAmountZero
		case missingDate:
			reason = models.ReasonDateMissing
		case missingDescription:
			reason = models.ReasonDescriptionMissing
		default:
			reason = models.ReasonAmbiguousPayload
		}
	}
	return Classification{NeedsReview: true, Reason: reason}
}
