package handler

import "homeledger/internal/ingestion/models"

// batchResponse is the wire shape of a committed batch summary.
type batchResponse struct {
	RawStored    int                 `json:"raw_stored"`
	RawDuplicate int                 `json:"raw_duplicate"`
	Inserted     int                 `json:"inserted"`
	Updated      int                 `json:"updated"`
	Unchanged    int                 `json:"unchanged"`
	Items        []itemOutcomeResult `json:"items"`
}

type itemOutcomeResult struct {
	SourceTransactionID string `json:"source_transaction_id"`
	TransactionID       string `json:"transaction_id"`
	RawDuplicate        bool   `json:"raw_duplicate"`
	Disposition         string `json:"disposition"`
	ReviewStatus        string `json:"review_status"`
	ReviewReason        string `json:"review_reason,omitempty"`
}

func toResponse(summary *models.BatchSummary) batchResponse {
	items := make([]itemOutcomeResult, 0, len(summary.Items))
	for _, out := range summary.Items {
		items = append(items, itemOutcomeResult{
			SourceTransactionID: out.SourceTransactionID,
			TransactionID:       out.TransactionID.String(),
			RawDuplicate:        out.RawDuplicate,
			Disposition:         string(out.Disposition),
			ReviewStatus:        string(out.ReviewStatus),
			ReviewReason:        out.ReviewReason,
		})
	}
	return batchResponse{
		RawStored:    summary.RawStored,
		RawDuplicate: summary.RawDuplicate,
		Inserted:     summary.Inserted,
		Updated:      summary.Updated,
		Unchanged:    summary.Unchanged,
		Items:        items,
	}
}
