package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
)

// batchRequest is the wire shape of one ingestion batch.
type batchRequest struct {
	Source    string             `json:"source"`
	AccountID string             `json:"account_id"`
	Cursor    string             `json:"cursor"`
	Items     []batchItemRequest `json:"items"`
}

type batchItemRequest struct {
	SourceTransactionID string          `json:"source_transaction_id"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	Date                time.Time       `json:"date"`
	Payload             json.RawMessage `json:"payload,omitempty"`
	Ambiguous           bool            `json:"ambiguous,omitempty"`
	ReviewReason        string          `json:"review_reason,omitempty"`
}

// toInput converts the wire shape to the service input, validating the
// account id at the trust boundary.
func (r batchRequest) toInput() (models.BatchInput, error) {
	accountID, err := id.ParseAccountID(r.AccountID)
	if err != nil {
		return models.BatchInput{}, err
	}
	items := make([]models.BatchItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, models.BatchItem{
			SourceTransactionID: item.SourceTransactionID,
			Description:         item.Description,
			Amount:              item.Amount,
			Date:                item.Date,
			Payload:             []byte(item.Payload),
			Ambiguous:           item.Ambiguous,
			ReviewReason:        item.ReviewReason,
		})
	}
	return models.BatchInput{
		Source:    r.Source,
		AccountID: accountID,
		Cursor:    r.Cursor,
		Items:     items,
	}, nil
}
