package embedding

import (
	"context"
	"sync"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
)

// MemoryQueue records enqueued transaction ids in memory. Used by tests and
// local runs without a broker.
type MemoryQueue struct {
	mu       sync.Mutex
	enqueued []id.TransactionID
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) EnqueueTransaction(_ context.Context, row *models.EnrichedTransaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, row.ID)
	return nil
}

// Enqueued returns the ids enqueued so far, in order.
func (q *MemoryQueue) Enqueued() []id.TransactionID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]id.TransactionID{}, q.enqueued...)
}
