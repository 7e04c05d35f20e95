package service

import (
	"context"
	"sync"
)

// inMemoryStoreTx serializes batches under a mutex. It offers atomicity only
// in the sense that no two batches interleave; a mid-batch failure leaves the
// in-memory stores partially written. Good enough for tests and local runs;
// production wiring replaces it with the postgres runner via WithStoreTx.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
