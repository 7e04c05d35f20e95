// Package service contains the ingestion orchestrator: it sequences raw
// deduplication, the needs-review policy, the transaction upsert and the
// recurring-match engine per item, then commits the whole batch once.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"homeledger/internal/household"
	"homeledger/internal/ingestion/metrics"
	"homeledger/internal/ingestion/models"
	recmodels "homeledger/internal/recurring/models"
	id "homeledger/pkg/domain"
)

// RawStore persists the content-addressed raw ingestion records.
type RawStore interface {
	FindByKey(ctx context.Context, key models.RawKey) (*models.RawIngestionRecord, error)
	Insert(ctx context.Context, rec *models.RawIngestionRecord) error
	Update(ctx context.Context, rec *models.RawIngestionRecord) error
}

// TransactionStore persists the canonical enriched transaction rows.
type TransactionStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.EnrichedTransaction, error)
	Insert(ctx context.Context, row *models.EnrichedTransaction) error
	Update(ctx context.Context, row *models.EnrichedTransaction) error
}

// RecurringStore reads recurring items and persists due-date advancement.
type RecurringStore interface {
	ListActiveByHousehold(ctx context.Context, householdID id.HouseholdID) ([]*recmodels.RecurringItem, error)
	UpdateDueDate(ctx context.Context, item *recmodels.RecurringItem) error
	LastObservedDate(ctx context.Context, itemID id.RecurringItemID) (*time.Time, error)
}

// EmbeddingQueue receives fire-and-forget notifications after commit.
type EmbeddingQueue interface {
	EnqueueTransaction(ctx context.Context, row *models.EnrichedTransaction) error
}

// StoreTx runs a function within one durable transaction. The postgres
// implementation wraps everything in a single sql.Tx; the in-memory one
// serializes batches under a mutex.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service is the ingestion orchestrator.
type Service struct {
	raw          RawStore
	transactions TransactionStore
	recurring    RecurringStore
	directory    household.Directory
	tx           StoreTx
	embeddings   EmbeddingQueue
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithEmbeddingQueue wires the post-commit embedding notification.
func WithEmbeddingQueue(queue EmbeddingQueue) Option {
	return func(s *Service) {
		s.embeddings = queue
	}
}

// WithStoreTx overrides the transaction runner (postgres wiring).
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

// New constructs the ingestion Service.
func New(raw RawStore, transactions TransactionStore, recurring RecurringStore, directory household.Directory, opts ...Option) *Service {
	s := &Service{
		raw:          raw,
		transactions: transactions,
		recurring:    recurring,
		directory:    directory,
		tx:           newInMemoryStoreTx(),
		tracer:       otel.Tracer("homeledger/internal/ingestion"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
