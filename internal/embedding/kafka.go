// Package embedding notifies the downstream semantic-embedding pipeline that
// a transaction was inserted or updated. Delivery is fire-and-forget after
// the ingestion batch commits: a failure here never rolls back or fails the
// ingestion itself.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"homeledger/internal/ingestion/models"
)

// DefaultTopic is the enqueue topic for embedding candidates.
const DefaultTopic = "homeledger.embedding.enqueue"

// message is the wire shape produced to the enqueue topic.
type message struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
}

// KafkaQueue produces enqueue messages to Kafka.
type KafkaQueue struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures a KafkaQueue.
type KafkaOption func(*KafkaQueue)

// WithTopic overrides the default topic.
func WithTopic(topic string) KafkaOption {
	return func(q *KafkaQueue) {
		if topic != "" {
			q.topic = topic
		}
	}
}

// WithLogger sets a logger for produce errors.
func WithLogger(logger *slog.Logger) KafkaOption {
	return func(q *KafkaQueue) {
		q.logger = logger
	}
}

// NewKafkaQueue connects a producer and ensures the topic exists. Topic
// creation is idempotent; an already-exists response is not an error.
func NewKafkaQueue(ctx context.Context, brokers []string, opts ...KafkaOption) (*KafkaQueue, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	q := &KafkaQueue{client: client, topic: DefaultTopic}
	for _, opt := range opts {
		opt(q)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, q.topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure embedding topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure embedding topic: %w", resp.Err)
	}
	return q, nil
}

// EnqueueTransaction produces one enqueue message, keyed by transaction id so
// re-ingestions of the same transaction stay ordered.
func (q *KafkaQueue) EnqueueTransaction(ctx context.Context, row *models.EnrichedTransaction) error {
	payload, err := json.Marshal(message{
		TransactionID: row.ID.String(),
		AccountID:     row.AccountID.String(),
		Description:   row.Description,
		Date:          row.Date,
	})
	if err != nil {
		return fmt.Errorf("marshal enqueue message: %w", err)
	}
	record := &kgo.Record{
		Topic: q.topic,
		Key:   []byte(row.ID.String()),
		Value: payload,
	}
	q.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && q.logger != nil {
			q.logger.WarnContext(ctx, "embedding enqueue failed",
				"transaction_id", row.ID,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding produces and releases the client.
func (q *KafkaQueue) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Flush(ctx); err != nil {
		q.client.Close()
		return fmt.Errorf("flush embedding queue: %w", err)
	}
	q.client.Close()
	return nil
}
