package raw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/platform/tx"
)

// PostgresStore persists raw ingestion records in PostgreSQL. The unique
// index on (source, cursor, source_transaction_id, payload_hash) is the
// cross-request idempotency safety net; violations surface as conflicts.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed raw record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *PostgresStore) FindByKey(ctx context.Context, key models.RawKey) (*models.RawIngestionRecord, error) {
	query := `
		SELECT id, source, cursor, account_id, source_transaction_id, payload_hash,
		       payload, first_seen_at, last_seen_at, last_processed_at,
		       transaction_id, last_disposition, last_review_reason
		FROM raw_ingestion_records
		WHERE source = $1 AND cursor = $2 AND source_transaction_id = $3 AND payload_hash = $4
	`
	row := s.conn(ctx).QueryRowContext(ctx, query, key.Source, key.Cursor, key.SourceTransactionID, key.PayloadHash)

	var rec models.RawIngestionRecord
	var accountID uuid.UUID
	var transactionID uuid.NullUUID
	var disposition, reviewReason sql.NullString
	err := row.Scan(
		&rec.ID, &rec.Source, &rec.Cursor, &accountID, &rec.SourceTransactionID, &rec.PayloadHash,
		&rec.Payload, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.LastProcessedAt,
		&transactionID, &disposition, &reviewReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find raw record: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find raw record: %w", err)
	}
	rec.AccountID = id.AccountID(accountID)
	if transactionID.Valid {
		txID := id.TransactionID(transactionID.UUID)
		rec.TransactionID = &txID
	}
	rec.LastDisposition = models.Disposition(disposition.String)
	rec.LastReviewReason = reviewReason.String
	return &rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *models.RawIngestionRecord) error {
	query := `
		INSERT INTO raw_ingestion_records (
			id, source, cursor, account_id, source_transaction_id, payload_hash,
			payload, first_seen_at, last_seen_at, last_processed_at,
			transaction_id, last_disposition, last_review_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		rec.ID, rec.Source, rec.Cursor, uuid.UUID(rec.AccountID), rec.SourceTransactionID, rec.PayloadHash,
		rec.Payload, rec.FirstSeenAt, rec.LastSeenAt, rec.LastProcessedAt,
		nullTransactionID(rec.TransactionID), nullString(string(rec.LastDisposition)), nullString(rec.LastReviewReason),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert raw record: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert raw record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rec *models.RawIngestionRecord) error {
	query := `
		UPDATE raw_ingestion_records
		SET account_id = $2, last_seen_at = $3, last_processed_at = $4,
		    transaction_id = $5, last_disposition = $6, last_review_reason = $7
		WHERE id = $1
	`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		rec.ID, uuid.UUID(rec.AccountID), rec.LastSeenAt, rec.LastProcessedAt,
		nullTransactionID(rec.TransactionID), nullString(string(rec.LastDisposition)), nullString(rec.LastReviewReason),
	)
	if err != nil {
		return fmt.Errorf("update raw record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update raw record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update raw record: %w", sentinel.ErrNotFound)
	}
	return nil
}

func nullTransactionID(txID *id.TransactionID) uuid.NullUUID {
	if txID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*txID), Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
