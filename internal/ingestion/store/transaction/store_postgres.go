package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"homeledger/internal/ingestion/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/platform/tx"
)

// PostgresStore persists enriched transactions in PostgreSQL. The unique
// index on external_id guarantees at most one row per vendor transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed transaction store.
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

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.EnrichedTransaction, error) {
	query := `
		SELECT id, account_id, recurring_item_id, external_id, description,
		       amount, date, review_status, review_reason, created_at, updated_at
		FROM transactions
		WHERE external_id = $1
	`
	row := s.conn(ctx).QueryRowContext(ctx, query, externalID)

	var record models.EnrichedTransaction
	var rowID, accountID uuid.UUID
	var recurringItemID uuid.NullUUID
	var amount string
	var reviewReason sql.NullString
	err := row.Scan(
		&rowID, &accountID, &recurringItemID, &record.ExternalID, &record.Description,
		&amount, &record.Date, &record.ReviewStatus, &reviewReason, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find transaction: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	record.ID = id.TransactionID(rowID)
	record.AccountID = id.AccountID(accountID)
	if recurringItemID.Valid {
		recurringID := id.RecurringItemID(recurringItemID.UUID)
		record.RecurringItemID = &recurringID
	}
	record.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse transaction amount: %w", err)
	}
	record.Date = record.Date.UTC()
	record.ReviewReason = reviewReason.String
	return &record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, row *models.EnrichedTransaction) error {
	query := `
		INSERT INTO transactions (
			id, account_id, recurring_item_id, external_id, description,
			amount, date, review_status, review_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(row.ID), uuid.UUID(row.AccountID), nullRecurringItemID(row.RecurringItemID),
		row.ExternalID, row.Description, row.Amount.StringFixed(2), row.Date,
		string(row.ReviewStatus), nullString(row.ReviewReason), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, row *models.EnrichedTransaction) error {
	query := `
		UPDATE transactions
		SET account_id = $2, recurring_item_id = $3, description = $4,
		    amount = $5, date = $6, review_status = $7, review_reason = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.conn(ctx).ExecContext(ctx, query,
		uuid.UUID(row.ID), uuid.UUID(row.AccountID), nullRecurringItemID(row.RecurringItemID),
		row.Description, row.Amount.StringFixed(2), row.Date,
		string(row.ReviewStatus), nullString(row.ReviewReason), row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update transaction: %w", sentinel.ErrNotFound)
	}
	return nil
}

// LastDateForRecurringItem returns the most recent linked transaction date
// for a recurring item, or nil when none is linked yet.
func (s *PostgresStore) LastDateForRecurringItem(ctx context.Context, recurringItemID id.RecurringItemID) (*time.Time, error) {
	query := `SELECT max(date) FROM transactions WHERE recurring_item_id = $1`
	var last sql.NullTime
	if err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(recurringItemID)).Scan(&last); err != nil {
		return nil, fmt.Errorf("last observed date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	observed := last.Time.UTC()
	return &observed, nil
}

func nullRecurringItemID(recurringID *id.RecurringItemID) uuid.NullUUID {
	if recurringID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*recurringID), Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
