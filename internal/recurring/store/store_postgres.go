package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"homeledger/internal/recurring/models"
	id "homeledger/pkg/domain"
	"homeledger/pkg/platform/sentinel"
	"homeledger/pkg/platform/tx"
)

// PostgresStore persists recurring items in PostgreSQL. Last-observed dates
// are derived from the transactions table rather than stored redundantly.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed recurring item registry.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

const itemColumns = `
	id, household_id, merchant_name, expected_amount, frequency, next_due_date,
	due_window_before_days, due_window_after_days,
	amount_variance_percent, amount_variance_absolute,
	due_date_weight, amount_weight, recency_weight,
	match_threshold, score_version, tie_break_policy, active, created_at, updated_at
`

func (s *PostgresStore) ListActiveByHousehold(ctx context.Context, householdID id.HouseholdID) ([]*models.RecurringItem, error) {
	query := `SELECT ` + itemColumns + ` FROM recurring_items WHERE household_id = $1 AND active ORDER BY created_at`
	rows, err := s.conn(ctx).QueryContext(ctx, query, uuid.UUID(householdID))
	if err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	defer rows.Close()

	var items []*models.RecurringItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("list recurring items: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recurring items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, itemID id.RecurringItemID) (*models.RecurringItem, error) {
	query := `SELECT ` + itemColumns + ` FROM recurring_items WHERE id = $1`
	row := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(itemID))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find recurring item: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find recurring item: %w", err)
	}
	return item, nil
}

// UpdateDueDate persists a due-date advancement after a successful match.
func (s *PostgresStore) UpdateDueDate(ctx context.Context, item *models.RecurringItem) error {
	query := `UPDATE recurring_items SET next_due_date = $2, updated_at = $3 WHERE id = $1`
	res, err := s.conn(ctx).ExecContext(ctx, query, uuid.UUID(item.ID), item.NextDueDate, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update recurring item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recurring item: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update recurring item: %w", sentinel.ErrNotFound)
	}
	return nil
}

// LastObservedDate returns the most recent transaction date linked to the
// item, or nil when none is linked yet.
func (s *PostgresStore) LastObservedDate(ctx context.Context, itemID id.RecurringItemID) (*time.Time, error) {
	query := `SELECT max(date) FROM transactions WHERE recurring_item_id = $1`
	var last sql.NullTime
	if err := s.conn(ctx).QueryRowContext(ctx, query, uuid.UUID(itemID)).Scan(&last); err != nil {
		return nil, fmt.Errorf("last observed date: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	observed := last.Time.UTC()
	return &observed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.RecurringItem, error) {
	var item models.RecurringItem
	var itemID, householdID uuid.UUID
	var expectedAmount, variancePercent, varianceAbsolute string
	var dueWeight, amountWeight, recencyWeight, threshold string
	var frequency string
	err := row.Scan(
		&itemID, &householdID, &item.MerchantName, &expectedAmount, &frequency, &item.NextDueDate,
		&item.DueWindowBeforeDays, &item.DueWindowAfterDays,
		&variancePercent, &varianceAbsolute,
		&dueWeight, &amountWeight, &recencyWeight,
		&threshold, &item.ScoreVersion, &item.TieBreakPolicy, &item.Active, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ID = id.RecurringItemID(itemID)
	item.HouseholdID = id.HouseholdID(householdID)
	item.Frequency = models.Frequency(frequency)
	item.NextDueDate = item.NextDueDate.UTC()
	for _, bind := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&item.ExpectedAmount, expectedAmount},
		{&item.AmountVariancePercent, variancePercent},
		{&item.AmountVarianceAbsolute, varianceAbsolute},
		{&item.DueDateWeight, dueWeight},
		{&item.AmountWeight, amountWeight},
		{&item.RecencyWeight, recencyWeight},
		{&item.MatchThreshold, threshold},
	} {
		parsed, err := decimal.NewFromString(bind.src)
		if err != nil {
			return nil, fmt.Errorf("parse recurring item decimal: %w", err)
		}
		*bind.dst = parsed
	}
	return &item, nil
}
