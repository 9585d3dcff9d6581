package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrTransactionNotFound is returned when an id does not match an active row.
var ErrTransactionNotFound = errors.New("transaction not found")

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository reads and soft-deletes ledger transactions.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows and pages a transaction listing.
type ListFilter struct {
	CategoryID *uuid.UUID
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

const transactionColumns = `id, account_id, category_id, import_batch_id, transaction_date,
	posted_date, description, amount, transaction_type, bank_category,
	imported_at, is_active, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.ImportBatchID, &t.TransactionDate,
		&t.PostedDate, &t.Description, &t.Amount, &t.TransactionType, &t.BankCategory,
		&t.ImportedAt, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// ListByAccount returns an account's active transactions, newest first.
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID, filter ListFilter) ([]Transaction, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1 AND is_active = true
		  AND ($2::uuid IS NULL OR category_id = $2)
		  AND ($3::date IS NULL OR transaction_date >= $3)
		  AND ($4::date IS NULL OR transaction_date <= $4)
		ORDER BY transaction_date DESC, created_at DESC
		LIMIT $5 OFFSET $6`,
		accountID, filter.CategoryID, filter.From, filter.To, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND is_active = true`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return &t, nil
}

// UpdateCategory recategorizes a transaction, the usual followup to an import
// that landed rows in Uncategorized.
func (r *Repository) UpdateCategory(ctx context.Context, id, categoryID uuid.UUID) (*Transaction, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE transactions
		SET category_id = $2, updated_at = NOW()
		WHERE id = $1 AND is_active = true
		RETURNING `+transactionColumns, id, categoryID)

	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update transaction category: %w", err)
	}
	return &t, nil
}

// SoftDelete deactivates a transaction so it drops out of listings and
// duplicate detection without losing history.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
