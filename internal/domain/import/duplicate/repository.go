package duplicate

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads ledger transactions for duplicate hashing.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a ledger reader backed by Postgres.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ListActiveEntries loads every non-deleted transaction on the account.
func (r *Repository) ListActiveEntries(ctx context.Context, accountID uuid.UUID) ([]LedgerEntry, error) {
	query := `
		SELECT transaction_date, description, amount
		FROM transactions
		WHERE account_id = $1 AND is_active = true
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.TransactionDate, &e.Description, &e.Amount); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
