// Package accounts manages the financial accounts transactions belong to.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountType distinguishes how balances and statements behave.
type AccountType string

const (
	TypeChecking   AccountType = "checking"
	TypeSavings    AccountType = "savings"
	TypeCreditCard AccountType = "credit_card"
	TypeInvestment AccountType = "investment"
)

type Account struct {
	ID            uuid.UUID   `json:"id"`
	InstitutionID uuid.UUID   `json:"institution_id"`
	Name          string      `json:"name"`
	AccountType   AccountType `json:"account_type"`
	Currency      string      `json:"currency"`
	IsActive      bool        `json:"is_active"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const accountColumns = `id, institution_id, name, account_type, currency, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.InstitutionID, &a.Name, &a.AccountType, &a.Currency,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE is_active = true
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND is_active = true`, id)

	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &a, nil
}

func (r *Repository) Create(ctx context.Context, institutionID uuid.UUID, name string, accountType AccountType, currency string) (*Account, error) {
	if currency == "" {
		currency = "USD"
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (institution_id, name, account_type, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING `+accountColumns,
		institutionID, name, accountType, currency)

	a, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &a, nil
}

func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
