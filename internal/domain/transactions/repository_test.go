package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRepository(mock), mock
}

func fakeTransaction(accountID uuid.UUID) Transaction {
	now := time.Now()
	return Transaction{
		ID:              uuid.New(),
		AccountID:       accountID,
		CategoryID:      uuid.New(),
		TransactionDate: gofakeit.DateRange(now.AddDate(0, -3, 0), now),
		PostedDate:      now,
		Description:     gofakeit.Company(),
		Amount:          -int64(gofakeit.IntRange(100, 100000)),
		TransactionType: TypePurchase,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func transactionRows(txs ...Transaction) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "account_id", "category_id", "import_batch_id", "transaction_date",
		"posted_date", "description", "amount", "transaction_type", "bank_category",
		"imported_at", "is_active", "created_at", "updated_at",
	})
	for _, t := range txs {
		rows.AddRow(t.ID, t.AccountID, t.CategoryID, t.ImportBatchID, t.TransactionDate,
			t.PostedDate, t.Description, t.Amount, t.TransactionType, t.BankCategory,
			t.ImportedAt, t.IsActive, t.CreatedAt, t.UpdatedAt)
	}
	return rows
}

func TestListByAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	first := fakeTransaction(accountID)
	second := fakeTransaction(accountID)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM transactions`).
		WithArgs(accountID, (*uuid.UUID)(nil), (*time.Time)(nil), (*time.Time)(nil), 50, 0).
		WillReturnRows(transactionRows(first, second))

	txs, err := repo.ListByAccount(context.Background(), accountID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, first.Description, txs[0].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByAccountWithFilter(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	categoryID := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT (.+) FROM transactions`).
		WithArgs(accountID, &categoryID, &from, (*time.Time)(nil), 10, 20).
		WillReturnRows(transactionRows())

	txs, err := repo.ListByAccount(context.Background(), accountID, ListFilter{
		CategoryID: &categoryID,
		From:       &from,
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM transactions`).
		WithArgs(id).
		WillReturnRows(transactionRows())

	_, err := repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestUpdateCategory(t *testing.T) {
	repo, mock := newMockRepo(t)
	tx := fakeTransaction(uuid.New())
	newCategory := uuid.New()
	tx.CategoryID = newCategory

	mock.ExpectQuery(`UPDATE transactions`).
		WithArgs(tx.ID, newCategory).
		WillReturnRows(transactionRows(tx))

	updated, err := repo.UpdateCategory(context.Background(), tx.ID, newCategory)
	require.NoError(t, err)
	assert.Equal(t, newCategory, updated.CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SoftDelete(context.Background(), id))

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.SoftDelete(context.Background(), id), ErrTransactionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDisplayAmount(t *testing.T) {
	tx := Transaction{Amount: -123456}
	assert.Equal(t, "-$1,234.56", tx.DisplayAmount("USD"))
}
