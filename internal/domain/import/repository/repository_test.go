package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
)

func newMockRepo(t *testing.T) (*PostgresImportRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresImportRepository(mock), mock
}

func templateRow(t *Template) *pgxmock.Rows {
	mappings, _ := json.Marshal(t.ColumnMappings)
	amountCfg, _ := json.Marshal(t.AmountConfig)
	return pgxmock.NewRows([]string{
		"id", "institution_id", "name", "file_format", "column_mappings", "amount_config",
		"date_format", "header_row", "skip_rows", "sheet_name", "is_active", "created_at", "updated_at",
	}).AddRow(t.ID, t.InstitutionID, t.Name, t.FileFormat, mappings, amountCfg,
		t.DateFormat, t.HeaderRow, t.SkipRows, t.SheetName, t.IsActive, t.CreatedAt, t.UpdatedAt)
}

func sampleTemplate() *Template {
	now := time.Now()
	return &Template{
		ID:            uuid.New(),
		InstitutionID: uuid.New(),
		Name:          "Chase Checking CSV",
		FileFormat:    FormatCSV,
		ColumnMappings: map[string]string{
			parser.FieldTransactionDate: "Transaction Date",
			parser.FieldPostedDate:      "Post Date",
			parser.FieldDescription:     "Description",
			parser.FieldAmount:          "Amount",
		},
		AmountConfig: parser.AmountConfig{
			SignConvention: parser.SignBankStandard,
			DecimalPlaces:  2,
		},
		DateFormat: "%m/%d/%Y",
		HeaderRow:  1,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestGetTemplate(t *testing.T) {
	repo, mock := newMockRepo(t)
	want := sampleTemplate()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_templates`).
		WithArgs(want.ID).
		WillReturnRows(templateRow(want))

	got, err := repo.GetTemplate(context.Background(), want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ColumnMappings, got.ColumnMappings)
	assert.Equal(t, want.AmountConfig, got.AmountConfig)
	assert.Equal(t, want.Name, got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTemplateNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_templates`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := repo.GetTemplate(context.Background(), id)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestCreateTemplateRejectsInvalidConfig(t *testing.T) {
	repo, _ := newMockRepo(t)
	tpl := sampleTemplate()
	delete(tpl.ColumnMappings, parser.FieldPostedDate)

	_, err := repo.CreateTemplate(context.Background(), tpl)
	assert.ErrorContains(t, err, "posted_date")
}

func TestCreateBatchStoresSnapshot(t *testing.T) {
	repo, mock := newMockRepo(t)
	date := "2024-01-15"
	batch := &ImportBatch{
		AccountID:  uuid.New(),
		TemplateID: uuid.New(),
		Filename:   "january.csv",
		FileFormat: FormatCSV,
		TotalRows:  1,
		ParsedTransactions: []ParsedTransaction{{
			RowNumber:       2,
			TransactionDate: &date,
			PostedDate:      &date,
			Description:     "COFFEE SHOP",
			Amount:          -450,
			TransactionType: parser.TypeDebit,
		}},
	}
	snapshot, err := json.Marshal(batch.ParsedTransactions)
	require.NoError(t, err)

	id := uuid.New()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(batch.AccountID, batch.TemplateID, batch.Filename, batch.FileFormat,
			StatusPreview, batch.TotalRows, snapshot).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "template_id", "filename", "file_format", "status", "total_rows",
			"imported_count", "duplicate_count", "skipped_count",
			"error_message", "created_at", "imported_at",
		}).AddRow(id, batch.AccountID, batch.TemplateID, batch.Filename, FormatCSV, StatusPreview, 1,
			0, 0, 0, nil, time.Now(), nil))

	created, err := repo.CreateBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, id, created.ID)
	assert.Equal(t, StatusPreview, created.Status)
	require.Len(t, created.ParsedTransactions, 1)
	assert.Equal(t, "COFFEE SHOP", created.ParsedTransactions[0].Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBatch(t *testing.T) {
	repo, mock := newMockRepo(t)
	batchID := uuid.New()
	tx := NewTransaction{
		AccountID:       uuid.New(),
		CategoryID:      uuid.New(),
		ImportBatchID:   batchID,
		TransactionDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		PostedDate:      time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
		Description:     "GROCERY STORE",
		Amount:          -5000,
		TransactionType: "purchase",
	}
	counts := BatchCounts{Imported: 1, Duplicates: 1, Skipped: 1}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batchID, StatusCompleted, counts.Imported, counts.Duplicates,
			counts.Skipped, StatusPreview).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, []string{
		"account_id", "category_id", "import_batch_id", "transaction_date",
		"posted_date", "description", "amount", "transaction_type", "bank_category", "imported_at",
	}).WillReturnResult(1)
	mock.ExpectCommit()
	mock.ExpectRollback()

	err := repo.CompleteBatch(context.Background(), batchID, []NewTransaction{tx}, counts)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBatchNotPreview(t *testing.T) {
	repo, mock := newMockRepo(t)
	batchID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batchID, StatusCompleted, 0, 0, 0, StatusPreview).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.CompleteBatch(context.Background(), batchID, nil, BatchCounts{})
	assert.ErrorIs(t, err, ErrBatchNotPreview)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBatchRollsBackOnInsertFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	batchID := uuid.New()
	tx := NewTransaction{AccountID: uuid.New(), CategoryID: uuid.New(), ImportBatchID: batchID, TransactionType: "purchase"}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batchID, StatusCompleted, 1, 0, 0, StatusPreview).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"transactions"}, []string{
		"account_id", "category_id", "import_batch_id", "transaction_date",
		"posted_date", "description", "amount", "transaction_type", "bank_category", "imported_at",
	}).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.CompleteBatch(context.Background(), batchID, []NewTransaction{tx}, BatchCounts{Imported: 1})
	assert.ErrorContains(t, err, "constraint violation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBatchesFiltersByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	status := StatusPreview

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_batches`).
		WithArgs(&accountID, &status, 50, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "template_id", "filename", "file_format", "status", "total_rows",
			"imported_count", "duplicate_count", "skipped_count",
			"error_message", "created_at", "imported_at",
		}).AddRow(uuid.New(), accountID, uuid.New(), "jan.csv", FormatCSV, StatusPreview, 3,
			0, 0, 0, nil, time.Now(), nil))

	batches, err := repo.ListBatches(context.Background(), &accountID, &status, 50, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, StatusPreview, batches[0].Status)
	assert.Empty(t, batches[0].ParsedTransactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkBatchFailed(t *testing.T) {
	repo, mock := newMockRepo(t)
	batchID := uuid.New()

	mock.ExpectExec(`UPDATE import_batches`).
		WithArgs(batchID, StatusFailed, "materialization failed", StatusPreview).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkBatchFailed(context.Background(), batchID, "materialization failed"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupStalePreviews(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM import_batches`).
		WithArgs(StatusPreview, "86400 seconds").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := repo.CleanupStalePreviews(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParsedTransactionIsValid(t *testing.T) {
	p := ParsedTransaction{}
	assert.True(t, p.IsValid())
	p.ValidationErrors = []string{"Description is required"}
	assert.False(t, p.IsValid())
}
