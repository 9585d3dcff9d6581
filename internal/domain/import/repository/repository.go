package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrTemplateNotFound = errors.New("import template not found")
	ErrBatchNotFound    = errors.New("import batch not found")
	ErrBatchNotPreview  = errors.New("import batch is not in PREVIEW status")
	ErrAccountNotFound  = errors.New("account not found")
)

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ImportRepository is the persistence surface the import service depends on.
type ImportRepository interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	AccountExists(ctx context.Context, id uuid.UUID) (bool, error)
	CreateBatch(ctx context.Context, batch *ImportBatch) (*ImportBatch, error)
	GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	CompleteBatch(ctx context.Context, batchID uuid.UUID, txs []NewTransaction, counts BatchCounts) error
	MarkBatchFailed(ctx context.Context, batchID uuid.UUID, reason string) error
}

// PostgresImportRepository implements ImportRepository on Postgres.
type PostgresImportRepository struct {
	db DB
}

func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

const templateColumns = `id, institution_id, name, file_format, column_mappings, amount_config,
	date_format, header_row, skip_rows, sheet_name, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var mappings, amountCfg []byte
	err := row.Scan(&t.ID, &t.InstitutionID, &t.Name, &t.FileFormat, &mappings, &amountCfg,
		&t.DateFormat, &t.HeaderRow, &t.SkipRows, &t.SheetName, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mappings, &t.ColumnMappings); err != nil {
		return nil, fmt.Errorf("decode column_mappings: %w", err)
	}
	if err := json.Unmarshal(amountCfg, &t.AmountConfig); err != nil {
		return nil, fmt.Errorf("decode amount_config: %w", err)
	}
	return &t, nil
}

func (r *PostgresImportRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM import_templates
		WHERE id = $1 AND is_active = true`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query import template: %w", err)
	}
	return t, nil
}

// ListTemplates returns templates, optionally filtered by institution.
// Inactive templates are included only when requested.
func (r *PostgresImportRepository) ListTemplates(ctx context.Context, institutionID *uuid.UUID, includeInactive bool) ([]Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM import_templates
		WHERE (is_active = true OR $2)
		  AND ($1::uuid IS NULL OR institution_id = $1)
		ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, institutionID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("query import templates: %w", err)
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (r *PostgresImportRepository) CreateTemplate(ctx context.Context, t *Template) (*Template, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	mappings, err := json.Marshal(t.ColumnMappings)
	if err != nil {
		return nil, fmt.Errorf("encode column_mappings: %w", err)
	}
	amountCfg, err := json.Marshal(t.AmountConfig)
	if err != nil {
		return nil, fmt.Errorf("encode amount_config: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO import_templates
			(institution_id, name, file_format, column_mappings, amount_config,
			 date_format, header_row, skip_rows, sheet_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+templateColumns,
		t.InstitutionID, t.Name, t.FileFormat, mappings, amountCfg,
		t.DateFormat, t.HeaderRow, t.SkipRows, t.SheetName)

	created, err := scanTemplate(row)
	if err != nil {
		return nil, fmt.Errorf("insert import template: %w", err)
	}
	return created, nil
}

func (r *PostgresImportRepository) UpdateTemplate(ctx context.Context, t *Template) (*Template, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	mappings, err := json.Marshal(t.ColumnMappings)
	if err != nil {
		return nil, fmt.Errorf("encode column_mappings: %w", err)
	}
	amountCfg, err := json.Marshal(t.AmountConfig)
	if err != nil {
		return nil, fmt.Errorf("encode amount_config: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE import_templates
		SET name = $2, file_format = $3, column_mappings = $4, amount_config = $5,
		    date_format = $6, header_row = $7, skip_rows = $8, sheet_name = $9,
		    updated_at = NOW()
		WHERE id = $1 AND is_active = true
		RETURNING `+templateColumns,
		t.ID, t.Name, t.FileFormat, mappings, amountCfg,
		t.DateFormat, t.HeaderRow, t.SkipRows, t.SheetName)

	updated, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update import template: %w", err)
	}
	return updated, nil
}

func (r *PostgresImportRepository) DeactivateTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE import_templates
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("deactivate import template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *PostgresImportRepository) AccountExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND is_active = true)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query account: %w", err)
	}
	return exists, nil
}

const batchColumns = `id, account_id, template_id, filename, file_format, status, total_rows,
	imported_count, duplicate_count, skipped_count,
	error_message, created_at, imported_at`

func scanBatch(row pgx.Row) (*ImportBatch, error) {
	var b ImportBatch
	err := row.Scan(&b.ID, &b.AccountID, &b.TemplateID, &b.Filename, &b.FileFormat, &b.Status, &b.TotalRows,
		&b.ImportedCount, &b.DuplicateCount, &b.SkippedCount,
		&b.ErrorMessage, &b.CreatedAt, &b.ImportedAt)
	return &b, err
}

// CreateBatch persists a new PREVIEW batch along with its parsed-row snapshot.
func (r *PostgresImportRepository) CreateBatch(ctx context.Context, batch *ImportBatch) (*ImportBatch, error) {
	snapshot, err := json.Marshal(batch.ParsedTransactions)
	if err != nil {
		return nil, fmt.Errorf("encode parsed transactions: %w", err)
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO import_batches
			(account_id, template_id, filename, file_format, status, total_rows, parsed_transactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+batchColumns,
		batch.AccountID, batch.TemplateID, batch.Filename, batch.FileFormat,
		StatusPreview, batch.TotalRows, snapshot)

	created, err := scanBatch(row)
	if err != nil {
		return nil, fmt.Errorf("insert import batch: %w", err)
	}
	created.ParsedTransactions = batch.ParsedTransactions
	return created, nil
}

// GetBatch loads a batch including its snapshot. The snapshot is nil after a
// batch leaves PREVIEW.
func (r *PostgresImportRepository) GetBatch(ctx context.Context, id uuid.UUID) (*ImportBatch, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+batchColumns+`, parsed_transactions
		FROM import_batches
		WHERE id = $1`, id)

	var b ImportBatch
	var snapshot []byte
	err := row.Scan(&b.ID, &b.AccountID, &b.TemplateID, &b.Filename, &b.FileFormat, &b.Status, &b.TotalRows,
		&b.ImportedCount, &b.DuplicateCount, &b.SkippedCount,
		&b.ErrorMessage, &b.CreatedAt, &b.ImportedAt, &snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query import batch: %w", err)
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &b.ParsedTransactions); err != nil {
			return nil, fmt.Errorf("decode parsed transactions: %w", err)
		}
	}
	return &b, nil
}

// ListBatches returns batches newest first, without snapshots. Nil filters
// mean all accounts or all statuses.
func (r *PostgresImportRepository) ListBatches(ctx context.Context, accountID *uuid.UUID, status *ImportStatus, limit, offset int) ([]ImportBatch, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+batchColumns+`
		FROM import_batches
		WHERE ($1::uuid IS NULL OR account_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, accountID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query import batches: %w", err)
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan import batch: %w", err)
		}
		batches = append(batches, *b)
	}
	return batches, rows.Err()
}

// CompleteBatch materializes confirmed rows and finalizes the batch in one
// transaction. The status guard makes confirmation idempotent under races:
// only the caller that flips PREVIEW to COMPLETED inserts rows.
func (r *PostgresImportRepository) CompleteBatch(ctx context.Context, batchID uuid.UUID, txs []NewTransaction, counts BatchCounts) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete batch: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE import_batches
		SET status = $2, imported_count = $3, duplicate_count = $4, skipped_count = $5,
		    imported_at = NOW(), parsed_transactions = NULL
		WHERE id = $1 AND status = $6`,
		batchID, StatusCompleted, counts.Imported, counts.Duplicates,
		counts.Skipped, StatusPreview)
	if err != nil {
		return fmt.Errorf("finalize import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotPreview
	}

	if len(txs) > 0 {
		importedAt := time.Now().UTC()
		rows := make([][]any, len(txs))
		for i, t := range txs {
			rows[i] = []any{t.AccountID, t.CategoryID, t.ImportBatchID, t.TransactionDate,
				t.PostedDate, t.Description, t.Amount, t.TransactionType, t.BankCategory, importedAt}
		}
		copied, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transactions"},
			[]string{"account_id", "category_id", "import_batch_id", "transaction_date",
				"posted_date", "description", "amount", "transaction_type", "bank_category", "imported_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		if copied != int64(len(txs)) {
			return fmt.Errorf("insert transactions: copied %d of %d rows", copied, len(txs))
		}
	}

	return tx.Commit(ctx)
}

// MarkBatchFailed moves a PREVIEW batch to FAILED and drops its snapshot.
func (r *PostgresImportRepository) MarkBatchFailed(ctx context.Context, batchID uuid.UUID, reason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE import_batches
		SET status = $2, error_message = $3, parsed_transactions = NULL
		WHERE id = $1 AND status = $4`,
		batchID, StatusFailed, reason, StatusPreview)
	if err != nil {
		return fmt.Errorf("fail import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchNotPreview
	}
	return nil
}

// CleanupStalePreviews deletes PREVIEW batches older than maxAge that were
// never confirmed or abandoned explicitly.
func (r *PostgresImportRepository) CleanupStalePreviews(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM import_batches
		WHERE status = $1 AND created_at < NOW() - $2::interval`,
		StatusPreview, fmt.Sprintf("%d seconds", int64(maxAge.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("cleanup stale previews: %w", err)
	}
	return tag.RowsAffected(), nil
}
