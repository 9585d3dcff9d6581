package categorization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrMappingNotFound is returned when a mapping id does not exist.
var ErrMappingNotFound = errors.New("category mapping not found")

// CategoryMapping is one bank-label-to-category row for an institution.
type CategoryMapping struct {
	ID            uuid.UUID `json:"id"`
	InstitutionID uuid.UUID `json:"institution_id"`
	BankCategory  string    `json:"bank_category"`
	CategoryID    uuid.UUID `json:"category_id"`
	Priority      int       `json:"priority"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewMapping is the payload for creating a mapping.
type NewMapping struct {
	InstitutionID uuid.UUID `json:"institution_id"`
	BankCategory  string    `json:"bank_category"`
	CategoryID    uuid.UUID `json:"category_id"`
	Priority      int       `json:"priority"`
}

// MappingUpdate carries the mutable fields of a mapping. Nil means unchanged.
type MappingUpdate struct {
	CategoryID *uuid.UUID `json:"category_id"`
	Priority   *int       `json:"priority"`
}

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository stores category mappings in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates a mapping repository on the given pool.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// ActiveMappingTable implements MappingRepository. Labels are normalized and
// candidate lists ordered by priority descending, ties broken by created_at so
// the order is stable.
func (r *Repository) ActiveMappingTable(ctx context.Context, institutionID uuid.UUID) (map[string][]uuid.UUID, error) {
	query := `
		SELECT LOWER(TRIM(bank_category)), category_id
		FROM category_mappings
		WHERE institution_id = $1 AND is_active = true
		ORDER BY priority DESC, created_at ASC`

	rows, err := r.db.Query(ctx, query, institutionID)
	if err != nil {
		return nil, fmt.Errorf("query category mappings: %w", err)
	}
	defer rows.Close()

	table := make(map[string][]uuid.UUID)
	for rows.Next() {
		var label string
		var categoryID uuid.UUID
		if err := rows.Scan(&label, &categoryID); err != nil {
			return nil, fmt.Errorf("scan category mapping: %w", err)
		}
		table[label] = append(table[label], categoryID)
	}
	return table, rows.Err()
}

// UncategorizedID implements MappingRepository.
func (r *Repository) UncategorizedID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM categories WHERE name = 'Uncategorized' AND is_active = true`,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrUncategorizedMissing
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("query Uncategorized category: %w", err)
	}
	return id, nil
}

const mappingColumns = `id, institution_id, bank_category, category_id, priority, is_active, created_at, updated_at`

func scanMapping(row pgx.Row) (CategoryMapping, error) {
	var m CategoryMapping
	err := row.Scan(&m.ID, &m.InstitutionID, &m.BankCategory, &m.CategoryID,
		&m.Priority, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ListByInstitution returns every active mapping for an institution, highest
// priority first.
func (r *Repository) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]CategoryMapping, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+mappingColumns+`
		FROM category_mappings
		WHERE institution_id = $1 AND is_active = true
		ORDER BY priority DESC, bank_category ASC`, institutionID)
	if err != nil {
		return nil, fmt.Errorf("query mappings: %w", err)
	}
	defer rows.Close()

	var mappings []CategoryMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// Create inserts one mapping and returns the stored row.
func (r *Repository) Create(ctx context.Context, in NewMapping) (CategoryMapping, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO category_mappings (institution_id, bank_category, category_id, priority)
		VALUES ($1, $2, $3, $4)
		RETURNING `+mappingColumns,
		in.InstitutionID, in.BankCategory, in.CategoryID, in.Priority)

	m, err := scanMapping(row)
	if err != nil {
		return CategoryMapping{}, fmt.Errorf("insert category mapping: %w", err)
	}
	return m, nil
}

// Update changes category and/or priority of an existing mapping.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, upd MappingUpdate) (CategoryMapping, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE category_mappings
		SET category_id = COALESCE($2, category_id),
		    priority = COALESCE($3, priority),
		    updated_at = NOW()
		WHERE id = $1 AND is_active = true
		RETURNING `+mappingColumns,
		id, upd.CategoryID, upd.Priority)

	m, err := scanMapping(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return CategoryMapping{}, ErrMappingNotFound
	}
	if err != nil {
		return CategoryMapping{}, fmt.Errorf("update category mapping: %w", err)
	}
	return m, nil
}

// Deactivate soft-deletes a mapping.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE category_mappings
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("deactivate category mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMappingNotFound
	}
	return nil
}

// BulkCreate inserts mappings in one round trip. Conflicting active triples
// are skipped rather than failed so seeds are re-runnable.
func (r *Repository) BulkCreate(ctx context.Context, in []NewMapping) (int64, error) {
	if len(in) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, m := range in {
		batch.Queue(`
			INSERT INTO category_mappings (institution_id, bank_category, category_id, priority)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING`,
			m.InstitutionID, m.BankCategory, m.CategoryID, m.Priority)
	}
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range in {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("bulk insert category mappings: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
