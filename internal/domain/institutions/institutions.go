// Package institutions manages the banks and card issuers accounts belong to.
package institutions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrInstitutionNotFound = errors.New("institution not found")

type Institution struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
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

const institutionColumns = `id, name, is_active, created_at, updated_at`

func scanInstitution(row pgx.Row) (Institution, error) {
	var i Institution
	err := row.Scan(&i.ID, &i.Name, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (r *Repository) List(ctx context.Context) ([]Institution, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+institutionColumns+`
		FROM institutions
		WHERE is_active = true
		ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query institutions: %w", err)
	}
	defer rows.Close()

	var institutions []Institution
	for rows.Next() {
		i, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		institutions = append(institutions, i)
	}
	return institutions, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Institution, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+institutionColumns+`
		FROM institutions
		WHERE id = $1 AND is_active = true`, id)

	i, err := scanInstitution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInstitutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query institution: %w", err)
	}
	return &i, nil
}

func (r *Repository) Create(ctx context.Context, name string) (*Institution, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO institutions (name)
		VALUES ($1)
		RETURNING `+institutionColumns, name)

	i, err := scanInstitution(row)
	if err != nil {
		return nil, fmt.Errorf("insert institution: %w", err)
	}
	return &i, nil
}

func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE institutions
		SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("deactivate institution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInstitutionNotFound
	}
	return nil
}
