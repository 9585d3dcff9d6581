package categorization

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
)

// seedRow is one line of a mapping seed file. Category is referenced by name
// so seed files stay portable across databases with different ids.
type seedRow struct {
	BankCategory string `csv:"bank_category"`
	CategoryName string `csv:"category_name"`
	Priority     int    `csv:"priority"`
}

// CategoryIDByName resolves a canonical category name to its id.
type CategoryIDByName func(ctx context.Context, name string) (uuid.UUID, error)

// SeedFromCSV bulk-loads mappings for one institution from a CSV with the
// header bank_category,category_name,priority. Rows whose category name does
// not resolve fail the whole seed. Returns the number of rows inserted;
// already-present mappings are skipped.
func (r *Repository) SeedFromCSV(ctx context.Context, institutionID uuid.UUID, src io.Reader, lookup CategoryIDByName) (int64, error) {
	var rows []seedRow
	if err := gocsv.Unmarshal(src, &rows); err != nil {
		return 0, fmt.Errorf("decode mapping seed: %w", err)
	}

	mappings := make([]NewMapping, 0, len(rows))
	for i, row := range rows {
		label := strings.TrimSpace(row.BankCategory)
		if label == "" {
			return 0, fmt.Errorf("mapping seed row %d: empty bank_category", i+2)
		}
		categoryID, err := lookup(ctx, strings.TrimSpace(row.CategoryName))
		if err != nil {
			return 0, fmt.Errorf("mapping seed row %d: category %q: %w", i+2, row.CategoryName, err)
		}
		mappings = append(mappings, NewMapping{
			InstitutionID: institutionID,
			BankCategory:  label,
			CategoryID:    categoryID,
			Priority:      row.Priority,
		})
	}
	return r.BulkCreate(ctx, mappings)
}
