// Package repository persists import templates and import batches, including
// the parsed-row snapshot that backs the preview/confirm workflow.
package repository

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
)

// FileFormat is the source file type of an import template.
type FileFormat string

const (
	FormatCSV   FileFormat = "csv"
	FormatExcel FileFormat = "excel"
)

// ImportStatus is the lifecycle state of an import batch. COMPLETED and
// FAILED are terminal.
type ImportStatus string

const (
	StatusPreview   ImportStatus = "PREVIEW"
	StatusCompleted ImportStatus = "COMPLETED"
	StatusFailed    ImportStatus = "FAILED"
)

// Template describes how one institution's export files parse.
type Template struct {
	ID             uuid.UUID           `json:"id"`
	InstitutionID  uuid.UUID           `json:"institution_id"`
	Name           string              `json:"name"`
	FileFormat     FileFormat          `json:"file_format"`
	ColumnMappings map[string]string   `json:"column_mappings"`
	AmountConfig   parser.AmountConfig `json:"amount_config"`
	DateFormat     string              `json:"date_format"`
	HeaderRow      int                 `json:"header_row"`
	SkipRows       int                 `json:"skip_rows"`
	SheetName      string              `json:"sheet_name,omitempty"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Validate checks the template the same way the parser will, so broken
// templates are rejected at write time instead of first upload.
func (t *Template) Validate() error {
	switch t.FileFormat {
	case FormatCSV, FormatExcel:
	default:
		return fmt.Errorf("unsupported file format %q", t.FileFormat)
	}
	_, err := parser.NewRowParser(noopDecoder{}, t.ParserConfig())
	return err
}

// ParserConfig converts the template into the parser's configuration.
func (t *Template) ParserConfig() parser.Config {
	return parser.Config{
		ColumnMappings: t.ColumnMappings,
		AmountConfig:   t.AmountConfig,
		DateFormat:     t.DateFormat,
		HeaderRow:      t.HeaderRow,
		SkipRows:       t.SkipRows,
	}
}

type noopDecoder struct{}

func (noopDecoder) Decode([]byte) (*parser.Table, error) { return &parser.Table{}, nil }

// ParsedTransaction is one row of a batch's preview snapshot, stored as JSON
// on the batch. Dates are ISO-8601 strings so the snapshot round-trips
// byte-stable.
type ParsedTransaction struct {
	RowNumber            int                    `json:"row_number"`
	TransactionDate      *string                `json:"transaction_date"`
	PostedDate           *string                `json:"posted_date"`
	Description          string                 `json:"description"`
	Amount               int64                  `json:"amount"`
	TransactionType      parser.TransactionType `json:"transaction_type"`
	BankCategory         *string                `json:"bank_category"`
	CategoryID           *uuid.UUID             `json:"coinpurse_category_id"`
	CandidateCategoryIDs []uuid.UUID            `json:"candidate_category_ids,omitempty"`
	IsDuplicate          bool                   `json:"is_duplicate"`
	ValidationErrors     []string               `json:"validation_errors"`
}

// IsValid reports whether the row parsed without validation errors.
func (p *ParsedTransaction) IsValid() bool {
	return len(p.ValidationErrors) == 0
}

// ImportBatch is one upload of a statement file against a template.
type ImportBatch struct {
	ID                 uuid.UUID           `json:"id"`
	AccountID          uuid.UUID           `json:"account_id"`
	TemplateID         uuid.UUID           `json:"template_id"`
	Filename           string              `json:"filename"`
	FileFormat         FileFormat          `json:"file_format"`
	Status             ImportStatus        `json:"status"`
	TotalRows          int                 `json:"total_rows"`
	ImportedCount      int                 `json:"imported_count"`
	DuplicateCount     int                 `json:"duplicate_count"`
	SkippedCount       int                 `json:"skipped_count"`
	ErrorMessage       *string             `json:"error_message,omitempty"`
	ParsedTransactions []ParsedTransaction `json:"parsed_transactions,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	ImportedAt         *time.Time          `json:"imported_at,omitempty"`
}

// NewTransaction is a ledger row materialized from a confirmed preview row.
type NewTransaction struct {
	AccountID       uuid.UUID
	CategoryID      uuid.UUID
	ImportBatchID   uuid.UUID
	TransactionDate time.Time
	PostedDate      time.Time
	Description     string
	Amount          int64
	TransactionType string
	BankCategory    *string
}

// BatchCounts are the final tallies written when a batch completes. Rows that
// were unselected, invalid, or had no category all land in Skipped.
type BatchCounts struct {
	Imported   int
	Duplicates int
	Skipped    int
}
