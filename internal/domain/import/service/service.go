// Package service orchestrates the two-phase import workflow: parse an
// uploaded statement into a PREVIEW batch, then confirm a row selection into
// ledger transactions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/internal/domain/import/parser"
	"github.com/tpow4/CoinPurse/internal/domain/import/repository"
)

// CategoryResolution is one resolved bank label: the default category plus
// the full priority-ordered candidate list.
type CategoryResolution struct {
	CategoryID   uuid.UUID
	CandidateIDs []uuid.UUID
}

// CategoryLookup resolves bank category labels for one institution.
type CategoryLookup interface {
	ResolveBatch(ctx context.Context, institutionID uuid.UUID, labels []*string) ([]CategoryResolution, error)
}

// DuplicateCandidate is one parsed row's identity for duplicate checking.
type DuplicateCandidate struct {
	TransactionDate *time.Time
	Description     string
	TransactionType parser.TransactionType
	Amount          int64
}

// DuplicateLookup flags candidates already present in an account's ledger.
type DuplicateLookup interface {
	CheckBatch(ctx context.Context, accountID uuid.UUID, candidates []DuplicateCandidate) ([]bool, error)
}

// BatchRepository is the persistence surface the service needs beyond the
// core ImportRepository operations.
type BatchRepository interface {
	repository.ImportRepository
	CleanupStalePreviews(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ImportService runs the upload and confirm phases.
type ImportService struct {
	repo       BatchRepository
	categories CategoryLookup
	duplicates DuplicateLookup
	logger     *slog.Logger
}

func NewImportService(repo BatchRepository, categories CategoryLookup, duplicates DuplicateLookup, logger *slog.Logger) *ImportService {
	return &ImportService{
		repo:       repo,
		categories: categories,
		duplicates: duplicates,
		logger:     logger,
	}
}

// UploadInput is a statement file submitted against a template.
type UploadInput struct {
	AccountID  uuid.UUID
	TemplateID uuid.UUID
	Filename   string
	Data       []byte
}

// PreviewSummary tallies a fresh preview for display.
type PreviewSummary struct {
	TotalRows  int `json:"total_rows"`
	ValidRows  int `json:"valid_rows"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// PreviewResult is the outcome of the upload phase.
type PreviewResult struct {
	Batch   *repository.ImportBatch `json:"batch"`
	Summary PreviewSummary          `json:"summary"`
}

// Upload parses the file, annotates every row with category and duplicate
// information, and persists a PREVIEW batch. Nothing touches the ledger here.
func (s *ImportService) Upload(ctx context.Context, in UploadInput) (*PreviewResult, error) {
	template, err := s.repo.GetTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}
	exists, err := s.repo.AccountExists(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrAccountNotFound
	}

	rowParser, err := s.newParser(template)
	if err != nil {
		return nil, fmt.Errorf("build parser for template %s: %w", template.ID, err)
	}
	rows, err := rowParser.Parse(in.Data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", in.Filename, err)
	}
	rowsParsed.Add(float64(len(rows)))

	labels := make([]*string, len(rows))
	candidates := make([]DuplicateCandidate, len(rows))
	for i, row := range rows {
		labels[i] = row.BankCategory
		candidates[i] = DuplicateCandidate{
			TransactionDate: row.TransactionDate,
			Description:     row.Description,
			TransactionType: row.TransactionType,
			Amount:          row.Amount,
		}
	}

	resolutions, err := s.categories.ResolveBatch(ctx, template.InstitutionID, labels)
	if err != nil {
		return nil, fmt.Errorf("resolve categories: %w", err)
	}
	duplicates, err := s.duplicates.CheckBatch(ctx, in.AccountID, candidates)
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}

	parsed := make([]repository.ParsedTransaction, len(rows))
	summary := PreviewSummary{TotalRows: len(rows)}
	for i, row := range rows {
		categoryID := resolutions[i].CategoryID
		parsed[i] = repository.ParsedTransaction{
			RowNumber:            row.RowNumber,
			TransactionDate:      isoDate(row.TransactionDate),
			PostedDate:           isoDate(row.PostedDate),
			Description:          row.Description,
			Amount:               row.Amount,
			TransactionType:      row.TransactionType,
			BankCategory:         row.BankCategory,
			CategoryID:           &categoryID,
			CandidateCategoryIDs: resolutions[i].CandidateIDs,
			IsDuplicate:          duplicates[i],
			ValidationErrors:     row.ValidationErrors,
		}
		if row.IsValid() {
			summary.ValidRows++
		} else {
			summary.Errors++
		}
		if duplicates[i] {
			summary.Duplicates++
		}
	}

	batch, err := s.repo.CreateBatch(ctx, &repository.ImportBatch{
		AccountID:          in.AccountID,
		TemplateID:         in.TemplateID,
		Filename:           in.Filename,
		FileFormat:         template.FileFormat,
		TotalRows:          len(rows),
		ParsedTransactions: parsed,
	})
	if err != nil {
		return nil, fmt.Errorf("create import batch: %w", err)
	}
	batchesCreated.Inc()

	s.logger.InfoContext(ctx, "import preview created",
		"batch_id", batch.ID,
		"account_id", in.AccountID,
		"filename", in.Filename,
		"total_rows", summary.TotalRows,
		"valid_rows", summary.ValidRows,
		"duplicates", summary.Duplicates,
		"errors", summary.Errors)

	return &PreviewResult{Batch: batch, Summary: summary}, nil
}

func (s *ImportService) newParser(template *repository.Template) (*parser.RowParser, error) {
	var decoder parser.Decoder
	switch template.FileFormat {
	case repository.FormatExcel:
		decoder = &parser.ExcelDecoder{SheetName: template.SheetName}
	default:
		decoder = &parser.CSVDecoder{}
	}
	return parser.NewRowParser(decoder, template.ParserConfig())
}

// ConfirmInput selects preview rows to materialize. SelectedRowNumbers refer
// to ParsedTransaction.RowNumber. CategoryOverrides remap a row's category,
// keyed by the same row number.
type ConfirmInput struct {
	BatchID            uuid.UUID
	SelectedRowNumbers []int
	CategoryOverrides  map[int]uuid.UUID
}

// ConfirmResult reports the final tallies of a confirmed batch.
type ConfirmResult struct {
	BatchID        uuid.UUID               `json:"batch_id"`
	Status         repository.ImportStatus `json:"status"`
	ImportedCount  int                     `json:"imported_count"`
	DuplicateCount int                     `json:"duplicate_count"`
	SkippedCount   int                     `json:"skipped_count"`
}

// Confirm materializes the selected rows of a PREVIEW batch into the ledger
// and finalizes the batch. Every snapshot row lands in exactly one tally:
// selected duplicates count as duplicates even when they also carry
// validation errors, unselected and invalid rows are skipped, and the rest
// import.
func (s *ImportService) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	batch, err := s.repo.GetBatch(ctx, in.BatchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != repository.StatusPreview {
		return nil, ErrBatchNotPreview
	}
	if len(batch.ParsedTransactions) == 0 {
		return nil, ErrBatchNotFound
	}

	selected := make(map[int]bool, len(in.SelectedRowNumbers))
	for _, n := range in.SelectedRowNumbers {
		selected[n] = true
	}

	var counts repository.BatchCounts
	var txs []repository.NewTransaction
	for _, row := range batch.ParsedTransactions {
		switch {
		case !selected[row.RowNumber]:
			counts.Skipped++
		case row.IsDuplicate:
			counts.Duplicates++
		case !row.IsValid():
			counts.Skipped++
		default:
			categoryID := row.CategoryID
			if override, ok := in.CategoryOverrides[row.RowNumber]; ok {
				categoryID = &override
			}
			if categoryID == nil {
				s.logger.WarnContext(ctx, "selected row has no category, skipping",
					"batch_id", batch.ID, "row_number", row.RowNumber)
				counts.Skipped++
				continue
			}
			tx, err := materializeRow(batch, row, *categoryID)
			if err != nil {
				return nil, s.failBatch(ctx, batch.ID, fmt.Errorf("row %d: %w", row.RowNumber, err))
			}
			txs = append(txs, tx)
			counts.Imported++
		}
	}

	if err := s.repo.CompleteBatch(ctx, batch.ID, txs, counts); err != nil {
		if errors.Is(err, ErrBatchNotPreview) {
			return nil, err
		}
		return nil, s.failBatch(ctx, batch.ID, err)
	}
	batchesConfirmed.WithLabelValues(string(repository.StatusCompleted)).Inc()
	transactionsImported.Add(float64(counts.Imported))

	s.logger.InfoContext(ctx, "import batch confirmed",
		"batch_id", batch.ID,
		"imported", counts.Imported,
		"duplicates", counts.Duplicates,
		"skipped", counts.Skipped)

	return &ConfirmResult{
		BatchID:        batch.ID,
		Status:         repository.StatusCompleted,
		ImportedCount:  counts.Imported,
		DuplicateCount: counts.Duplicates,
		SkippedCount:   counts.Skipped,
	}, nil
}

// failBatch moves the batch to FAILED and returns the original error. The
// snapshot is dropped so a failed confirmation cannot be retried against
// stale preview data.
func (s *ImportService) failBatch(ctx context.Context, batchID uuid.UUID, cause error) error {
	batchesConfirmed.WithLabelValues(string(repository.StatusFailed)).Inc()
	s.logger.ErrorContext(ctx, "import confirmation failed",
		"batch_id", batchID, "error", cause)
	if err := s.repo.MarkBatchFailed(ctx, batchID, cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "could not mark batch failed",
			"batch_id", batchID, "error", err)
	}
	return cause
}

// CleanupStalePreviews removes PREVIEW batches older than maxAge.
func (s *ImportService) CleanupStalePreviews(ctx context.Context, maxAge time.Duration) (int64, error) {
	deleted, err := s.repo.CleanupStalePreviews(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		stalePreviewsDeleted.Add(float64(deleted))
		s.logger.InfoContext(ctx, "stale import previews deleted",
			"count", deleted, "max_age", maxAge)
	}
	return deleted, nil
}

func materializeRow(batch *repository.ImportBatch, row repository.ParsedTransaction, categoryID uuid.UUID) (repository.NewTransaction, error) {
	txDate, err := parseISODate(row.TransactionDate)
	if err != nil {
		return repository.NewTransaction{}, fmt.Errorf("transaction date: %w", err)
	}
	postedDate, err := parseISODate(row.PostedDate)
	if err != nil {
		return repository.NewTransaction{}, fmt.Errorf("posted date: %w", err)
	}
	return repository.NewTransaction{
		AccountID:       batch.AccountID,
		CategoryID:      categoryID,
		ImportBatchID:   batch.ID,
		TransactionDate: txDate,
		PostedDate:      postedDate,
		Description:     row.Description,
		Amount:          row.Amount,
		TransactionType: ledgerType(row.TransactionType),
		BankCategory:    row.BankCategory,
	}, nil
}

// ledgerType maps the parser's flow direction onto the ledger's transaction
// types. Refunds, transfers and the rest are recategorized after import.
func ledgerType(t parser.TransactionType) string {
	if t == parser.TypeCredit {
		return "payment"
	}
	return "purchase"
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func parseISODate(s *string) (time.Time, error) {
	if s == nil {
		return time.Time{}, fmt.Errorf("missing date")
	}
	return time.Parse(time.DateOnly, *s)
}
