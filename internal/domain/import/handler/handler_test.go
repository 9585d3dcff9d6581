package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpow4/CoinPurse/internal/domain/import/repository"
	"github.com/tpow4/CoinPurse/internal/domain/import/service"
)

type stubCategories struct{}

func (stubCategories) ResolveBatch(_ context.Context, _ uuid.UUID, labels []*string) ([]service.CategoryResolution, error) {
	resolutions := make([]service.CategoryResolution, len(labels))
	for i := range resolutions {
		resolutions[i] = service.CategoryResolution{CategoryID: uuid.New()}
	}
	return resolutions, nil
}

type stubDuplicates struct{}

func (stubDuplicates) CheckBatch(_ context.Context, _ uuid.UUID, candidates []service.DuplicateCandidate) ([]bool, error) {
	return make([]bool, len(candidates)), nil
}

func newTestServer(t *testing.T) (*httptest.Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewPostgresImportRepository(mock)
	svc := service.NewImportService(repo, stubCategories{}, stubDuplicates{}, logger)

	r := chi.NewRouter()
	NewHandler(svc, repo, 24*time.Hour, 0, logger).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, mock
}

func multipartUpload(t *testing.T, accountID, templateID uuid.UUID, filename string, contents []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("account_id", accountID.String()))
	require.NoError(t, w.WriteField("template_id", templateID.String()))
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(contents)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadEndToEnd(t *testing.T) {
	srv, mock := newTestServer(t)
	accountID := uuid.New()
	templateID := uuid.New()
	institutionID := uuid.New()

	mappings, _ := json.Marshal(map[string]string{
		"transaction_date": "Transaction Date",
		"posted_date":      "Post Date",
		"description":      "Description",
		"amount":           "Amount",
	})
	amountCfg, _ := json.Marshal(map[string]any{
		"sign_convention": "bank_standard",
		"decimal_places":  2,
	})
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_templates`).
		WithArgs(templateID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "institution_id", "name", "file_format", "column_mappings", "amount_config",
			"date_format", "header_row", "skip_rows", "sheet_name", "is_active", "created_at", "updated_at",
		}).AddRow(templateID, institutionID, "Chase CSV", "csv", mappings, amountCfg,
			"%m/%d/%Y", 1, 0, "", true, now, now))

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(accountID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	batchID := uuid.New()
	mock.ExpectQuery(`INSERT INTO import_batches`).
		WithArgs(accountID, templateID, "jan.csv", repository.FormatCSV,
			repository.StatusPreview, 1, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "template_id", "filename", "file_format", "status", "total_rows",
			"imported_count", "duplicate_count", "skipped_count",
			"error_message", "created_at", "imported_at",
		}).AddRow(batchID, accountID, templateID, "jan.csv", repository.FormatCSV, repository.StatusPreview, 1,
			0, 0, 0, nil, now, nil))

	csv := []byte("Transaction Date,Post Date,Description,Amount\n01/15/2024,01/16/2024,GROCERY STORE,-50.00\n")
	body, contentType := multipartUpload(t, accountID, templateID, "jan.csv", csv)

	resp, err := http.Post(srv.URL+"/imports", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result service.PreviewResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, batchID, result.Batch.ID)
	assert.Equal(t, repository.FormatCSV, result.Batch.FileFormat)
	assert.Equal(t, 1, result.Summary.TotalRows)
	assert.Equal(t, 1, result.Summary.ValidRows)
	require.Len(t, result.Batch.ParsedTransactions, 1)
	assert.Equal(t, int64(-5000), result.Batch.ParsedTransactions[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadMissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("account_id", uuid.NewString()))
	require.NoError(t, w.WriteField("template_id", uuid.NewString()))
	require.NoError(t, w.Close())

	resp, err := http.Post(srv.URL+"/imports", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmInvalidBatchID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/imports/not-a-uuid/confirm", "application/json",
		bytes.NewBufferString(`{"selected_row_numbers":[2]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConfirmNonPreviewBatchConflicts(t *testing.T) {
	srv, mock := newTestServer(t)
	batchID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_batches`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "account_id", "template_id", "filename", "file_format", "status", "total_rows",
			"imported_count", "duplicate_count", "skipped_count",
			"error_message", "created_at", "imported_at", "parsed_transactions",
		}).AddRow(batchID, uuid.New(), uuid.New(), "jan.csv", repository.FormatCSV, repository.StatusCompleted, 1,
			1, 0, 0, nil, now, &now, nil))

	resp, err := http.Post(srv.URL+"/imports/"+batchID.String()+"/confirm", "application/json",
		bytes.NewBufferString(`{"selected_row_numbers":[2]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestGetBatchNotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	batchID := uuid.New()

	mock.ExpectQuery(`(?s)SELECT (.+) FROM import_batches`).
		WithArgs(batchID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	resp, err := http.Get(srv.URL + "/imports/" + batchID.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
