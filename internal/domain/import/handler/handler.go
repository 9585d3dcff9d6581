// Package handler exposes the import workflow over HTTP.
package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/internal/domain/import/repository"
	"github.com/tpow4/CoinPurse/internal/domain/import/service"
	"github.com/tpow4/CoinPurse/pkg/httpx"
)

// defaultMaxUploadBytes caps statement uploads when no limit is configured.
const defaultMaxUploadBytes = 20 << 20

// Handler serves the import endpoints.
type Handler struct {
	svc            *service.ImportService
	repo           *repository.PostgresImportRepository
	previewMaxAge  time.Duration
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewHandler(svc *service.ImportService, repo *repository.PostgresImportRepository, previewMaxAge time.Duration, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if previewMaxAge <= 0 {
		previewMaxAge = 24 * time.Hour
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		svc:            svc,
		repo:           repo,
		previewMaxAge:  previewMaxAge,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Routes mounts the import endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/imports", h.upload)
	r.Get("/imports", h.listAllBatches)
	r.Get("/imports/{batchID}", h.getBatch)
	r.Post("/imports/{batchID}/confirm", h.confirm)
	r.Post("/imports/cleanup", h.cleanup)
	r.Get("/accounts/{accountID}/imports", h.listBatches)

	r.Get("/import-templates", h.listTemplates)
	r.Post("/import-templates", h.createTemplate)
	r.Put("/import-templates/{templateID}", h.updateTemplate)
	r.Delete("/import-templates/{templateID}", h.deleteTemplate)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	accountID, err := uuid.Parse(r.FormValue("account_id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid account_id")
		return
	}
	templateID, err := uuid.Parse(r.FormValue("template_id"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid template_id")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "could not read file")
		return
	}

	result, err := h.svc.Upload(r.Context(), service.UploadInput{
		AccountID:  accountID,
		TemplateID: templateID,
		Filename:   header.Filename,
		Data:       data,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, result)
}

type confirmRequest struct {
	SelectedRowNumbers []int             `json:"selected_row_numbers"`
	CategoryOverrides  map[int]uuid.UUID `json:"category_overrides,omitempty"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	batchID, err := httpx.UUIDParam(r, "batchID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Confirm(r.Context(), service.ConfirmInput{
		BatchID:            batchID,
		SelectedRowNumbers: req.SelectedRowNumbers,
		CategoryOverrides:  req.CategoryOverrides,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := httpx.UUIDParam(r, "batchID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	batch, err := h.repo.GetBatch(r.Context(), batchID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.UUIDParam(r, "accountID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	h.writeBatchListing(w, r, &accountID)
}

func (h *Handler) listAllBatches(w http.ResponseWriter, r *http.Request) {
	h.writeBatchListing(w, r, nil)
}

func (h *Handler) writeBatchListing(w http.ResponseWriter, r *http.Request, accountID *uuid.UUID) {
	var status *repository.ImportStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := repository.ImportStatus(raw)
		switch s {
		case repository.StatusPreview, repository.StatusCompleted, repository.StatusFailed:
			status = &s
		default:
			httpx.WriteError(w, http.StatusBadRequest, "invalid status")
			return
		}
	}
	batches, err := h.repo.ListBatches(r.Context(), accountID, status, 50, 0)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, batches)
}

type cleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.CleanupStalePreviews(r.Context(), h.previewMaxAge)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cleanupResponse{Deleted: deleted})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	var institutionID *uuid.UUID
	if raw := r.URL.Query().Get("institution_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid institution_id")
			return
		}
		institutionID = &id
	}
	templates, err := h.repo.ListTemplates(r.Context(), institutionID,
		r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, templates)
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl repository.Template
	if err := httpx.DecodeJSON(r, &tpl); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.repo.CreateTemplate(r.Context(), &tpl)
	if err != nil {
		if isValidationError(err) {
			httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := httpx.UUIDParam(r, "templateID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var tpl repository.Template
	if err := httpx.DecodeJSON(r, &tpl); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tpl.ID = templateID
	updated, err := h.repo.UpdateTemplate(r.Context(), &tpl)
	if err != nil {
		if isValidationError(err) {
			httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	templateID, err := httpx.UUIDParam(r, "templateID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	if err := h.repo.DeactivateTemplate(r.Context(), templateID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusNoContent, nil)
}

// isValidationError distinguishes template config problems from storage
// failures. Config errors come straight from parser validation.
func isValidationError(err error) bool {
	msg := err.Error()
	for _, fragment := range []string{"column_mappings", "header_row", "skip_rows", "file format"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrTemplateNotFound),
		errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrBatchNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrBatchNotPreview):
		httpx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "import request failed",
			"path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
