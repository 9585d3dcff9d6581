package institutions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tpow4/CoinPurse/pkg/httpx"
)

type Handler struct {
	repo   *Repository
	logger *slog.Logger
}

func NewHandler(repo *Repository, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/institutions", h.list)
	r.Get("/institutions/{institutionID}", h.get)
	r.Post("/institutions", h.create)
	r.Delete("/institutions/{institutionID}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.repo.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, institutions)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "institutionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid institution id")
		return
	}
	institution, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, institution)
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	institution, err := h.repo.Create(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, institution)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "institutionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid institution id")
		return
	}
	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInstitutionNotFound) {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "institution request failed",
		"path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal error")
}
