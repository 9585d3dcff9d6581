package accounts

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
	r.Get("/accounts", h.list)
	r.Get("/accounts/{accountID}", h.get)
	r.Post("/accounts", h.create)
	r.Delete("/accounts/{accountID}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.repo.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accounts)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "accountID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	account, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, account)
}

type createRequest struct {
	InstitutionID uuid.UUID   `json:"institution_id"`
	Name          string      `json:"name"`
	AccountType   AccountType `json:"account_type"`
	Currency      string      `json:"currency"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.InstitutionID == uuid.Nil {
		httpx.WriteError(w, http.StatusBadRequest, "name and institution_id are required")
		return
	}
	account, err := h.repo.Create(r.Context(), req.InstitutionID, req.Name, req.AccountType, req.Currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "accountID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := h.repo.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrAccountNotFound) {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "account request failed",
		"path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal error")
}
