package transactions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tpow4/CoinPurse/pkg/httpx"
)

// Handler serves the transaction endpoints. Display amounts use a single
// configured currency; per-account currencies render on the client.
type Handler struct {
	repo     *Repository
	currency string
	logger   *slog.Logger
}

func NewHandler(repo *Repository, currency string, logger *slog.Logger) *Handler {
	if currency == "" {
		currency = "USD"
	}
	return &Handler{repo: repo, currency: currency, logger: logger}
}

// Routes mounts the transaction endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/accounts/{accountID}/transactions", h.list)
	r.Get("/transactions/{transactionID}", h.get)
	r.Patch("/transactions/{transactionID}/category", h.updateCategory)
	r.Delete("/transactions/{transactionID}", h.delete)
}

// transactionView decorates a transaction with its display amount.
type transactionView struct {
	Transaction
	DisplayAmount string `json:"display_amount"`
}

func view(t Transaction, currency string) transactionView {
	return transactionView{Transaction: t, DisplayAmount: t.DisplayAmount(currency)}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.UUIDParam(r, "accountID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid account id")
		return
	}
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := h.repo.ListByAccount(r.Context(), accountID, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]transactionView, len(txs))
	for i, t := range txs {
		views[i] = view(t, h.currency)
	}
	httpx.WriteJSON(w, http.StatusOK, views)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var filter ListFilter
	q := r.URL.Query()

	if raw := q.Get("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid category_id")
		}
		filter.CategoryID = &id
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(name); raw != "" {
			t, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				return filter, errors.New("invalid " + name + " date, expected YYYY-MM-DD")
			}
			*dst = &t
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > 500 {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.New("invalid offset")
		}
		filter.Offset = offset
	}
	return filter, nil
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "transactionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view(*t, h.currency))
}

type updateCategoryRequest struct {
	CategoryID uuid.UUID `json:"category_id"`
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "transactionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req updateCategoryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.CategoryID == uuid.Nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.repo.UpdateCategory(r.Context(), id, req.CategoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, view(*t, h.currency))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.UUIDParam(r, "transactionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := h.repo.SoftDelete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrTransactionNotFound) {
		httpx.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "transaction request failed",
		"path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "internal error")
}
