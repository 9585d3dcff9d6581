package categorization

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tpow4/CoinPurse/pkg/httpx"
)

// Handler serves the category mapping endpoints.
type Handler struct {
	repo     *Repository
	resolver *Resolver
	lookup   CategoryIDByName
	logger   *slog.Logger
}

func NewHandler(repo *Repository, resolver *Resolver, lookup CategoryIDByName, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, resolver: resolver, lookup: lookup, logger: logger}
}

// Routes mounts the mapping endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/institutions/{institutionID}/category-mappings", h.list)
	r.Post("/category-mappings", h.create)
	r.Patch("/category-mappings/{mappingID}", h.update)
	r.Delete("/category-mappings/{mappingID}", h.delete)
	r.Post("/institutions/{institutionID}/category-mappings/seed", h.seed)
	r.Get("/institutions/{institutionID}/category-mappings/suggest", h.suggest)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	institutionID, err := httpx.UUIDParam(r, "institutionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid institution id")
		return
	}
	mappings, err := h.repo.ListByInstitution(r.Context(), institutionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, mappings)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in NewMapping
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.repo.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.resolver.ClearCache()
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	mappingID, err := httpx.UUIDParam(r, "mappingID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid mapping id")
		return
	}
	var upd MappingUpdate
	if err := httpx.DecodeJSON(r, &upd); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := h.repo.Update(r.Context(), mappingID, upd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.resolver.ClearCache()
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	mappingID, err := httpx.UUIDParam(r, "mappingID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid mapping id")
		return
	}
	if err := h.repo.Deactivate(r.Context(), mappingID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.resolver.ClearCache()
	httpx.WriteJSON(w, http.StatusNoContent, nil)
}

type seedResponse struct {
	Inserted int64 `json:"inserted"`
}

// seed bulk-loads mappings from an uploaded CSV file.
func (h *Handler) seed(w http.ResponseWriter, r *http.Request) {
	institutionID, err := httpx.UUIDParam(r, "institutionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid institution id")
		return
	}
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	inserted, err := h.repo.SeedFromCSV(r.Context(), institutionID, file, h.lookup)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.resolver.ClearCache()
	httpx.WriteJSON(w, http.StatusOK, seedResponse{Inserted: inserted})
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// suggest returns known bank labels similar to an unmapped one.
func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) {
	institutionID, err := httpx.UUIDParam(r, "institutionID")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid institution id")
		return
	}
	label := r.URL.Query().Get("label")
	if label == "" {
		httpx.WriteError(w, http.StatusBadRequest, "label is required")
		return
	}
	suggestions, err := h.resolver.SuggestLabels(r.Context(), institutionID, label, 5)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrMappingNotFound):
		httpx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return
	default:
		h.logger.ErrorContext(r.Context(), "category mapping request failed",
			"path", r.URL.Path, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
