package masterdata

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/platform/httpx"
)

// Handler serves master data over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the master data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.listWarehouses)
	r.Get("/products", h.listProducts)
	r.Post("/catalog/invalidate", h.invalidateCatalog)
}

func (h *Handler) listWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.ListWarehouses(r.Context())
	if err != nil {
		h.respondError(w, "list warehouses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"warehouses": warehouses})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	var category ledger.Category
	if raw := r.URL.Query().Get("category"); raw != "" {
		parsed, err := ledger.ParseCategory(raw)
		if err != nil {
			h.respondError(w, "list products", err)
			return
		}
		category = parsed
	}
	products, err := h.service.ListProducts(r.Context(), category)
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) invalidateCatalog(w http.ResponseWriter, r *http.Request) {
	if err := h.service.InvalidateCatalog(r.Context()); err != nil {
		h.respondError(w, "invalidate catalog", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidCategory):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	case errors.Is(err, ErrWarehouseNotFound):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
