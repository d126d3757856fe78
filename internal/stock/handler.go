package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
	"github.com/odyssey-erp/labstock/internal/platform/httpx"
)

// Handler serves stock queries over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/warehouses/{warehouseID}", func(r chi.Router) {
		r.Get("/stock", h.warehouseReport)
		r.Get("/stock/{category}/{productID}", h.computeStock)
		r.Get("/availability/{category}/{productID}", h.checkAvailability)
	})
	r.With(httprate.LimitByIP(6, time.Minute)).Get("/stock/inconsistencies", h.inconsistencies)
}

func (h *Handler) computeStock(w http.ResponseWriter, r *http.Request) {
	warehouseID, product, err := parsePair(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	st, err := h.service.ComputeStock(r.Context(), warehouseID, product)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	warehouseID, product, err := parsePair(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	qty, err := decimal.NewFromString(r.URL.Query().Get("qty"))
	if err != nil {
		h.respondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("qty must be a decimal number")))
		return
	}
	availability, err := h.service.CheckAvailability(r.Context(), warehouseID, product, qty)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, availability)
}

func (h *Handler) warehouseReport(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := parseID(chi.URLParam(r, "warehouseID"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	q := r.URL.Query()
	opts := ReportOptions{IncludeEmpty: q.Get("include_empty") == "true"}
	if raw := q.Get("category"); raw != "" {
		if opts.Category, err = ledger.ParseCategory(raw); err != nil {
			h.respondError(w, err)
			return
		}
	}
	if raw := q.Get("chunk_size"); raw != "" {
		if opts.ChunkSize, err = strconv.Atoi(raw); err != nil || opts.ChunkSize <= 0 {
			h.respondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("chunk_size must be a positive integer")))
			return
		}
	}
	report, err := h.service.WarehouseReport(r.Context(), warehouseID, opts)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) inconsistencies(w http.ResponseWriter, r *http.Request) {
	issues, err := h.service.FindInconsistencies(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func parsePair(r *http.Request) (int64, ledger.ProductRef, error) {
	warehouseID, err := parseID(chi.URLParam(r, "warehouseID"))
	if err != nil {
		return 0, ledger.ProductRef{}, err
	}
	category, err := ledger.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		return 0, ledger.ProductRef{}, err
	}
	productID, err := parseID(chi.URLParam(r, "productID"))
	if err != nil {
		return 0, ledger.ProductRef{}, err
	}
	return warehouseID, ledger.ProductRef{Category: category, ID: productID}, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, httpx.Wrap(httpx.ErrValidation, errors.New("identifier must be a positive integer"))
	}
	return id, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidCategory), errors.Is(err, ErrInvalidQuantity):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	case errors.Is(err, masterdata.ErrWarehouseNotFound):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("stock request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
