package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
	"github.com/odyssey-erp/labstock/internal/platform/httpx"
)

// IdempotencyHeader carries the optional client supplied posting key.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for postings.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers posting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/invoices", h.postInvoice)
	r.Post("/invoices/{invoiceID}/return", h.returnInvoice)
	r.Post("/transfers", h.postTransfer)
	r.Post("/stock-outs", h.postStockOut)
	r.Post("/inventory-counts", h.postInventoryCount)
}

func (h *Handler) postInvoice(w http.ResponseWriter, r *http.Request) {
	var input InvoiceInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	posting, err := h.service.PostInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posting)
}

func (h *Handler) returnInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, httpx.Wrap(httpx.ErrValidation, errors.New("invoice id must be a positive integer")))
		return
	}
	var input ReturnInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}
	input.InvoiceID = id
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	posting, err := h.service.ReturnInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posting)
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	var input TransferInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	posting, err := h.service.PostTransfer(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posting)
}

func (h *Handler) postStockOut(w http.ResponseWriter, r *http.Request) {
	var input StockOutInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	posting, err := h.service.PostStockOut(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, posting)
}

func (h *Handler) postInventoryCount(w http.ResponseWriter, r *http.Request) {
	var input CountInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		h.respondError(w, err)
		return
	}
	input.IdempotencyKey = r.Header.Get(IdempotencyHeader)
	result, err := h.service.PostInventoryCount(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSameWarehouse), errors.Is(err, ledger.ErrInvalidCategory):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrValidation, err))
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvoiceNotActive):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrUnprocessable, err))
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, masterdata.ErrWarehouseNotFound):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrNotFound, err))
	case IsConflict(err):
		httpx.RespondError(w, httpx.Wrap(httpx.ErrConflict, err))
	case errors.Is(err, httpx.ErrValidation):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("inventory request", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
