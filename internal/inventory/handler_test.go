package inventory

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

func newInventoryRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc).MountRoutes(r)
	return r
}

func post(h http.Handler, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPostings(t *testing.T) {
	f := newFixture(t, nil)
	router := newInventoryRouter(f)

	rec := post(router, "/invoices", `{"warehouse_id":1,"supplier":"Acme","number":"A-1","invoice_date":"2024-01-10",
		"lines":[{"category":"reagent","product_id":1,"quantity":"100","unit_price":"5.00"}]}`, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var invoice Posting
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &invoice))
	require.Equal(t, DocumentInvoice, invoice.Document)

	rec = post(router, "/invoices", `{"warehouse_id":1,"supplier":"Acme","invoice_date":"2024-01-10",
		"lines":[{"category":"reagent","product_id":1,"quantity":"100","unit_price":"5.00"}]}`, IdempotencyHeader, "k-1")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = post(router, "/transfers", `{"from_warehouse_id":1,"to_warehouse_id":2,"transfer_date":"2024-01-15",
		"lines":[{"category":"reagent","product_id":1,"quantity":"30"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post(router, "/stock-outs", `{"warehouse_id":1,"reason":"consumption","out_date":"2024-01-20",
		"lines":[{"category":"reagent","product_id":1,"quantity":"500"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	rec = post(router, "/inventory-counts", `{"warehouse_id":1,"count_date":"2024-02-01",
		"lines":[{"category":"reagent","product_id":1,"real_qty":"65"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var count struct {
		TotalLoss string `json:"total_loss"`
		Lines     []ledger.InventoryCountLine
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &count))
	require.Equal(t, "25", count.TotalLoss)
	require.Len(t, count.Lines, 1)
}

func TestHandlerReturnAndErrors(t *testing.T) {
	f := newFixture(t, nil)
	router := newInventoryRouter(f)
	p := f.receive(1, "2024-01-10", receipt(reagent, "10", "2"))

	require.Equal(t, http.StatusCreated, post(router, "/invoices/1/return", `{"return_date":"2024-01-20"}`).Code)
	require.Equal(t, int64(1), p.ID)
	require.Equal(t, http.StatusUnprocessableEntity, post(router, "/invoices/1/return", `{"return_date":"2024-01-20"}`).Code)
	require.Equal(t, http.StatusNotFound, post(router, "/invoices/77/return", `{"return_date":"2024-01-20"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(router, "/invoices/x/return", `{}`).Code)
	require.Equal(t, http.StatusBadRequest, post(router, "/transfers", `{"from_warehouse_id":1,"to_warehouse_id":1,"transfer_date":"2024-01-15",
		"lines":[{"category":"reagent","product_id":1,"quantity":"1"}]}`).Code)
	require.Equal(t, http.StatusBadRequest, post(router, "/stock-outs", `{"unknown":true}`).Code)
	require.Equal(t, http.StatusNotFound, post(router, "/stock-outs", `{"warehouse_id":5,"reason":"other","out_date":"2024-01-20",
		"lines":[{"category":"reagent","product_id":1,"quantity":"1"}]}`).Code)
}
