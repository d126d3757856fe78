package stock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/ledger/memory"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

var p1 = ledger.ProductRef{Category: ledger.CategoryReagent, ID: 1}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	store *memory.Store
	svc   *Service
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	store := memory.New()
	store.AddWarehouse(masterdata.Warehouse{ID: 1, Code: "W1", Name: "Main"})
	store.AddWarehouse(masterdata.Warehouse{ID: 2, Code: "W2", Name: "Annex"})
	store.AddProduct(masterdata.Product{Category: ledger.CategoryReagent, ID: 1, Code: "R-1", Name: "Ethanol"})
	store.AddProduct(masterdata.Product{Category: ledger.CategoryConsumable, ID: 1, Code: "C-1", Name: "Gloves"})
	directory := masterdata.NewService(store, nil, nil)
	svc := NewService(store, directory, Config{Policy: policy, Concurrency: 2, ChunkSize: 1}, nil)
	return &fixture{t: t, ctx: context.Background(), store: store, svc: svc}
}

func (f *fixture) receive(warehouseID int64, supplier string, lines ...ledger.InvoiceLine) int64 {
	f.t.Helper()
	id, err := f.store.CreateInvoice(f.ctx, ledger.Invoice{WarehouseID: warehouseID, Supplier: supplier, InvoiceDate: lines[0].BatchDate, Status: ledger.InvoiceStatusActive})
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreateInvoiceLines(f.ctx, id, lines))
	return id
}

// transfer records the documents a posted transfer leaves behind: the transfer
// line dated on the transfer and a mirroring stock-out on the source batch.
func (f *fixture) transfer(from, to int64, qty, price, sourceBatch, date string) {
	f.t.Helper()
	trID, err := f.store.CreateTransfer(f.ctx, ledger.Transfer{FromWarehouseID: from, ToWarehouseID: to, TransferDate: date})
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreateTransferLines(f.ctx, trID, []ledger.TransferLine{
		{Category: p1.Category, ProductID: p1.ID, Quantity: dec(qty), UnitPrice: dec(price), BatchDate: date},
	}))
	soID, err := f.store.CreateStockOut(f.ctx, ledger.StockOut{WarehouseID: from, Reason: ledger.ReasonTransfer, OutDate: date, TransferID: trID})
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.CreateStockOutLines(f.ctx, soID, []ledger.StockOutLine{
		{Category: p1.Category, ProductID: p1.ID, Quantity: dec(qty), UnitPrice: dec(price), BatchDate: sourceBatch},
	}))
}

func (f *fixture) stock(warehouseID int64) Stock {
	f.t.Helper()
	st, err := f.svc.ComputeStock(f.ctx, warehouseID, p1)
	require.NoError(f.t, err)
	return st
}

func TestComputeStockExampleScenario(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "100", "5.00", "2024-01-10"))

	w1 := f.stock(1)
	requireDec(t, "100", w1.TotalQuantity)
	requireDec(t, "500", w1.TotalValue)
	require.Equal(t, "Acme", w1.Batches[0].Supplier)

	f.transfer(1, 2, "30", "5.00", "2024-01-10", "2024-01-15")

	w1 = f.stock(1)
	requireDec(t, "70", w1.TotalQuantity)
	requireDec(t, "70", w1.RawQuantity)
	require.Len(t, w1.Batches, 1)
	require.Equal(t, "2024-01-10", w1.Batches[0].BatchDate)

	w2 := f.stock(2)
	requireDec(t, "30", w2.TotalQuantity)
	require.Len(t, w2.Batches, 1)
	require.Equal(t, "2024-01-15", w2.Batches[0].BatchDate)
	requireDec(t, "5", w2.Batches[0].UnitPrice)
	require.Equal(t, int64(2), w2.WarehouseID)
	require.Equal(t, p1, w2.Product)
}

func TestComputeStockIsIdempotent(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "10", "2", "2024-01-10"), invoiceLine(0, "5", "3", "2024-01-10"))
	f.receive(1, "Beta", invoiceLine(0, "7", "2", "2024-01-11"))
	f.transfer(1, 2, "4", "2", "2024-01-10", "2024-01-20")

	first := f.stock(1)
	second := f.stock(1)
	require.Equal(t, first, second)
}

func TestComputeStockExcludesReturnedInvoices(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "100", "5", "2024-01-10"))
	returned := f.receive(1, "Beta", invoiceLine(0, "40", "6", "2024-01-12"))
	before := f.stock(1)
	requireDec(t, "140", before.TotalQuantity)

	soID, err := f.store.CreateStockOut(f.ctx, ledger.StockOut{WarehouseID: 1, Reason: ledger.ReasonInvoiceReturn, OutDate: "2024-01-13", InvoiceID: returned})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateStockOutLines(f.ctx, soID, []ledger.StockOutLine{
		{Category: p1.Category, ProductID: p1.ID, Quantity: dec("40"), UnitPrice: dec("6"), BatchDate: "2024-01-12"},
	}))
	require.NoError(t, f.store.SetInvoiceStatus(f.ctx, returned, ledger.InvoiceStatusReturned))

	after := f.stock(1)
	requireDec(t, "100", after.TotalQuantity)
	requireDec(t, "100", after.RawQuantity)

	lines, err := f.store.ListInvoiceLines(f.ctx, returned)
	require.NoError(t, err)
	require.Len(t, lines, 1, "returned invoice lines stay in the ledger")
}

func TestComputeStockTransferSymmetry(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "50", "4", "2024-03-01"))
	f.receive(2, "Acme", invoiceLine(0, "5", "4", "2024-03-02"))
	a0, b0 := f.stock(1), f.stock(2)

	f.transfer(1, 2, "12.5", "4", "2024-03-01", "2024-03-05")

	a1, b1 := f.stock(1), f.stock(2)
	requireDec(t, "12.5", a0.TotalQuantity.Sub(a1.TotalQuantity))
	requireDec(t, "12.5", b1.TotalQuantity.Sub(b0.TotalQuantity))
}

func TestComputeStockUnknownIdentifiersAreEmpty(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	st, err := f.svc.ComputeStock(f.ctx, 404, ledger.ProductRef{Category: ledger.CategoryConsumable, ID: 404})
	require.NoError(t, err)
	require.True(t, st.TotalQuantity.IsZero())
	require.Empty(t, st.Batches)
}

func TestComputeStockPropagatesQueryFailure(t *testing.T) {
	for _, query := range []string{"active_invoices", "invoice_lines", "transfers_into", "transfers_out_of", "transfer_lines", "stock_outs", "stock_out_lines"} {
		t.Run(query, func(t *testing.T) {
			f := newFixture(t, DecreasePerBucket)
			f.receive(1, "Acme", invoiceLine(0, "10", "1", "2024-01-10"))
			f.transfer(1, 2, "1", "1", "2024-01-10", "2024-01-11")
			f.store.FailOn(query, errors.New("connection reset"))

			_, err := f.svc.ComputeStock(f.ctx, 1, p1)
			require.ErrorIs(t, err, ledger.ErrQueryFailure)
			var qe *ledger.QueryError
			require.ErrorAs(t, err, &qe)
			require.Equal(t, query, qe.Query)
		})
	}
}

func TestComputeStockRejectsUnknownCategory(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	_, err := f.svc.ComputeStock(f.ctx, 1, ledger.ProductRef{Category: "solvent", ID: 1})
	require.ErrorIs(t, err, ledger.ErrInvalidCategory)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "10", "1", "2024-01-10"))

	a, err := f.svc.CheckAvailability(f.ctx, 1, p1, dec("10"))
	require.NoError(t, err)
	require.True(t, a.Available)
	requireDec(t, "10", a.CurrentStock)
	require.True(t, a.Shortfall().IsZero())

	a, err = f.svc.CheckAvailability(f.ctx, 1, p1, dec("10.5"))
	require.NoError(t, err)
	require.False(t, a.Available)
	requireDec(t, "0.5", a.Shortfall())

	_, err = f.svc.CheckAvailability(f.ctx, 1, p1, dec("-1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestFindInconsistencies(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "10", "1", "2024-01-10"))

	issues, err := f.svc.FindInconsistencies(f.ctx)
	require.NoError(t, err)
	require.Empty(t, issues)

	// Overdraw W1 and post a decrease on a date W2 never received.
	soID, err := f.store.CreateStockOut(f.ctx, ledger.StockOut{WarehouseID: 1, Reason: ledger.ReasonConsumption, OutDate: "2024-01-11"})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateStockOutLines(f.ctx, soID, []ledger.StockOutLine{stockOutLine(0, "15", "2024-01-10")}))
	f.receive(2, "Acme", invoiceLine(0, "8", "1", "2024-02-01"))
	soID, err = f.store.CreateStockOut(f.ctx, ledger.StockOut{WarehouseID: 2, Reason: ledger.ReasonConsumption, OutDate: "2024-02-02"})
	require.NoError(t, err)
	require.NoError(t, f.store.CreateStockOutLines(f.ctx, soID, []ledger.StockOutLine{stockOutLine(0, "3", "2023-12-01")}))

	issues, err = f.svc.FindInconsistencies(f.ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	require.Equal(t, int64(1), issues[0].WarehouseID)
	require.Equal(t, IssueNegativeStock, issues[0].Kind)
	requireDec(t, "-5", issues[0].RawQuantity)
	require.True(t, issues[0].TotalQuantity.IsZero())

	require.Equal(t, int64(2), issues[1].WarehouseID)
	require.Equal(t, IssueBatchDrift, issues[1].Kind)
	requireDec(t, "5", issues[1].RawQuantity)
	requireDec(t, "8", issues[1].TotalQuantity)
}

func TestFindInconsistenciesPropagatesFailures(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.store.FailOn("stock_outs", errors.New("timeout"))
	_, err := f.svc.FindInconsistencies(f.ctx)
	require.ErrorIs(t, err, ledger.ErrQueryFailure)
}

func TestWarehouseReport(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "10", "2", "2024-01-10"))

	report, err := f.svc.WarehouseReport(f.ctx, 1, ReportOptions{})
	require.NoError(t, err)
	require.Equal(t, "W1", report.Warehouse.Code)
	require.Len(t, report.Rows, 1)
	require.Equal(t, "R-1", report.Rows[0].Product.Code)
	requireDec(t, "20", report.TotalValue)

	report, err = f.svc.WarehouseReport(f.ctx, 1, ReportOptions{IncludeEmpty: true})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	require.Equal(t, ledger.CategoryConsumable, report.Rows[0].Product.Category)

	report, err = f.svc.WarehouseReport(f.ctx, 1, ReportOptions{Category: ledger.CategoryConsumable, IncludeEmpty: true, ChunkSize: 5})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	_, err = f.svc.WarehouseReport(f.ctx, 99, ReportOptions{})
	require.ErrorIs(t, err, masterdata.ErrWarehouseNotFound)
}

func TestComputeManyKeepsOrder(t *testing.T) {
	f := newFixture(t, DecreasePerBucket)
	f.receive(1, "Acme", invoiceLine(0, "3", "1", "2024-01-10"))
	refs := []ledger.ProductRef{
		{Category: ledger.CategoryConsumable, ID: 1},
		p1,
		{Category: ledger.CategoryReagent, ID: 2},
	}
	stocks, err := f.svc.computeMany(f.ctx, 1, refs, 2)
	require.NoError(t, err)
	require.Len(t, stocks, 3)
	for i, st := range stocks {
		require.Equal(t, refs[i], st.Product)
	}
	requireDec(t, "3", stocks[1].TotalQuantity)
}
