package stock

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func invoiceLine(invoiceID int64, qty, price, date string) ledger.InvoiceLine {
	return ledger.InvoiceLine{InvoiceID: invoiceID, Category: ledger.CategoryReagent, ProductID: 1,
		Quantity: dec(qty), UnitPrice: dec(price), BatchDate: date}
}

func stockOutLine(stockOutID int64, qty, date string) ledger.StockOutLine {
	return ledger.StockOutLine{StockOutID: stockOutID, Category: ledger.CategoryReagent, ProductID: 1,
		Quantity: dec(qty), UnitPrice: dec("0"), BatchDate: date}
}

func TestAggregateSingleReceipt(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices:     []ledger.Invoice{{ID: 1, Supplier: "Acme", Status: ledger.InvoiceStatusActive}},
		InvoiceLines: []ledger.InvoiceLine{invoiceLine(1, "100", "5.00", "2024-01-10")},
	}, DecreasePerBucket)

	requireDec(t, "100", st.TotalQuantity)
	requireDec(t, "500", st.TotalValue)
	requireDec(t, "100", st.RawQuantity)
	require.Len(t, st.Batches, 1)
	b := st.Batches[0]
	require.Equal(t, "2024-01-10", b.BatchDate)
	require.Equal(t, "Acme", b.Supplier)
	requireDec(t, "5", b.UnitPrice)
	requireDec(t, "500", b.TotalPrice)
}

func TestAggregateEmptyLedger(t *testing.T) {
	st := Aggregate(Ledger{}, DecreasePerBucket)
	require.True(t, st.TotalQuantity.IsZero())
	require.True(t, st.TotalValue.IsZero())
	require.NotNil(t, st.Batches)
	require.Empty(t, st.Batches)
}

func TestAggregateBatchSeparation(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices: []ledger.Invoice{{ID: 1, Supplier: "Acme"}, {ID: 2, Supplier: "Beta"}},
		InvoiceLines: []ledger.InvoiceLine{
			invoiceLine(1, "10", "5", "2024-01-10"),
			invoiceLine(2, "4", "5.00", "2024-01-10"),
			invoiceLine(2, "6", "7", "2024-01-10"),
		},
	}, DecreasePerBucket)

	require.Len(t, st.Batches, 2)
	requireDec(t, "7", st.Batches[0].UnitPrice)
	requireDec(t, "6", st.Batches[0].Quantity)
	requireDec(t, "14", st.Batches[1].Quantity)
	require.Equal(t, "Acme", st.Batches[1].Supplier, "lowest contributing invoice wins")
	require.Equal(t, "Beta", st.Batches[0].Supplier)
	requireDec(t, "20", st.TotalQuantity)
	requireDec(t, "112", st.TotalValue)
}

func TestAggregateSortsNewestFirst(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices: []ledger.Invoice{{ID: 1}},
		InvoiceLines: []ledger.InvoiceLine{
			invoiceLine(1, "1", "1", "2023-12-31"),
			invoiceLine(1, "1", "1", "2024-02-01"),
			invoiceLine(1, "1", "1", "2024-01-15"),
		},
	}, DecreasePerBucket)

	dates := make([]string, 0, len(st.Batches))
	for _, b := range st.Batches {
		dates = append(dates, b.BatchDate)
	}
	require.Equal(t, []string{"2024-02-01", "2024-01-15", "2023-12-31"}, dates)
}

func TestAggregateDecreasesMatchByDateOnly(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices:      []ledger.Invoice{{ID: 1}},
		InvoiceLines:  []ledger.InvoiceLine{invoiceLine(1, "100", "5", "2024-01-10")},
		StockOuts:     []ledger.StockOut{{ID: 9, Reason: ledger.ReasonConsumption}},
		StockOutLines: []ledger.StockOutLine{stockOutLine(9, "30", "2024-01-10")},
	}, DecreasePerBucket)

	requireDec(t, "70", st.TotalQuantity)
	requireDec(t, "350", st.TotalValue)
	requireDec(t, "70", st.RawQuantity)
}

func TestAggregateDropsNegativeBuckets(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices:      []ledger.Invoice{{ID: 1}},
		InvoiceLines:  []ledger.InvoiceLine{invoiceLine(1, "10", "5", "2024-01-10")},
		StockOuts:     []ledger.StockOut{{ID: 9, Reason: ledger.ReasonConsumption}},
		StockOutLines: []ledger.StockOutLine{stockOutLine(9, "25", "2024-01-10")},
	}, DecreasePerBucket)

	require.Empty(t, st.Batches)
	require.True(t, st.TotalQuantity.IsZero())
	requireDec(t, "-15", st.RawQuantity)
}

func TestAggregateDecreasePolicies(t *testing.T) {
	l := Ledger{
		Invoices: []ledger.Invoice{{ID: 1}},
		InvoiceLines: []ledger.InvoiceLine{
			invoiceLine(1, "10", "5", "2024-01-10"),
			invoiceLine(1, "10", "8", "2024-01-10"),
		},
		StockOuts:     []ledger.StockOut{{ID: 9, Reason: ledger.ReasonConsumption}},
		StockOutLines: []ledger.StockOutLine{stockOutLine(9, "4", "2024-01-10")},
	}

	perBucket := Aggregate(l, DecreasePerBucket)
	requireDec(t, "12", perBucket.TotalQuantity)
	requireDec(t, "16", perBucket.RawQuantity)

	apportioned := Aggregate(l, DecreaseApportion)
	requireDec(t, "16", apportioned.TotalQuantity)
	require.Len(t, apportioned.Batches, 2)
	requireDec(t, "10", apportioned.Batches[0].Quantity)
	requireDec(t, "6", apportioned.Batches[1].Quantity)
	requireDec(t, "110", apportioned.TotalValue)
}

func TestAggregateApportionSpillsAcrossBatches(t *testing.T) {
	st := Aggregate(Ledger{
		Invoices: []ledger.Invoice{{ID: 1}},
		InvoiceLines: []ledger.InvoiceLine{
			invoiceLine(1, "3", "1", "2024-01-10"),
			invoiceLine(1, "10", "2", "2024-01-10"),
		},
		StockOuts:     []ledger.StockOut{{ID: 9, Reason: ledger.ReasonOther}},
		StockOutLines: []ledger.StockOutLine{stockOutLine(9, "5", "2024-01-10")},
	}, DecreaseApportion)

	require.Len(t, st.Batches, 1)
	requireDec(t, "8", st.Batches[0].Quantity)
	requireDec(t, "2", st.Batches[0].UnitPrice)
}

func TestAggregateIgnoresMirroredTransferLines(t *testing.T) {
	l := Ledger{
		Invoices:         []ledger.Invoice{{ID: 1, Supplier: "Acme"}},
		InvoiceLines:     []ledger.InvoiceLine{invoiceLine(1, "100", "5", "2024-01-10")},
		TransfersOut:     []ledger.Transfer{{ID: 3, FromWarehouseID: 1, ToWarehouseID: 2, TransferDate: "2024-01-15"}},
		TransferOutLines: []ledger.TransferLine{{TransferID: 3, Category: ledger.CategoryReagent, ProductID: 1, Quantity: dec("30"), UnitPrice: dec("5"), BatchDate: "2024-01-15"}},
		StockOuts:        []ledger.StockOut{{ID: 4, Reason: ledger.ReasonTransfer, TransferID: 3}},
		StockOutLines:    []ledger.StockOutLine{stockOutLine(4, "30", "2024-01-10")},
	}
	st := Aggregate(l, DecreasePerBucket)
	requireDec(t, "70", st.TotalQuantity)
	requireDec(t, "70", st.RawQuantity)

	// Without the mirroring stock-out the transfer line itself is the decrease.
	l.StockOuts, l.StockOutLines = nil, nil
	l.TransferOutLines[0].BatchDate = "2024-01-10"
	st = Aggregate(l, DecreasePerBucket)
	requireDec(t, "70", st.TotalQuantity)
	requireDec(t, "70", st.RawQuantity)
}

func TestAggregateSkipsReturnsOfInactiveInvoices(t *testing.T) {
	l := Ledger{
		Invoices:      []ledger.Invoice{{ID: 2, Supplier: "Beta"}},
		InvoiceLines:  []ledger.InvoiceLine{invoiceLine(2, "50", "2", "2024-01-12")},
		StockOuts:     []ledger.StockOut{{ID: 7, Reason: ledger.ReasonInvoiceReturn, InvoiceID: 1}},
		StockOutLines: []ledger.StockOutLine{stockOutLine(7, "40", "2024-01-12")},
	}
	st := Aggregate(l, DecreasePerBucket)
	requireDec(t, "50", st.TotalQuantity)
	requireDec(t, "50", st.RawQuantity)

	// A return still linked to an active invoice is a real decrease.
	l.StockOuts[0].InvoiceID = 2
	st = Aggregate(l, DecreasePerBucket)
	requireDec(t, "10", st.TotalQuantity)
}

func TestAggregateTransferInHasNoSupplier(t *testing.T) {
	st := Aggregate(Ledger{
		TransferInLines: []ledger.TransferLine{{TransferID: 3, Category: ledger.CategoryReagent, ProductID: 1, Quantity: dec("30"), UnitPrice: dec("5"), BatchDate: "2024-01-15"}},
	}, DecreasePerBucket)
	require.Len(t, st.Batches, 1)
	require.Empty(t, st.Batches[0].Supplier)
	requireDec(t, "150", st.TotalValue)
}

func TestAggregateIsDeterministic(t *testing.T) {
	l := Ledger{
		Invoices: []ledger.Invoice{{ID: 1}, {ID: 2}},
		InvoiceLines: []ledger.InvoiceLine{
			invoiceLine(1, "1", "3", "2024-01-10"),
			invoiceLine(2, "2", "4", "2024-01-10"),
			invoiceLine(1, "3", "5", "2024-01-11"),
			invoiceLine(2, "4", "6", "2024-01-12"),
		},
	}
	first := Aggregate(l, DecreasePerBucket)
	for i := 0; i < 20; i++ {
		require.Equal(t, first, Aggregate(l, DecreasePerBucket))
	}
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	require.Equal(t, DecreasePerBucket, p)

	p, err = ParsePolicy("apportion")
	require.NoError(t, err)
	require.Equal(t, DecreaseApportion, p)

	_, err = ParsePolicy("fifo")
	require.Error(t, err)
}
