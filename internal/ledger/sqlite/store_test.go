package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), MemoryPath)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.DB().Exec(`INSERT INTO warehouses (id, code, name) VALUES (1, 'MAIN', 'Main lab'), (2, 'SAT', 'Satellite')`)
	require.NoError(t, err)
	_, err = store.DB().Exec(`INSERT INTO products (category, id, code, name, unit) VALUES
		('reagent', 7, 'R-007', 'Ethanol', 'l'),
		('consumable', 7, 'C-007', 'Pipette tips', 'box'),
		('reagent', 3, 'R-003', 'Acetone', 'l')`)
	require.NoError(t, err)
	return store
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var ethanol = ledger.ProductRef{Category: ledger.CategoryReagent, ID: 7}

func TestInvoiceRoundTrip(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	id, err := store.CreateInvoice(ctx, ledger.Invoice{
		WarehouseID: 1, Supplier: "Acme", Number: "INV-1",
		InvoiceDate: "2024-01-10", Status: ledger.InvoiceStatusActive,
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, store.CreateInvoiceLines(ctx, id, []ledger.InvoiceLine{
		{Category: ledger.CategoryReagent, ProductID: 7, Quantity: dec("10.5"), UnitPrice: dec("2.25"), BatchDate: "2024-01-10"},
		{Category: ledger.CategoryConsumable, ProductID: 7, Quantity: dec("3"), UnitPrice: dec("1"), BatchDate: "2024-01-10"},
	}))

	invoices, err := store.ActiveInvoices(ctx, 1)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	require.Equal(t, "Acme", invoices[0].Supplier)
	require.Equal(t, "2024-01-10", invoices[0].InvoiceDate)

	lines, err := store.InvoiceLines(ctx, []int64{id}, ethanol)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.True(t, lines[0].Quantity.Equal(dec("10.5")))
	require.True(t, lines[0].UnitPrice.Equal(dec("2.25")))

	all, err := store.ListInvoiceLines(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, store.SetInvoiceStatus(ctx, id, ledger.InvoiceStatusReturned))
	invoices, err = store.ActiveInvoices(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, invoices)

	inv, err := store.GetInvoice(ctx, id)
	require.NoError(t, err)
	require.Equal(t, ledger.InvoiceStatusReturned, inv.Status)
}

func TestUnknownIdentifiersYieldEmptyResults(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	invoices, err := store.ActiveInvoices(ctx, 999)
	require.NoError(t, err)
	require.Empty(t, invoices)

	lines, err := store.TransferLines(ctx, nil, ethanol)
	require.NoError(t, err)
	require.Empty(t, lines)

	_, err = store.GetInvoice(ctx, 404)
	require.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = store.GetWarehouse(ctx, 404)
	require.ErrorIs(t, err, masterdata.ErrWarehouseNotFound)
}

func TestStockOutReferencesAndTransfers(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	trID, err := store.CreateTransfer(ctx, ledger.Transfer{FromWarehouseID: 1, ToWarehouseID: 2, TransferDate: "2024-02-01"})
	require.NoError(t, err)
	require.NoError(t, store.CreateTransferLines(ctx, trID, []ledger.TransferLine{
		{Category: ledger.CategoryReagent, ProductID: 7, Quantity: dec("4"), UnitPrice: dec("2"), BatchDate: "2024-02-01"},
	}))

	soID, err := store.CreateStockOut(ctx, ledger.StockOut{
		WarehouseID: 1, Reason: ledger.ReasonTransfer, OutDate: "2024-02-01", TransferID: trID,
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateStockOutLines(ctx, soID, []ledger.StockOutLine{
		{Category: ledger.CategoryReagent, ProductID: 7, Quantity: dec("4"), UnitPrice: dec("2"), BatchDate: "2024-01-10"},
	}))

	into, err := store.TransfersInto(ctx, 2)
	require.NoError(t, err)
	require.Len(t, into, 1)
	outOf, err := store.TransfersOutOf(ctx, 1)
	require.NoError(t, err)
	require.Len(t, outOf, 1)
	require.Equal(t, into[0].ID, outOf[0].ID)

	outs, err := store.StockOuts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	require.Equal(t, trID, outs[0].TransferID)
	require.Zero(t, outs[0].InvoiceID)
	require.Zero(t, outs[0].CountID)

	soLines, err := store.StockOutLines(ctx, []int64{soID}, ethanol)
	require.NoError(t, err)
	require.Len(t, soLines, 1)
	require.Equal(t, "2024-01-10", soLines[0].BatchDate)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(ctx context.Context, w ledger.Writer) error {
		id, err := w.CreateInventoryCount(ctx, ledger.InventoryCount{WarehouseID: 1, CountDate: "2024-03-01", TotalLoss: dec("0")})
		require.NoError(t, err)
		require.NoError(t, w.CreateInventoryCountLines(ctx, id, []ledger.InventoryCountLine{
			{Category: ledger.CategoryReagent, ProductID: 7, SystemQty: dec("1"), RealQty: dec("1"), LossQty: dec("0"), LossAmount: dec("0")},
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM inventory_counts`).Scan(&n))
	require.Zero(t, n)
}

func TestMasterData(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	warehouses, err := store.ListWarehouses(ctx)
	require.NoError(t, err)
	require.Len(t, warehouses, 2)
	require.Equal(t, "MAIN", warehouses[0].Code)

	reagents, err := store.ListProducts(ctx, ledger.CategoryReagent)
	require.NoError(t, err)
	require.Len(t, reagents, 2)
	require.Equal(t, "R-003", reagents[0].Code)

	all, err := store.ListProducts(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestClosedDatabaseReportsQueryFailure(t *testing.T) {
	store := openMemory(t)
	require.NoError(t, store.Close())

	_, err := store.ActiveInvoices(context.Background(), 1)
	require.ErrorIs(t, err, ledger.ErrQueryFailure)
}

func TestOpenFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stock.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.Equal(t, path, store.Path())
	_, err = store.DB().Exec(`INSERT INTO warehouses (code, name) VALUES ('A', 'A')`)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()
	warehouses, err := reopened.ListWarehouses(context.Background())
	require.NoError(t, err)
	require.Len(t, warehouses, 1)
}
