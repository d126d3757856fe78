package sqlq

import (
	"github.com/doug-martin/goqu/v9"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

func (b Builder) invoiceSelect() *goqu.SelectDataset {
	return b.d.From(tableInvoices).Prepared(true).
		Select("id", "warehouse_id", "supplier", "number", text("invoice_date"), "status", "reference")
}

// ActiveInvoices lists the active invoices of a warehouse.
func (b Builder) ActiveInvoices(warehouseID int64) (Statement, error) {
	return render(b.invoiceSelect().
		Where(goqu.Ex{"warehouse_id": warehouseID, "status": string(ledger.InvoiceStatusActive)}).
		Order(goqu.I("id").Asc()))
}

// Invoice loads one invoice header.
func (b Builder) Invoice(id int64) (Statement, error) {
	return render(b.invoiceSelect().Where(goqu.Ex{"id": id}))
}

func (b Builder) invoiceLineSelect() *goqu.SelectDataset {
	return b.d.From(tableInvoiceLines).Prepared(true).
		Select("id", "invoice_id", "category", "product_id", text("quantity"), text("unit_price"), text("batch_date")).
		Order(goqu.I("id").Asc())
}

// InvoiceLines lists lines of the given invoices for one product.
func (b Builder) InvoiceLines(invoiceIDs []int64, product ledger.ProductRef) (Statement, error) {
	return render(b.invoiceLineSelect().Where(productFilter(invoiceIDs, "invoice_id", product)))
}

// InvoiceLinesByInvoice lists every line of one invoice.
func (b Builder) InvoiceLinesByInvoice(invoiceID int64) (Statement, error) {
	return render(b.invoiceLineSelect().Where(goqu.Ex{"invoice_id": invoiceID}))
}

func (b Builder) transferSelect() *goqu.SelectDataset {
	return b.d.From(tableTransfers).Prepared(true).
		Select("id", "from_warehouse_id", "to_warehouse_id", text("transfer_date"), "note", "reference").
		Order(goqu.I("id").Asc())
}

// TransfersInto lists transfers whose destination is warehouseID.
func (b Builder) TransfersInto(warehouseID int64) (Statement, error) {
	return render(b.transferSelect().Where(goqu.Ex{"to_warehouse_id": warehouseID}))
}

// TransfersOutOf lists transfers whose source is warehouseID.
func (b Builder) TransfersOutOf(warehouseID int64) (Statement, error) {
	return render(b.transferSelect().Where(goqu.Ex{"from_warehouse_id": warehouseID}))
}

// TransferLines lists lines of the given transfers for one product.
func (b Builder) TransferLines(transferIDs []int64, product ledger.ProductRef) (Statement, error) {
	return render(b.d.From(tableTransferLines).Prepared(true).
		Select("id", "transfer_id", "category", "product_id", text("quantity"), text("unit_price"), text("batch_date")).
		Where(productFilter(transferIDs, "transfer_id", product)).
		Order(goqu.I("id").Asc()))
}

// StockOuts lists every stock-out of a warehouse regardless of reason.
func (b Builder) StockOuts(warehouseID int64) (Statement, error) {
	return render(b.d.From(tableStockOuts).Prepared(true).
		Select("id", "warehouse_id", "reason", text("out_date"),
			optionalID("transfer_id"), optionalID("invoice_id"), optionalID("count_id"), "note", "reference").
		Where(goqu.Ex{"warehouse_id": warehouseID}).
		Order(goqu.I("id").Asc()))
}

// StockOutLines lists lines of the given stock-outs for one product.
func (b Builder) StockOutLines(stockOutIDs []int64, product ledger.ProductRef) (Statement, error) {
	return render(b.d.From(tableStockOutLines).Prepared(true).
		Select("id", "stock_out_id", "category", "product_id", text("quantity"), text("unit_price"), text("batch_date")).
		Where(productFilter(stockOutIDs, "stock_out_id", product)).
		Order(goqu.I("id").Asc()))
}

// Warehouses lists every warehouse.
func (b Builder) Warehouses() (Statement, error) {
	return render(b.d.From(tableWarehouses).Prepared(true).
		Select("id", "code", "name").
		Order(goqu.I("id").Asc()))
}

// Warehouse loads one warehouse.
func (b Builder) Warehouse(id int64) (Statement, error) {
	return render(b.d.From(tableWarehouses).Prepared(true).
		Select("id", "code", "name").
		Where(goqu.Ex{"id": id}))
}

// Products lists the catalog, optionally restricted to one category.
func (b Builder) Products(category ledger.Category) (Statement, error) {
	ds := b.d.From(tableProducts).Prepared(true).
		Select("category", "id", "code", "name", "unit").
		Order(goqu.I("category").Asc(), goqu.I("code").Asc(), goqu.I("id").Asc())
	if category != "" {
		ds = ds.Where(goqu.Ex{"category": string(category)})
	}
	return render(ds)
}
