package sqlq

import (
	"github.com/doug-martin/goqu/v9"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

func (b Builder) insert(table string, rows ...any) (Statement, error) {
	ds := b.d.Insert(table).Prepared(true).Rows(rows...)
	if b.returning {
		ds = ds.Returning("id")
	}
	return render(ds)
}

func (b Builder) deleteWhere(table string, where goqu.Ex) (Statement, error) {
	return render(b.d.Delete(table).Prepared(true).Where(where))
}

// InsertInvoice renders the invoice header insert.
func (b Builder) InsertInvoice(inv ledger.Invoice) (Statement, error) {
	return b.insert(tableInvoices, goqu.Record{
		"warehouse_id": inv.WarehouseID,
		"supplier":     inv.Supplier,
		"number":       inv.Number,
		"invoice_date": inv.InvoiceDate,
		"status":       string(inv.Status),
		"reference":    inv.Reference,
	})
}

// InsertInvoiceLines renders a multi-row insert of invoice lines.
func (b Builder) InsertInvoiceLines(invoiceID int64, lines []ledger.InvoiceLine) (Statement, error) {
	rows := make([]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, goqu.Record{
			"invoice_id": invoiceID,
			"category":   string(l.Category),
			"product_id": l.ProductID,
			"quantity":   l.Quantity.String(),
			"unit_price": l.UnitPrice.String(),
			"batch_date": l.BatchDate,
		})
	}
	return render(b.d.Insert(tableInvoiceLines).Prepared(true).Rows(rows...))
}

// UpdateInvoiceStatus renders the invoice status transition.
func (b Builder) UpdateInvoiceStatus(id int64, status ledger.InvoiceStatus) (Statement, error) {
	return render(b.d.Update(tableInvoices).Prepared(true).
		Set(goqu.Record{"status": string(status)}).
		Where(goqu.Ex{"id": id}))
}

// DeleteInvoice renders the invoice header delete.
func (b Builder) DeleteInvoice(id int64) (Statement, error) {
	return b.deleteWhere(tableInvoices, goqu.Ex{"id": id})
}

// DeleteInvoiceLines renders the delete of every line of an invoice.
func (b Builder) DeleteInvoiceLines(invoiceID int64) (Statement, error) {
	return b.deleteWhere(tableInvoiceLines, goqu.Ex{"invoice_id": invoiceID})
}

// InsertTransfer renders the transfer header insert.
func (b Builder) InsertTransfer(tr ledger.Transfer) (Statement, error) {
	return b.insert(tableTransfers, goqu.Record{
		"from_warehouse_id": tr.FromWarehouseID,
		"to_warehouse_id":   tr.ToWarehouseID,
		"transfer_date":     tr.TransferDate,
		"note":              tr.Note,
		"reference":         tr.Reference,
	})
}

// InsertTransferLines renders a multi-row insert of transfer lines.
func (b Builder) InsertTransferLines(transferID int64, lines []ledger.TransferLine) (Statement, error) {
	rows := make([]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, goqu.Record{
			"transfer_id": transferID,
			"category":    string(l.Category),
			"product_id":  l.ProductID,
			"quantity":    l.Quantity.String(),
			"unit_price":  l.UnitPrice.String(),
			"batch_date":  l.BatchDate,
		})
	}
	return render(b.d.Insert(tableTransferLines).Prepared(true).Rows(rows...))
}

// DeleteTransfer renders the transfer header delete.
func (b Builder) DeleteTransfer(id int64) (Statement, error) {
	return b.deleteWhere(tableTransfers, goqu.Ex{"id": id})
}

// DeleteTransferLines renders the delete of every line of a transfer.
func (b Builder) DeleteTransferLines(transferID int64) (Statement, error) {
	return b.deleteWhere(tableTransferLines, goqu.Ex{"transfer_id": transferID})
}

// InsertStockOut renders the stock-out header insert.
func (b Builder) InsertStockOut(so ledger.StockOut) (Statement, error) {
	return b.insert(tableStockOuts, goqu.Record{
		"warehouse_id": so.WarehouseID,
		"reason":       string(so.Reason),
		"out_date":     so.OutDate,
		"transfer_id":  nullID(so.TransferID),
		"invoice_id":   nullID(so.InvoiceID),
		"count_id":     nullID(so.CountID),
		"note":         so.Note,
		"reference":    so.Reference,
	})
}

// InsertStockOutLines renders a multi-row insert of stock-out lines.
func (b Builder) InsertStockOutLines(stockOutID int64, lines []ledger.StockOutLine) (Statement, error) {
	rows := make([]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, goqu.Record{
			"stock_out_id": stockOutID,
			"category":     string(l.Category),
			"product_id":   l.ProductID,
			"quantity":     l.Quantity.String(),
			"unit_price":   l.UnitPrice.String(),
			"batch_date":   l.BatchDate,
		})
	}
	return render(b.d.Insert(tableStockOutLines).Prepared(true).Rows(rows...))
}

// DeleteStockOut renders the stock-out header delete.
func (b Builder) DeleteStockOut(id int64) (Statement, error) {
	return b.deleteWhere(tableStockOuts, goqu.Ex{"id": id})
}

// DeleteStockOutLines renders the delete of every line of a stock-out.
func (b Builder) DeleteStockOutLines(stockOutID int64) (Statement, error) {
	return b.deleteWhere(tableStockOutLines, goqu.Ex{"stock_out_id": stockOutID})
}

// InsertInventoryCount renders the count header insert.
func (b Builder) InsertInventoryCount(c ledger.InventoryCount) (Statement, error) {
	return b.insert(tableCounts, goqu.Record{
		"warehouse_id": c.WarehouseID,
		"count_date":   c.CountDate,
		"total_loss":   c.TotalLoss.String(),
		"note":         c.Note,
		"reference":    c.Reference,
	})
}

// InsertInventoryCountLines renders a multi-row insert of count lines.
func (b Builder) InsertInventoryCountLines(countID int64, lines []ledger.InventoryCountLine) (Statement, error) {
	rows := make([]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, goqu.Record{
			"count_id":    countID,
			"category":    string(l.Category),
			"product_id":  l.ProductID,
			"system_qty":  l.SystemQty.String(),
			"real_qty":    l.RealQty.String(),
			"loss_qty":    l.LossQty.String(),
			"loss_amount": l.LossAmount.String(),
		})
	}
	return render(b.d.Insert(tableCountLines).Prepared(true).Rows(rows...))
}

// DeleteInventoryCount renders the count header delete.
func (b Builder) DeleteInventoryCount(id int64) (Statement, error) {
	return b.deleteWhere(tableCounts, goqu.Ex{"id": id})
}

// DeleteInventoryCountLines renders the delete of every line of a count.
func (b Builder) DeleteInventoryCountLines(countID int64) (Statement, error) {
	return b.deleteWhere(tableCountLines, goqu.Ex{"count_id": countID})
}
