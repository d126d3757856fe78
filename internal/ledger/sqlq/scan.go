package sqlq

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

// Row is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type Row interface {
	Scan(dest ...any) error
}

type decimalText struct {
	dst *decimal.Decimal
	raw string
}

func parseDecimals(fields ...*decimalText) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("parse decimal %q: %w", f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// ScanInvoice reads a row produced by Invoice or ActiveInvoices.
func ScanInvoice(r Row) (ledger.Invoice, error) {
	var inv ledger.Invoice
	var status string
	err := r.Scan(&inv.ID, &inv.WarehouseID, &inv.Supplier, &inv.Number, &inv.InvoiceDate, &status, &inv.Reference)
	inv.Status = ledger.InvoiceStatus(status)
	return inv, err
}

// ScanInvoiceLine reads a row produced by InvoiceLines.
func ScanInvoiceLine(r Row) (ledger.InvoiceLine, error) {
	var l ledger.InvoiceLine
	var category string
	qty, price := decimalText{dst: &l.Quantity}, decimalText{dst: &l.UnitPrice}
	if err := r.Scan(&l.ID, &l.InvoiceID, &category, &l.ProductID, &qty.raw, &price.raw, &l.BatchDate); err != nil {
		return l, err
	}
	l.Category = ledger.Category(category)
	return l, parseDecimals(&qty, &price)
}

// ScanTransfer reads a row produced by TransfersInto or TransfersOutOf.
func ScanTransfer(r Row) (ledger.Transfer, error) {
	var tr ledger.Transfer
	err := r.Scan(&tr.ID, &tr.FromWarehouseID, &tr.ToWarehouseID, &tr.TransferDate, &tr.Note, &tr.Reference)
	return tr, err
}

// ScanTransferLine reads a row produced by TransferLines.
func ScanTransferLine(r Row) (ledger.TransferLine, error) {
	var l ledger.TransferLine
	var category string
	qty, price := decimalText{dst: &l.Quantity}, decimalText{dst: &l.UnitPrice}
	if err := r.Scan(&l.ID, &l.TransferID, &category, &l.ProductID, &qty.raw, &price.raw, &l.BatchDate); err != nil {
		return l, err
	}
	l.Category = ledger.Category(category)
	return l, parseDecimals(&qty, &price)
}

// ScanStockOut reads a row produced by StockOuts.
func ScanStockOut(r Row) (ledger.StockOut, error) {
	var so ledger.StockOut
	var reason string
	err := r.Scan(&so.ID, &so.WarehouseID, &reason, &so.OutDate,
		&so.TransferID, &so.InvoiceID, &so.CountID, &so.Note, &so.Reference)
	so.Reason = ledger.StockOutReason(reason)
	return so, err
}

// ScanStockOutLine reads a row produced by StockOutLines.
func ScanStockOutLine(r Row) (ledger.StockOutLine, error) {
	var l ledger.StockOutLine
	var category string
	qty, price := decimalText{dst: &l.Quantity}, decimalText{dst: &l.UnitPrice}
	if err := r.Scan(&l.ID, &l.StockOutID, &category, &l.ProductID, &qty.raw, &price.raw, &l.BatchDate); err != nil {
		return l, err
	}
	l.Category = ledger.Category(category)
	return l, parseDecimals(&qty, &price)
}

// ScanWarehouse reads a row produced by Warehouses or Warehouse.
func ScanWarehouse(r Row) (masterdata.Warehouse, error) {
	var w masterdata.Warehouse
	err := r.Scan(&w.ID, &w.Code, &w.Name)
	return w, err
}

// ScanProduct reads a row produced by Products.
func ScanProduct(r Row) (masterdata.Product, error) {
	var p masterdata.Product
	var category string
	err := r.Scan(&category, &p.ID, &p.Code, &p.Name, &p.Unit)
	p.Category = ledger.Category(category)
	return p, err
}
