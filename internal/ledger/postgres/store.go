// Package postgres implements the ledger and master data stores on PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/ledger/sqlq"
	"github.com/odyssey-erp/labstock/internal/masterdata"
	"github.com/odyssey-erp/labstock/internal/platform/db"
)

//go:embed schema.sql
var schema string

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists the ledger in PostgreSQL.
type Store struct {
	conn
	pool *pgxpool.Pool
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ ledger.Transactor = (*Store)(nil)
	_ masterdata.Store  = (*Store)(nil)
	_ ledger.Writer     = conn{}
)

// New constructs Store over an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{conn: conn{q: pool, b: sqlq.New(sqlq.DialectPostgres)}, pool: pool}
}

// Migrate applies the bootstrap schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ledger/postgres: migrate: %w", err)
	}
	return nil
}

// WithTx runs fn inside a repeatable-read transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.Writer) error) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, conn{q: tx, b: s.b})
	})
	if errors.Is(err, db.ErrTx) {
		return ledger.QueryFailed("transaction", err)
	}
	return err
}

type conn struct {
	q querier
	b sqlq.Builder
}

func list[T any](ctx context.Context, q querier, name string, st sqlq.Statement, err error, scan func(sqlq.Row) (T, error)) ([]T, error) {
	if err != nil {
		return nil, ledger.QueryFailed(name, err)
	}
	rows, err := q.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, ledger.QueryFailed(name, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
	if err != nil {
		return nil, ledger.QueryFailed(name, err)
	}
	return items, nil
}

func (c conn) exec(ctx context.Context, name string, st sqlq.Statement, err error) error {
	if err != nil {
		return ledger.QueryFailed(name, err)
	}
	if _, err := c.q.Exec(ctx, st.SQL, st.Args...); err != nil {
		return ledger.QueryFailed(name, err)
	}
	return nil
}

func (c conn) insert(ctx context.Context, name string, st sqlq.Statement, err error) (int64, error) {
	if err != nil {
		return 0, ledger.QueryFailed(name, err)
	}
	var id int64
	if err := c.q.QueryRow(ctx, st.SQL, st.Args...).Scan(&id); err != nil {
		return 0, ledger.QueryFailed(name, err)
	}
	return id, nil
}

func (c conn) ActiveInvoices(ctx context.Context, warehouseID int64) ([]ledger.Invoice, error) {
	st, err := c.b.ActiveInvoices(warehouseID)
	return list(ctx, c.q, "active_invoices", st, err, sqlq.ScanInvoice)
}

func (c conn) InvoiceLines(ctx context.Context, invoiceIDs []int64, product ledger.ProductRef) ([]ledger.InvoiceLine, error) {
	if len(invoiceIDs) == 0 {
		return nil, nil
	}
	st, err := c.b.InvoiceLines(invoiceIDs, product)
	return list(ctx, c.q, "invoice_lines", st, err, sqlq.ScanInvoiceLine)
}

func (c conn) TransfersInto(ctx context.Context, warehouseID int64) ([]ledger.Transfer, error) {
	st, err := c.b.TransfersInto(warehouseID)
	return list(ctx, c.q, "transfers_into", st, err, sqlq.ScanTransfer)
}

func (c conn) TransfersOutOf(ctx context.Context, warehouseID int64) ([]ledger.Transfer, error) {
	st, err := c.b.TransfersOutOf(warehouseID)
	return list(ctx, c.q, "transfers_out_of", st, err, sqlq.ScanTransfer)
}

func (c conn) TransferLines(ctx context.Context, transferIDs []int64, product ledger.ProductRef) ([]ledger.TransferLine, error) {
	if len(transferIDs) == 0 {
		return nil, nil
	}
	st, err := c.b.TransferLines(transferIDs, product)
	return list(ctx, c.q, "transfer_lines", st, err, sqlq.ScanTransferLine)
}

func (c conn) StockOuts(ctx context.Context, warehouseID int64) ([]ledger.StockOut, error) {
	st, err := c.b.StockOuts(warehouseID)
	return list(ctx, c.q, "stock_outs", st, err, sqlq.ScanStockOut)
}

func (c conn) StockOutLines(ctx context.Context, stockOutIDs []int64, product ledger.ProductRef) ([]ledger.StockOutLine, error) {
	if len(stockOutIDs) == 0 {
		return nil, nil
	}
	st, err := c.b.StockOutLines(stockOutIDs, product)
	return list(ctx, c.q, "stock_out_lines", st, err, sqlq.ScanStockOutLine)
}

func (c conn) GetInvoice(ctx context.Context, id int64) (ledger.Invoice, error) {
	st, err := c.b.Invoice(id)
	if err != nil {
		return ledger.Invoice{}, ledger.QueryFailed("invoice", err)
	}
	inv, err := sqlq.ScanInvoice(c.q.QueryRow(ctx, st.SQL, st.Args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Invoice{}, fmt.Errorf("invoice %d: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return ledger.Invoice{}, ledger.QueryFailed("invoice", err)
	}
	return inv, nil
}

func (c conn) ListInvoiceLines(ctx context.Context, invoiceID int64) ([]ledger.InvoiceLine, error) {
	st, err := c.b.InvoiceLinesByInvoice(invoiceID)
	return list(ctx, c.q, "invoice_lines_by_invoice", st, err, sqlq.ScanInvoiceLine)
}

func (c conn) CreateInvoice(ctx context.Context, inv ledger.Invoice) (int64, error) {
	st, err := c.b.InsertInvoice(inv)
	return c.insert(ctx, "insert_invoice", st, err)
}

func (c conn) DeleteInvoice(ctx context.Context, id int64) error {
	st, err := c.b.DeleteInvoice(id)
	return c.exec(ctx, "delete_invoice", st, err)
}

func (c conn) CreateInvoiceLines(ctx context.Context, invoiceID int64, lines []ledger.InvoiceLine) error {
	if len(lines) == 0 {
		return nil
	}
	st, err := c.b.InsertInvoiceLines(invoiceID, lines)
	return c.exec(ctx, "insert_invoice_lines", st, err)
}

func (c conn) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	st, err := c.b.DeleteInvoiceLines(invoiceID)
	return c.exec(ctx, "delete_invoice_lines", st, err)
}

func (c conn) SetInvoiceStatus(ctx context.Context, id int64, status ledger.InvoiceStatus) error {
	st, err := c.b.UpdateInvoiceStatus(id, status)
	return c.exec(ctx, "update_invoice_status", st, err)
}

func (c conn) CreateTransfer(ctx context.Context, tr ledger.Transfer) (int64, error) {
	st, err := c.b.InsertTransfer(tr)
	return c.insert(ctx, "insert_transfer", st, err)
}

func (c conn) DeleteTransfer(ctx context.Context, id int64) error {
	st, err := c.b.DeleteTransfer(id)
	return c.exec(ctx, "delete_transfer", st, err)
}

func (c conn) CreateTransferLines(ctx context.Context, transferID int64, lines []ledger.TransferLine) error {
	if len(lines) == 0 {
		return nil
	}
	st, err := c.b.InsertTransferLines(transferID, lines)
	return c.exec(ctx, "insert_transfer_lines", st, err)
}

func (c conn) DeleteTransferLines(ctx context.Context, transferID int64) error {
	st, err := c.b.DeleteTransferLines(transferID)
	return c.exec(ctx, "delete_transfer_lines", st, err)
}

func (c conn) CreateStockOut(ctx context.Context, so ledger.StockOut) (int64, error) {
	st, err := c.b.InsertStockOut(so)
	return c.insert(ctx, "insert_stock_out", st, err)
}

func (c conn) DeleteStockOut(ctx context.Context, id int64) error {
	st, err := c.b.DeleteStockOut(id)
	return c.exec(ctx, "delete_stock_out", st, err)
}

func (c conn) CreateStockOutLines(ctx context.Context, stockOutID int64, lines []ledger.StockOutLine) error {
	if len(lines) == 0 {
		return nil
	}
	st, err := c.b.InsertStockOutLines(stockOutID, lines)
	return c.exec(ctx, "insert_stock_out_lines", st, err)
}

func (c conn) DeleteStockOutLines(ctx context.Context, stockOutID int64) error {
	st, err := c.b.DeleteStockOutLines(stockOutID)
	return c.exec(ctx, "delete_stock_out_lines", st, err)
}

func (c conn) CreateInventoryCount(ctx context.Context, count ledger.InventoryCount) (int64, error) {
	st, err := c.b.InsertInventoryCount(count)
	return c.insert(ctx, "insert_inventory_count", st, err)
}

func (c conn) DeleteInventoryCount(ctx context.Context, id int64) error {
	st, err := c.b.DeleteInventoryCount(id)
	return c.exec(ctx, "delete_inventory_count", st, err)
}

func (c conn) CreateInventoryCountLines(ctx context.Context, countID int64, lines []ledger.InventoryCountLine) error {
	if len(lines) == 0 {
		return nil
	}
	st, err := c.b.InsertInventoryCountLines(countID, lines)
	return c.exec(ctx, "insert_inventory_count_lines", st, err)
}

func (c conn) DeleteInventoryCountLines(ctx context.Context, countID int64) error {
	st, err := c.b.DeleteInventoryCountLines(countID)
	return c.exec(ctx, "delete_inventory_count_lines", st, err)
}

// ListWarehouses returns every warehouse ordered by id.
func (s *Store) ListWarehouses(ctx context.Context) ([]masterdata.Warehouse, error) {
	st, err := s.b.Warehouses()
	return list(ctx, s.q, "warehouses", st, err, sqlq.ScanWarehouse)
}

// GetWarehouse loads one warehouse.
func (s *Store) GetWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error) {
	st, err := s.b.Warehouse(id)
	if err != nil {
		return masterdata.Warehouse{}, ledger.QueryFailed("warehouse", err)
	}
	w, err := sqlq.ScanWarehouse(s.q.QueryRow(ctx, st.SQL, st.Args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return masterdata.Warehouse{}, masterdata.ErrWarehouseNotFound
	}
	if err != nil {
		return masterdata.Warehouse{}, ledger.QueryFailed("warehouse", err)
	}
	return w, nil
}

// ListProducts returns the catalog, optionally restricted to one category.
func (s *Store) ListProducts(ctx context.Context, category ledger.Category) ([]masterdata.Product, error) {
	st, err := s.b.Products(category)
	return list(ctx, s.q, "products", st, err, sqlq.ScanProduct)
}
