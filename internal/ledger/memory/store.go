// Package memory is an in-process ledger store without transactions. It backs
// tests and exercises the compensating path of posting sagas.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

// Store keeps every row in maps guarded by one mutex.
type Store struct {
	mu sync.RWMutex

	nextID int64
	fail   map[string]error

	warehouses map[int64]masterdata.Warehouse
	products   []masterdata.Product

	invoices      map[int64]ledger.Invoice
	invoiceLines  []ledger.InvoiceLine
	transfers     map[int64]ledger.Transfer
	transferLines []ledger.TransferLine
	stockOuts     map[int64]ledger.StockOut
	stockOutLines []ledger.StockOutLine
	counts        map[int64]ledger.InventoryCount
	countLines    []ledger.InventoryCountLine
}

var (
	_ ledger.Store     = (*Store)(nil)
	_ masterdata.Store = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		fail:       map[string]error{},
		warehouses: map[int64]masterdata.Warehouse{},
		invoices:   map[int64]ledger.Invoice{},
		transfers:  map[int64]ledger.Transfer{},
		stockOuts:  map[int64]ledger.StockOut{},
		counts:     map[int64]ledger.InventoryCount{},
	}
}

// FailOn makes the named query return err until cleared with a nil err.
// Names match the ones carried by ledger.QueryError.
func (s *Store) FailOn(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, query)
		return
	}
	s.fail[query] = err
}

func (s *Store) failure(query string) error {
	if err, ok := s.fail[query]; ok {
		return ledger.QueryFailed(query, err)
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddWarehouse seeds a warehouse.
func (s *Store) AddWarehouse(w masterdata.Warehouse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warehouses[w.ID] = w
}

// AddProduct seeds a catalog product.
func (s *Store) AddProduct(p masterdata.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, p)
}

func matches(category ledger.Category, productID int64, product ledger.ProductRef) bool {
	return category == product.Category && productID == product.ID
}

func (s *Store) ActiveInvoices(_ context.Context, warehouseID int64) ([]ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("active_invoices"); err != nil {
		return nil, err
	}
	var out []ledger.Invoice
	for _, inv := range s.invoices {
		if inv.WarehouseID == warehouseID && inv.Status == ledger.InvoiceStatusActive {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) InvoiceLines(_ context.Context, invoiceIDs []int64, product ledger.ProductRef) ([]ledger.InvoiceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("invoice_lines"); err != nil {
		return nil, err
	}
	var out []ledger.InvoiceLine
	for _, l := range s.invoiceLines {
		if slices.Contains(invoiceIDs, l.InvoiceID) && matches(l.Category, l.ProductID, product) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) transfersWhere(query string, keep func(ledger.Transfer) bool) ([]ledger.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(query); err != nil {
		return nil, err
	}
	var out []ledger.Transfer
	for _, tr := range s.transfers {
		if keep(tr) {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TransfersInto(_ context.Context, warehouseID int64) ([]ledger.Transfer, error) {
	return s.transfersWhere("transfers_into", func(tr ledger.Transfer) bool { return tr.ToWarehouseID == warehouseID })
}

func (s *Store) TransfersOutOf(_ context.Context, warehouseID int64) ([]ledger.Transfer, error) {
	return s.transfersWhere("transfers_out_of", func(tr ledger.Transfer) bool { return tr.FromWarehouseID == warehouseID })
}

func (s *Store) TransferLines(_ context.Context, transferIDs []int64, product ledger.ProductRef) ([]ledger.TransferLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("transfer_lines"); err != nil {
		return nil, err
	}
	var out []ledger.TransferLine
	for _, l := range s.transferLines {
		if slices.Contains(transferIDs, l.TransferID) && matches(l.Category, l.ProductID, product) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) StockOuts(_ context.Context, warehouseID int64) ([]ledger.StockOut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("stock_outs"); err != nil {
		return nil, err
	}
	var out []ledger.StockOut
	for _, so := range s.stockOuts {
		if so.WarehouseID == warehouseID {
			out = append(out, so)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) StockOutLines(_ context.Context, stockOutIDs []int64, product ledger.ProductRef) ([]ledger.StockOutLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("stock_out_lines"); err != nil {
		return nil, err
	}
	var out []ledger.StockOutLine
	for _, l := range s.stockOutLines {
		if slices.Contains(stockOutIDs, l.StockOutID) && matches(l.Category, l.ProductID, product) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (ledger.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("invoice"); err != nil {
		return ledger.Invoice{}, err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return ledger.Invoice{}, fmt.Errorf("invoice %d: %w", id, ledger.ErrNotFound)
	}
	return inv, nil
}

func (s *Store) ListInvoiceLines(_ context.Context, invoiceID int64) ([]ledger.InvoiceLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("invoice_lines_by_invoice"); err != nil {
		return nil, err
	}
	var out []ledger.InvoiceLine
	for _, l := range s.invoiceLines {
		if l.InvoiceID == invoiceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) CreateInvoice(_ context.Context, inv ledger.Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_invoice"); err != nil {
		return 0, err
	}
	inv.ID = s.id()
	s.invoices[inv.ID] = inv
	return inv.ID, nil
}

func (s *Store) DeleteInvoice(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, id)
	return nil
}

func (s *Store) CreateInvoiceLines(_ context.Context, invoiceID int64, lines []ledger.InvoiceLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_invoice_lines"); err != nil {
		return err
	}
	for _, l := range lines {
		l.ID, l.InvoiceID = s.id(), invoiceID
		s.invoiceLines = append(s.invoiceLines, l)
	}
	return nil
}

func (s *Store) DeleteInvoiceLines(_ context.Context, invoiceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoiceLines = slices.DeleteFunc(s.invoiceLines, func(l ledger.InvoiceLine) bool { return l.InvoiceID == invoiceID })
	return nil
}

func (s *Store) SetInvoiceStatus(_ context.Context, id int64, status ledger.InvoiceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("update_invoice_status"); err != nil {
		return err
	}
	inv, ok := s.invoices[id]
	if !ok {
		return nil
	}
	inv.Status = status
	s.invoices[id] = inv
	return nil
}

func (s *Store) CreateTransfer(_ context.Context, tr ledger.Transfer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_transfer"); err != nil {
		return 0, err
	}
	tr.ID = s.id()
	s.transfers[tr.ID] = tr
	return tr.ID, nil
}

func (s *Store) DeleteTransfer(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transfers, id)
	return nil
}

func (s *Store) CreateTransferLines(_ context.Context, transferID int64, lines []ledger.TransferLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_transfer_lines"); err != nil {
		return err
	}
	for _, l := range lines {
		l.ID, l.TransferID = s.id(), transferID
		s.transferLines = append(s.transferLines, l)
	}
	return nil
}

func (s *Store) DeleteTransferLines(_ context.Context, transferID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferLines = slices.DeleteFunc(s.transferLines, func(l ledger.TransferLine) bool { return l.TransferID == transferID })
	return nil
}

func (s *Store) CreateStockOut(_ context.Context, so ledger.StockOut) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_stock_out"); err != nil {
		return 0, err
	}
	so.ID = s.id()
	s.stockOuts[so.ID] = so
	return so.ID, nil
}

func (s *Store) DeleteStockOut(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stockOuts, id)
	return nil
}

func (s *Store) CreateStockOutLines(_ context.Context, stockOutID int64, lines []ledger.StockOutLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_stock_out_lines"); err != nil {
		return err
	}
	for _, l := range lines {
		l.ID, l.StockOutID = s.id(), stockOutID
		s.stockOutLines = append(s.stockOutLines, l)
	}
	return nil
}

func (s *Store) DeleteStockOutLines(_ context.Context, stockOutID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockOutLines = slices.DeleteFunc(s.stockOutLines, func(l ledger.StockOutLine) bool { return l.StockOutID == stockOutID })
	return nil
}

func (s *Store) CreateInventoryCount(_ context.Context, c ledger.InventoryCount) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_inventory_count"); err != nil {
		return 0, err
	}
	c.ID = s.id()
	s.counts[c.ID] = c
	return c.ID, nil
}

func (s *Store) DeleteInventoryCount(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, id)
	return nil
}

func (s *Store) CreateInventoryCountLines(_ context.Context, countID int64, lines []ledger.InventoryCountLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("insert_inventory_count_lines"); err != nil {
		return err
	}
	for _, l := range lines {
		l.ID, l.CountID = s.id(), countID
		s.countLines = append(s.countLines, l)
	}
	return nil
}

func (s *Store) DeleteInventoryCountLines(_ context.Context, countID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countLines = slices.DeleteFunc(s.countLines, func(l ledger.InventoryCountLine) bool { return l.CountID == countID })
	return nil
}

// ListWarehouses returns every warehouse ordered by id.
func (s *Store) ListWarehouses(context.Context) ([]masterdata.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("warehouses"); err != nil {
		return nil, err
	}
	out := make([]masterdata.Warehouse, 0, len(s.warehouses))
	for _, w := range s.warehouses {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetWarehouse loads one warehouse.
func (s *Store) GetWarehouse(_ context.Context, id int64) (masterdata.Warehouse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.warehouses[id]
	if !ok {
		return masterdata.Warehouse{}, masterdata.ErrWarehouseNotFound
	}
	return w, nil
}

// ListProducts returns the catalog, optionally restricted to one category.
func (s *Store) ListProducts(_ context.Context, category ledger.Category) ([]masterdata.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure("products"); err != nil {
		return nil, err
	}
	var out []masterdata.Product
	for _, p := range s.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// Counts returns the stored inventory counts with their lines, for inspection.
func (s *Store) Counts() ([]ledger.InventoryCount, []ledger.InventoryCountLine) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make([]ledger.InventoryCount, 0, len(s.counts))
	for _, c := range s.counts {
		counts = append(counts, c)
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].ID < counts[j].ID })
	return counts, slices.Clone(s.countLines)
}

// StockOutsByReason returns every stock-out with the given reason.
func (s *Store) StockOutsByReason(reason ledger.StockOutReason) []ledger.StockOut {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.StockOut
	for _, so := range s.stockOuts {
		if so.Reason == reason {
			out = append(out, so)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transfers returns every stored transfer.
func (s *Store) Transfers() []ledger.Transfer {
	out, _ := s.transfersWhere("", func(ledger.Transfer) bool { return true })
	return out
}
