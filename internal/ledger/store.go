package ledger

import "context"

// Reader is the read side the stock aggregator depends on. Unknown
// identifiers yield empty results, never errors.
type Reader interface {
	ActiveInvoices(ctx context.Context, warehouseID int64) ([]Invoice, error)
	InvoiceLines(ctx context.Context, invoiceIDs []int64, product ProductRef) ([]InvoiceLine, error)
	TransfersInto(ctx context.Context, warehouseID int64) ([]Transfer, error)
	TransfersOutOf(ctx context.Context, warehouseID int64) ([]Transfer, error)
	TransferLines(ctx context.Context, transferIDs []int64, product ProductRef) ([]TransferLine, error)
	StockOuts(ctx context.Context, warehouseID int64) ([]StockOut, error)
	StockOutLines(ctx context.Context, stockOutIDs []int64, product ProductRef) ([]StockOutLine, error)
}

// DocumentReader loads whole documents for the posting flows.
type DocumentReader interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoiceLines(ctx context.Context, invoiceID int64) ([]InvoiceLine, error)
}

// Writer creates ledger rows. Every Create has a matching Delete used only to
// compensate a partially applied posting.
type Writer interface {
	CreateInvoice(ctx context.Context, inv Invoice) (int64, error)
	DeleteInvoice(ctx context.Context, id int64) error
	CreateInvoiceLines(ctx context.Context, invoiceID int64, lines []InvoiceLine) error
	DeleteInvoiceLines(ctx context.Context, invoiceID int64) error
	SetInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) error

	CreateTransfer(ctx context.Context, tr Transfer) (int64, error)
	DeleteTransfer(ctx context.Context, id int64) error
	CreateTransferLines(ctx context.Context, transferID int64, lines []TransferLine) error
	DeleteTransferLines(ctx context.Context, transferID int64) error

	CreateStockOut(ctx context.Context, so StockOut) (int64, error)
	DeleteStockOut(ctx context.Context, id int64) error
	CreateStockOutLines(ctx context.Context, stockOutID int64, lines []StockOutLine) error
	DeleteStockOutLines(ctx context.Context, stockOutID int64) error

	CreateInventoryCount(ctx context.Context, c InventoryCount) (int64, error)
	DeleteInventoryCount(ctx context.Context, id int64) error
	CreateInventoryCountLines(ctx context.Context, countID int64, lines []InventoryCountLine) error
	DeleteInventoryCountLines(ctx context.Context, countID int64) error
}

// Transactor is implemented by stores able to run a Writer callback atomically.
type Transactor interface {
	WithTx(ctx context.Context, fn func(context.Context, Writer) error) error
}

// Store is the full ledger persistence port.
type Store interface {
	Reader
	DocumentReader
	Writer
}
