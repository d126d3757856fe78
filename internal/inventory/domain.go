package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

var (
	// ErrInvalidInput wraps every validation failure of a posting request.
	ErrInvalidInput = errors.New("inventory: invalid input")
	// ErrInsufficientStock is matched by every InsufficientStockError.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvoiceNotActive indicates a return of an already returned invoice.
	ErrInvoiceNotActive = errors.New("inventory: invoice is not active")
	// ErrSameWarehouse rejects transfers into their own source.
	ErrSameWarehouse = errors.New("inventory: source and destination warehouse must differ")
)

// InsufficientStockError reports the shortfall that blocked a posting.
// BatchDate is set when a single batch fell short: an explicit batch line or
// a returned invoice batch.
type InsufficientStockError struct {
	WarehouseID int64
	Product     ledger.ProductRef
	BatchDate   string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	where := fmt.Sprintf("warehouse %d", e.WarehouseID)
	if e.BatchDate != "" {
		where += " batch " + e.BatchDate
	}
	return fmt.Sprintf("inventory: insufficient stock of %s at %s: available %s, requested %s",
		e.Product, where, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// DocumentKind names the posted document type.
type DocumentKind string

const (
	DocumentInvoice        DocumentKind = "invoice"
	DocumentInvoiceReturn  DocumentKind = "invoice_return"
	DocumentTransfer       DocumentKind = "transfer"
	DocumentStockOut       DocumentKind = "stock_out"
	DocumentInventoryCount DocumentKind = "inventory_count"
)

// ReceiptLine is one received product. BatchDate defaults to the invoice date.
type ReceiptLine struct {
	Category  ledger.Category `json:"category" validate:"required,oneof=reagent consumable"`
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	BatchDate string          `json:"batch_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// InvoiceInput describes a goods receipt.
type InvoiceInput struct {
	WarehouseID    int64         `json:"warehouse_id" validate:"gt=0"`
	Supplier       string        `json:"supplier" validate:"required,max=200"`
	Number         string        `json:"number" validate:"max=100"`
	InvoiceDate    string        `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	Reference      string        `json:"reference,omitempty"`
	Lines          []ReceiptLine `json:"lines" validate:"required,min=1,dive"`
	IdempotencyKey string        `json:"-"`
}

// ReturnInput sends a whole invoice back to its supplier.
type ReturnInput struct {
	InvoiceID      int64  `json:"-" validate:"gt=0"`
	ReturnDate     string `json:"return_date" validate:"required,datetime=2006-01-02"`
	Note           string `json:"note,omitempty"`
	IdempotencyKey string `json:"-"`
}

// IssueLine is one product leaving a warehouse. Without BatchDate the quantity
// is taken from the oldest batches first; with it only that batch is used,
// narrowed to one price when UnitPrice is given, zero included.
type IssueLine struct {
	Category  ledger.Category  `json:"category" validate:"required,oneof=reagent consumable"`
	ProductID int64            `json:"product_id" validate:"gt=0"`
	Quantity  decimal.Decimal  `json:"quantity" validate:"gt=0"`
	BatchDate string           `json:"batch_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

// Product returns the line's product key.
func (l IssueLine) Product() ledger.ProductRef {
	return ledger.ProductRef{Category: l.Category, ID: l.ProductID}
}

// TransferInput moves stock between two warehouses.
type TransferInput struct {
	FromWarehouseID int64       `json:"from_warehouse_id" validate:"gt=0"`
	ToWarehouseID   int64       `json:"to_warehouse_id" validate:"gt=0"`
	TransferDate    string      `json:"transfer_date" validate:"required,datetime=2006-01-02"`
	Note            string      `json:"note,omitempty"`
	Reference       string      `json:"reference,omitempty"`
	Lines           []IssueLine `json:"lines" validate:"required,min=1,dive"`
	IdempotencyKey  string      `json:"-"`
}

// StockOutInput records consumption or any other exit. Transfer, return and
// loss stock-outs are only created by their own postings.
type StockOutInput struct {
	WarehouseID    int64                 `json:"warehouse_id" validate:"gt=0"`
	Reason         ledger.StockOutReason `json:"reason" validate:"required,oneof=consumption other"`
	OutDate        string                `json:"out_date" validate:"required,datetime=2006-01-02"`
	Note           string                `json:"note,omitempty"`
	Reference      string                `json:"reference,omitempty"`
	Lines          []IssueLine           `json:"lines" validate:"required,min=1,dive"`
	IdempotencyKey string                `json:"-"`
}

// CountLine is the physically counted quantity of one product.
type CountLine struct {
	Category  ledger.Category `json:"category" validate:"required,oneof=reagent consumable"`
	ProductID int64           `json:"product_id" validate:"gt=0"`
	RealQty   decimal.Decimal `json:"real_qty" validate:"gte=0"`
}

// Product returns the line's product key.
func (l CountLine) Product() ledger.ProductRef {
	return ledger.ProductRef{Category: l.Category, ID: l.ProductID}
}

// CountInput records a physical inventory count.
type CountInput struct {
	WarehouseID    int64       `json:"warehouse_id" validate:"gt=0"`
	CountDate      string      `json:"count_date" validate:"required,datetime=2006-01-02"`
	Note           string      `json:"note,omitempty"`
	Reference      string      `json:"reference,omitempty"`
	Lines          []CountLine `json:"lines" validate:"required,min=1,dive"`
	IdempotencyKey string      `json:"-"`
}

// Posting identifies the documents a successful posting created.
type Posting struct {
	Document    DocumentKind `json:"document"`
	ID          int64        `json:"id"`
	WarehouseID int64        `json:"warehouse_id"`
	// StockOutID is the stock-out created alongside the document, if any.
	StockOutID int64  `json:"stock_out_id,omitempty"`
	Reference  string `json:"reference"`
	SagaID     string `json:"saga_id"`
}

// CountResult is a posted inventory count with its derived lines.
type CountResult struct {
	Posting
	TotalLoss decimal.Decimal             `json:"total_loss"`
	Lines     []ledger.InventoryCountLine `json:"lines"`
}
