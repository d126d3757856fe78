// Package ledger defines the append-only stock ledger: goods receipts
// (invoices), inter-warehouse transfers, stock-outs and inventory counts.
// Stock itself is never stored; see package stock for the derivation.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO-8601 calendar date layout used for batch and document dates.
const DateLayout = "2006-01-02"

// Category partitions the product catalog. Product identifiers are only
// unique within a category.
type Category string

const (
	// CategoryReagent marks laboratory reagents.
	CategoryReagent Category = "reagent"
	// CategoryConsumable marks consumables.
	CategoryConsumable Category = "consumable"
)

// Categories lists every supported category in catalog order.
var Categories = []Category{CategoryReagent, CategoryConsumable}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryReagent || c == CategoryConsumable
}

// ParseCategory validates raw input into a Category.
func ParseCategory(raw string) (Category, error) {
	c := Category(raw)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
	return c, nil
}

// ProductRef is the compound (category, id) product key.
type ProductRef struct {
	Category Category `json:"category"`
	ID       int64    `json:"product_id"`
}

func (p ProductRef) String() string {
	return fmt.Sprintf("%s:%d", p.Category, p.ID)
}

// InvoiceStatus is the invoice lifecycle state.
type InvoiceStatus string

const (
	// InvoiceStatusActive invoices contribute to stock.
	InvoiceStatusActive InvoiceStatus = "active"
	// InvoiceStatusReturned invoices are kept for audit but no longer count.
	InvoiceStatusReturned InvoiceStatus = "returned"
)

// StockOutReason tags a stock-out for audit display.
type StockOutReason string

const (
	ReasonTransfer      StockOutReason = "transfer"
	ReasonInventoryLoss StockOutReason = "inventory_loss"
	ReasonInvoiceReturn StockOutReason = "invoice_return"
	ReasonConsumption   StockOutReason = "consumption"
	ReasonOther         StockOutReason = "other"
)

// Valid reports whether r is a known reason.
func (r StockOutReason) Valid() bool {
	switch r {
	case ReasonTransfer, ReasonInventoryLoss, ReasonInvoiceReturn, ReasonConsumption, ReasonOther:
		return true
	}
	return false
}

// Invoice is a goods-receipt document scoped to one warehouse.
type Invoice struct {
	ID          int64         `json:"id"`
	WarehouseID int64         `json:"warehouse_id"`
	Supplier    string        `json:"supplier"`
	Number      string        `json:"number"`
	InvoiceDate string        `json:"invoice_date"`
	Status      InvoiceStatus `json:"status"`
	Reference   string        `json:"reference"`
}

// InvoiceLine increases stock at the invoice's warehouse.
type InvoiceLine struct {
	ID        int64           `json:"id"`
	InvoiceID int64           `json:"invoice_id"`
	Category  Category        `json:"category"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	BatchDate string          `json:"batch_date"`
}

// Transfer moves stock from one warehouse to another.
type Transfer struct {
	ID              int64  `json:"id"`
	FromWarehouseID int64  `json:"from_warehouse_id"`
	ToWarehouseID   int64  `json:"to_warehouse_id"`
	TransferDate    string `json:"transfer_date"`
	Note            string `json:"note"`
	Reference       string `json:"reference"`
}

// TransferLine increases stock at the destination and, for transfers without a
// mirroring stock-out, decreases it at the source.
type TransferLine struct {
	ID         int64           `json:"id"`
	TransferID int64           `json:"transfer_id"`
	Category   Category        `json:"category"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BatchDate  string          `json:"batch_date"`
}

// StockOut is a stock-decreasing document. The optional references link it to
// the transfer, invoice or inventory count that caused it.
type StockOut struct {
	ID          int64          `json:"id"`
	WarehouseID int64          `json:"warehouse_id"`
	Reason      StockOutReason `json:"reason"`
	OutDate     string         `json:"out_date"`
	TransferID  int64          `json:"transfer_id,omitempty"`
	InvoiceID   int64          `json:"invoice_id,omitempty"`
	CountID     int64          `json:"count_id,omitempty"`
	Note        string         `json:"note"`
	Reference   string         `json:"reference"`
}

// StockOutLine always decreases stock at the stock-out's warehouse.
type StockOutLine struct {
	ID         int64           `json:"id"`
	StockOutID int64           `json:"stock_out_id"`
	Category   Category        `json:"category"`
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	BatchDate  string          `json:"batch_date"`
}

// InventoryCount is a physical count of one warehouse on one date.
type InventoryCount struct {
	ID          int64           `json:"id"`
	WarehouseID int64           `json:"warehouse_id"`
	CountDate   string          `json:"count_date"`
	TotalLoss   decimal.Decimal `json:"total_loss"`
	Note        string          `json:"note"`
	Reference   string          `json:"reference"`
}

// InventoryCountLine records the system vs. real quantity of one product.
type InventoryCountLine struct {
	ID         int64           `json:"id"`
	CountID    int64           `json:"count_id"`
	Category   Category        `json:"category"`
	ProductID  int64           `json:"product_id"`
	SystemQty  decimal.Decimal `json:"system_qty"`
	RealQty    decimal.Decimal `json:"real_qty"`
	LossQty    decimal.Decimal `json:"loss_qty"`
	LossAmount decimal.Decimal `json:"loss_amount"`
}

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
