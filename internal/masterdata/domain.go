package masterdata

import (
	"context"
	"errors"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

// Warehouse is a physical stock location and the partition key for stock.
type Warehouse struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Product is a catalog entry keyed by (category, id).
type Product struct {
	Category ledger.Category `json:"category"`
	ID       int64           `json:"id"`
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Unit     string          `json:"unit"`
}

// Ref returns the compound product key.
func (p Product) Ref() ledger.ProductRef {
	return ledger.ProductRef{Category: p.Category, ID: p.ID}
}

// Store reads master data.
type Store interface {
	ListWarehouses(ctx context.Context) ([]Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	// ListProducts returns every product of category, or of all categories
	// when category is empty.
	ListProducts(ctx context.Context, category ledger.Category) ([]Product, error)
}

// ErrWarehouseNotFound indicates an unknown warehouse id.
var ErrWarehouseNotFound = errors.New("masterdata: warehouse not found")
