package stock

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

// ReportOptions narrows a warehouse report.
type ReportOptions struct {
	// Category restricts the report; empty covers the whole catalog.
	Category ledger.Category
	// IncludeEmpty keeps products without stock.
	IncludeEmpty bool
	// ChunkSize overrides the configured chunk size when positive.
	ChunkSize int
}

// ReportRow is the stock of one catalog product.
type ReportRow struct {
	Product       masterdata.Product `json:"product"`
	TotalQuantity decimal.Decimal    `json:"total_quantity"`
	TotalValue    decimal.Decimal    `json:"total_value"`
	Batches       []Batch            `json:"batches"`
}

// Report is the stock of a whole warehouse.
type Report struct {
	Warehouse  masterdata.Warehouse `json:"warehouse"`
	Rows       []ReportRow          `json:"rows"`
	TotalValue decimal.Decimal      `json:"total_value"`
}

// WarehouseReport computes stock for every catalog product at warehouseID.
// Rows are sorted by category then product code.
func (s *Service) WarehouseReport(ctx context.Context, warehouseID int64, opts ReportOptions) (Report, error) {
	if opts.Category != "" && !opts.Category.Valid() {
		return Report{}, fmt.Errorf("%w: %q", ledger.ErrInvalidCategory, opts.Category)
	}
	warehouse, err := s.directory.GetWarehouse(ctx, warehouseID)
	if err != nil {
		return Report{}, fmt.Errorf("stock: report warehouse %d: %w", warehouseID, err)
	}
	catalog, err := s.directory.Catalog(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("stock: report catalog: %w", err)
	}

	products := make([]masterdata.Product, 0, len(catalog))
	for _, p := range catalog {
		if opts.Category == "" || p.Category == opts.Category {
			products = append(products, p)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Code < products[j].Code
	})
	refs := make([]ledger.ProductRef, len(products))
	for i, p := range products {
		refs[i] = p.Ref()
	}

	stocks, err := s.computeMany(ctx, warehouseID, refs, opts.ChunkSize)
	if err != nil {
		return Report{}, fmt.Errorf("stock: report warehouse %d: %w", warehouseID, err)
	}

	report := Report{Warehouse: warehouse, Rows: []ReportRow{}, TotalValue: decimal.Zero}
	for i, st := range stocks {
		if !opts.IncludeEmpty && !st.TotalQuantity.IsPositive() {
			continue
		}
		report.Rows = append(report.Rows, ReportRow{
			Product:       products[i],
			TotalQuantity: st.TotalQuantity,
			TotalValue:    st.TotalValue,
			Batches:       st.Batches,
		})
		report.TotalValue = report.TotalValue.Add(st.TotalValue)
	}
	return report, nil
}
