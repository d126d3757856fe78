package stock

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

// IssueKind classifies a consistency finding.
type IssueKind string

const (
	// IssueNegativeStock flags a pair whose signed event sum is below zero.
	IssueNegativeStock IssueKind = "negative_stock"
	// IssueBatchDrift flags a pair whose batches do not add up to a
	// non-negative signed sum, typically decreases dated on no received batch.
	IssueBatchDrift IssueKind = "batch_drift"
)

// Issue is one inconsistent (warehouse, product) pair.
type Issue struct {
	WarehouseID   int64             `json:"warehouse_id"`
	Product       ledger.ProductRef `json:"product"`
	Kind          IssueKind         `json:"kind"`
	RawQuantity   decimal.Decimal   `json:"raw_quantity"`
	TotalQuantity decimal.Decimal   `json:"total_quantity"`
}

// Inspect classifies a computed stock. It returns false for consistent stock.
func Inspect(st Stock) (Issue, bool) {
	issue := Issue{
		WarehouseID:   st.WarehouseID,
		Product:       st.Product,
		RawQuantity:   st.RawQuantity,
		TotalQuantity: st.TotalQuantity,
	}
	switch {
	case st.RawQuantity.IsNegative():
		issue.Kind = IssueNegativeStock
	case !st.RawQuantity.Equal(st.TotalQuantity):
		issue.Kind = IssueBatchDrift
	default:
		return Issue{}, false
	}
	return issue, true
}

// FindInconsistencies computes every warehouse x product pair of the catalog
// and reports the inconsistent ones, sorted by warehouse, category and product.
func (s *Service) FindInconsistencies(ctx context.Context) ([]Issue, error) {
	warehouses, err := s.directory.ListWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: sweep warehouses: %w", err)
	}
	catalog, err := s.directory.Catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("stock: sweep catalog: %w", err)
	}
	refs := make([]ledger.ProductRef, 0, len(catalog))
	for _, p := range catalog {
		refs = append(refs, p.Ref())
	}

	issues := []Issue{}
	for _, w := range warehouses {
		stocks, err := s.computeMany(ctx, w.ID, refs, 0)
		if err != nil {
			return nil, fmt.Errorf("stock: sweep warehouse %d: %w", w.ID, err)
		}
		for _, st := range stocks {
			if issue, ok := Inspect(st); ok {
				issues = append(issues, issue)
			}
		}
	}

	sort.Slice(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.WarehouseID != b.WarehouseID {
			return a.WarehouseID < b.WarehouseID
		}
		if a.Product.Category != b.Product.Category {
			return a.Product.Category < b.Product.Category
		}
		return a.Product.ID < b.Product.ID
	})

	s.logger.Info("stock consistency sweep",
		slog.Int("warehouses", len(warehouses)),
		slog.Int("products", len(refs)),
		slog.Int("issues", len(issues)))
	return issues, nil
}
