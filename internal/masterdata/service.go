package masterdata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

// Service exposes read access to warehouses and the product catalog.
type Service struct {
	store  Store
	cache  *CatalogCache
	logger *slog.Logger
}

// NewService constructs the master data service. cache may be nil.
func NewService(store Store, cache *CatalogCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cache: cache, logger: logger}
}

// ListWarehouses returns every warehouse.
func (s *Service) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	return s.store.ListWarehouses(ctx)
}

// GetWarehouse loads one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("warehouse %d: %w", id, ErrWarehouseNotFound)
	}
	return s.store.GetWarehouse(ctx, id)
}

// ListProducts returns the catalog restricted to category, or all products
// when category is empty. Results come from the catalog cache.
func (s *Service) ListProducts(ctx context.Context, category ledger.Category) ([]Product, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidCategory, category)
	}
	scope := string(category)
	if scope == "" {
		scope = "all"
	}
	return s.cache.Products(ctx, scope, func(ctx context.Context) ([]Product, error) {
		return s.store.ListProducts(ctx, category)
	})
}

// Catalog returns every product of every category.
func (s *Service) Catalog(ctx context.Context) ([]Product, error) {
	return s.ListProducts(ctx, "")
}

// InvalidateCatalog drops every cached catalog view.
func (s *Service) InvalidateCatalog(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx); err != nil {
		return err
	}
	s.logger.Info("catalog cache invalidated")
	return nil
}
