// Package stock derives on-hand quantities and batch valuations from the
// ledger. Nothing here writes: every figure is recomputed on demand.
package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
)

// ErrInvalidQuantity indicates a negative requested quantity.
var ErrInvalidQuantity = errors.New("stock: requested quantity must not be negative")

// Directory lists what bulk computations iterate over. masterdata.Service
// satisfies it.
type Directory interface {
	ListWarehouses(ctx context.Context) ([]masterdata.Warehouse, error)
	GetWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
	Catalog(ctx context.Context) ([]masterdata.Product, error)
}

// Config tunes the service.
type Config struct {
	Policy Policy
	// Concurrency bounds in-flight computations across bulk callers.
	Concurrency int
	// ChunkSize is the default number of products computed per chunk.
	ChunkSize int
}

// Service computes stock positions.
type Service struct {
	reader    ledger.Reader
	directory Directory
	policy    Policy
	chunkSize int
	sem       *semaphore.Weighted
	logger    *slog.Logger
}

// NewService constructs the stock service.
func NewService(reader ledger.Reader, directory Directory, cfg Config, logger *slog.Logger) *Service {
	if cfg.Policy == "" {
		cfg.Policy = DecreasePerBucket
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reader:    reader,
		directory: directory,
		policy:    cfg.Policy,
		chunkSize: cfg.ChunkSize,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:    logger,
	}
}

// Policy reports the configured decrease policy.
func (s *Service) Policy() Policy { return s.policy }

// ComputeStock derives the stock of product at warehouseID. Unknown
// identifiers yield zero stock; store failures are returned and match
// ledger.ErrQueryFailure.
func (s *Service) ComputeStock(ctx context.Context, warehouseID int64, product ledger.ProductRef) (Stock, error) {
	if !product.Category.Valid() {
		return Stock{}, fmt.Errorf("%w: %q", ledger.ErrInvalidCategory, product.Category)
	}
	l, err := s.fetch(ctx, warehouseID, product)
	if err != nil {
		return Stock{}, fmt.Errorf("stock: compute %s at warehouse %d: %w", product, warehouseID, err)
	}
	st := Aggregate(l, s.policy)
	st.WarehouseID = warehouseID
	st.Product = product
	return st, nil
}

// fetch runs the four independent header to lines chains concurrently. Each
// goroutine owns distinct fields of the result.
func (s *Service) fetch(ctx context.Context, warehouseID int64, product ledger.ProductRef) (Ledger, error) {
	var l Ledger
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		invoices, err := s.reader.ActiveInvoices(gctx, warehouseID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(invoices))
		for _, inv := range invoices {
			ids = append(ids, inv.ID)
		}
		lines, err := s.reader.InvoiceLines(gctx, ids, product)
		if err != nil {
			return err
		}
		l.Invoices, l.InvoiceLines = invoices, lines
		return nil
	})
	g.Go(func() error {
		transfers, err := s.reader.TransfersInto(gctx, warehouseID)
		if err != nil {
			return err
		}
		lines, err := s.reader.TransferLines(gctx, transferIDs(transfers), product)
		if err != nil {
			return err
		}
		l.TransferInLines = lines
		return nil
	})
	g.Go(func() error {
		transfers, err := s.reader.TransfersOutOf(gctx, warehouseID)
		if err != nil {
			return err
		}
		lines, err := s.reader.TransferLines(gctx, transferIDs(transfers), product)
		if err != nil {
			return err
		}
		l.TransfersOut, l.TransferOutLines = transfers, lines
		return nil
	})
	g.Go(func() error {
		outs, err := s.reader.StockOuts(gctx, warehouseID)
		if err != nil {
			return err
		}
		ids := make([]int64, 0, len(outs))
		for _, so := range outs {
			ids = append(ids, so.ID)
		}
		lines, err := s.reader.StockOutLines(gctx, ids, product)
		if err != nil {
			return err
		}
		l.StockOuts, l.StockOutLines = outs, lines
		return nil
	})

	if err := g.Wait(); err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func transferIDs(transfers []ledger.Transfer) []int64 {
	ids := make([]int64, 0, len(transfers))
	for _, tr := range transfers {
		ids = append(ids, tr.ID)
	}
	return ids
}

// Availability is the answer of CheckAvailability.
type Availability struct {
	Available    bool            `json:"available"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	Requested    decimal.Decimal `json:"requested"`
}

// Shortfall returns how much is missing, zero when available.
func (a Availability) Shortfall() decimal.Decimal {
	if a.Available {
		return decimal.Zero
	}
	return a.Requested.Sub(a.CurrentStock)
}

// CheckAvailability reports whether requested units can leave warehouseID.
// Callers gate every stock-decreasing document on it.
func (s *Service) CheckAvailability(ctx context.Context, warehouseID int64, product ledger.ProductRef, requested decimal.Decimal) (Availability, error) {
	if requested.IsNegative() {
		return Availability{}, ErrInvalidQuantity
	}
	st, err := s.ComputeStock(ctx, warehouseID, product)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		Available:    st.TotalQuantity.GreaterThanOrEqual(requested),
		CurrentStock: st.TotalQuantity,
		Requested:    requested,
	}, nil
}

// computeMany computes stock for products at warehouseID, chunkSize products
// at a time, with the service semaphore bounding in-flight computations.
// Results keep the order of products.
func (s *Service) computeMany(ctx context.Context, warehouseID int64, products []ledger.ProductRef, chunkSize int) ([]Stock, error) {
	if chunkSize <= 0 {
		chunkSize = s.chunkSize
	}
	out := make([]Stock, len(products))
	for start := 0; start < len(products); start += chunkSize {
		end := min(start+chunkSize, len(products))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			if err := s.sem.Acquire(gctx, 1); err != nil {
				_ = g.Wait()
				return nil, err
			}
			i := i
			g.Go(func() error {
				defer s.sem.Release(1)
				st, err := s.ComputeStock(gctx, warehouseID, products[i])
				if err != nil {
					return err
				}
				out[i] = st
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return out, nil
}
