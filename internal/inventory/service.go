// Package inventory posts the ledger documents that move stock: goods
// receipts, invoice returns, transfers, stock-outs and inventory counts.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/masterdata"
	"github.com/odyssey-erp/labstock/internal/saga"
	"github.com/odyssey-erp/labstock/internal/shared"
	"github.com/odyssey-erp/labstock/internal/stock"
)

// StockPort is the read side postings gate on. *stock.Service satisfies it.
type StockPort interface {
	ComputeStock(ctx context.Context, warehouseID int64, product ledger.ProductRef) (stock.Stock, error)
	CheckAvailability(ctx context.Context, warehouseID int64, product ledger.ProductRef, requested decimal.Decimal) (stock.Availability, error)
}

// WarehousePort resolves warehouses. *masterdata.Service satisfies it.
type WarehousePort interface {
	GetWarehouse(ctx context.Context, id int64) (masterdata.Warehouse, error)
}

// IdempotencyPort records processed request keys. *shared.IdempotencyStore
// satisfies it.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Locker      *shared.Locker
	Idempotency IdempotencyPort
	Audit       AuditPort
	Logger      *slog.Logger
}

// Service coordinates ledger postings.
type Service struct {
	store       ledger.Store
	tx          ledger.Transactor
	stocks      StockPort
	warehouses  WarehousePort
	locker      *shared.Locker
	idempotency IdempotencyPort
	audit       AuditPort
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewService builds Service. When store also implements ledger.Transactor the
// postings run inside one transaction; otherwise failed steps are compensated.
func NewService(store ledger.Store, stocks StockPort, warehouses WarehousePort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		store:       store,
		stocks:      stocks,
		warehouses:  warehouses,
		locker:      cfg.Locker,
		idempotency: cfg.Idempotency,
		audit:       cfg.Audit,
		validator:   newValidator(),
		logger:      logger.With(slog.String("component", "inventory")),
	}
	if tx, ok := store.(ledger.Transactor); ok {
		svc.tx = tx
	}
	return svc
}

// PostInvoice records a goods receipt.
func (s *Service) PostInvoice(ctx context.Context, input InvoiceInput) (Posting, error) {
	if err := s.validate(input); err != nil {
		return Posting{}, err
	}
	if err := s.requireWarehouse(ctx, input.WarehouseID); err != nil {
		return Posting{}, err
	}
	posting := Posting{Document: DocumentInvoice, WarehouseID: input.WarehouseID, Reference: reference(input.Reference)}
	lines := make([]ledger.InvoiceLine, 0, len(input.Lines))
	for _, l := range input.Lines {
		batchDate := l.BatchDate
		if batchDate == "" {
			batchDate = input.InvoiceDate
		}
		lines = append(lines, ledger.InvoiceLine{
			Category:  l.Category,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			BatchDate: batchDate,
		})
	}

	err := s.post(ctx, input.IdempotencyKey, DocumentInvoice, []int64{input.WarehouseID}, func(ctx context.Context) error {
		sagaID, err := s.apply(ctx, "post_invoice", func(w ledger.Writer, sg *saga.Saga) {
			sg.Step("invoice", func(ctx context.Context) error {
				id, err := w.CreateInvoice(ctx, ledger.Invoice{
					WarehouseID: input.WarehouseID,
					Supplier:    input.Supplier,
					Number:      input.Number,
					InvoiceDate: input.InvoiceDate,
					Status:      ledger.InvoiceStatusActive,
					Reference:   posting.Reference,
				})
				posting.ID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteInvoice(ctx, posting.ID)
			})
			sg.Step("invoice_lines", func(ctx context.Context) error {
				return w.CreateInvoiceLines(ctx, posting.ID, lines)
			}, func(ctx context.Context) error {
				return w.DeleteInvoiceLines(ctx, posting.ID)
			})
		})
		posting.SagaID = sagaID
		return err
	})
	if err != nil {
		return Posting{}, fmt.Errorf("inventory: post invoice: %w", err)
	}
	s.record(ctx, posting, map[string]any{"supplier": input.Supplier, "lines": len(lines)})
	return posting, nil
}

// ReturnInvoice sends every line of an active invoice back: a mirroring
// invoice_return stock-out is written and the invoice is marked returned.
func (s *Service) ReturnInvoice(ctx context.Context, input ReturnInput) (Posting, error) {
	if err := s.validate(input); err != nil {
		return Posting{}, err
	}
	inv, err := s.store.GetInvoice(ctx, input.InvoiceID)
	if err != nil {
		return Posting{}, fmt.Errorf("inventory: return invoice %d: %w", input.InvoiceID, err)
	}
	posting := Posting{Document: DocumentInvoiceReturn, ID: inv.ID, WarehouseID: inv.WarehouseID, Reference: inv.Reference}

	err = s.post(ctx, input.IdempotencyKey, DocumentInvoiceReturn, []int64{inv.WarehouseID}, func(ctx context.Context) error {
		// Re-read under the lock: a concurrent return may have won.
		inv, err := s.store.GetInvoice(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status != ledger.InvoiceStatusActive {
			return fmt.Errorf("%w: invoice %d is %s", ErrInvoiceNotActive, inv.ID, inv.Status)
		}
		invLines, err := s.store.ListInvoiceLines(ctx, inv.ID)
		if err != nil {
			return err
		}
		if err := s.gateReturn(ctx, inv.WarehouseID, invLines); err != nil {
			return err
		}
		outLines := make([]ledger.StockOutLine, 0, len(invLines))
		for _, l := range invLines {
			outLines = append(outLines, ledger.StockOutLine{
				Category:  l.Category,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				BatchDate: l.BatchDate,
			})
		}

		sagaID, err := s.apply(ctx, "return_invoice", func(w ledger.Writer, sg *saga.Saga) {
			sg.Step("stock_out", func(ctx context.Context) error {
				id, err := w.CreateStockOut(ctx, ledger.StockOut{
					WarehouseID: inv.WarehouseID,
					Reason:      ledger.ReasonInvoiceReturn,
					OutDate:     input.ReturnDate,
					InvoiceID:   inv.ID,
					Note:        input.Note,
					Reference:   inv.Reference,
				})
				posting.StockOutID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteStockOut(ctx, posting.StockOutID)
			})
			sg.Step("stock_out_lines", func(ctx context.Context) error {
				return w.CreateStockOutLines(ctx, posting.StockOutID, outLines)
			}, func(ctx context.Context) error {
				return w.DeleteStockOutLines(ctx, posting.StockOutID)
			})
			sg.Step("invoice_status", func(ctx context.Context) error {
				return w.SetInvoiceStatus(ctx, inv.ID, ledger.InvoiceStatusReturned)
			}, func(ctx context.Context) error {
				return w.SetInvoiceStatus(ctx, inv.ID, ledger.InvoiceStatusActive)
			})
		})
		posting.SagaID = sagaID
		return err
	})
	if err != nil {
		return Posting{}, fmt.Errorf("inventory: return invoice %d: %w", input.InvoiceID, err)
	}
	s.record(ctx, posting, map[string]any{"stock_out_id": posting.StockOutID})
	return posting, nil
}

// gateReturn checks the warehouse still holds every returned quantity, both
// per product and in the very batch each line was received into. Decreases
// already drawn from a returned batch would otherwise lose their bucket once
// the invoice stops counting.
func (s *Service) gateReturn(ctx context.Context, warehouseID int64, lines []ledger.InvoiceLine) error {
	type batchRef struct {
		product ledger.ProductRef
		date    string
		price   string
	}
	var order []ledger.ProductRef
	totals := map[ledger.ProductRef]decimal.Decimal{}
	var batchOrder []batchRef
	batchQty := map[batchRef]decimal.Decimal{}
	for _, l := range lines {
		ref := ledger.ProductRef{Category: l.Category, ID: l.ProductID}
		if _, ok := totals[ref]; !ok {
			order = append(order, ref)
		}
		totals[ref] = totals[ref].Add(l.Quantity)
		key := batchRef{product: ref, date: l.BatchDate, price: l.UnitPrice.String()}
		if _, ok := batchQty[key]; !ok {
			batchOrder = append(batchOrder, key)
		}
		batchQty[key] = batchQty[key].Add(l.Quantity)
	}
	for _, ref := range order {
		a, err := s.stocks.CheckAvailability(ctx, warehouseID, ref, totals[ref])
		if err != nil {
			return err
		}
		if !a.Available {
			return &InsufficientStockError{WarehouseID: warehouseID, Product: ref, Available: a.CurrentStock, Requested: a.Requested}
		}
	}

	stocks, err := s.snapshot(ctx, warehouseID, order)
	if err != nil {
		return err
	}
	byProduct := make(map[ledger.ProductRef]stock.Stock, len(order))
	for i, ref := range order {
		byProduct[ref] = stocks[i]
	}
	for _, key := range batchOrder {
		left := decimal.Zero
		for _, b := range byProduct[key.product].Batches {
			if b.BatchDate == key.date && b.UnitPrice.String() == key.price {
				left = left.Add(b.Quantity)
			}
		}
		if left.LessThan(batchQty[key]) {
			return &InsufficientStockError{
				WarehouseID: warehouseID,
				Product:     key.product,
				BatchDate:   key.date,
				Available:   left,
				Requested:   batchQty[key],
			}
		}
	}
	return nil
}

// PostTransfer moves stock to another warehouse. The destination receives
// transfer lines dated on the transfer; the source gets a transfer stock-out
// that keeps the original batch dates.
func (s *Service) PostTransfer(ctx context.Context, input TransferInput) (Posting, error) {
	if err := s.validate(input); err != nil {
		return Posting{}, err
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return Posting{}, ErrSameWarehouse
	}
	for _, id := range []int64{input.FromWarehouseID, input.ToWarehouseID} {
		if err := s.requireWarehouse(ctx, id); err != nil {
			return Posting{}, err
		}
	}
	posting := Posting{Document: DocumentTransfer, WarehouseID: input.FromWarehouseID, Reference: reference(input.Reference)}
	locks := []int64{input.FromWarehouseID, input.ToWarehouseID}

	err := s.post(ctx, input.IdempotencyKey, DocumentTransfer, locks, func(ctx context.Context) error {
		allocs, err := s.allocate(ctx, input.FromWarehouseID, input.Lines)
		if err != nil {
			return err
		}
		var trLines []ledger.TransferLine
		var outLines []ledger.StockOutLine
		for i, l := range input.Lines {
			for _, a := range allocs[i] {
				trLines = append(trLines, ledger.TransferLine{
					Category:  l.Category,
					ProductID: l.ProductID,
					Quantity:  a.Quantity,
					UnitPrice: a.UnitPrice,
					BatchDate: input.TransferDate,
				})
				outLines = append(outLines, ledger.StockOutLine{
					Category:  l.Category,
					ProductID: l.ProductID,
					Quantity:  a.Quantity,
					UnitPrice: a.UnitPrice,
					BatchDate: a.BatchDate,
				})
			}
		}

		sagaID, err := s.apply(ctx, "post_transfer", func(w ledger.Writer, sg *saga.Saga) {
			sg.Step("transfer", func(ctx context.Context) error {
				id, err := w.CreateTransfer(ctx, ledger.Transfer{
					FromWarehouseID: input.FromWarehouseID,
					ToWarehouseID:   input.ToWarehouseID,
					TransferDate:    input.TransferDate,
					Note:            input.Note,
					Reference:       posting.Reference,
				})
				posting.ID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteTransfer(ctx, posting.ID)
			})
			sg.Step("transfer_lines", func(ctx context.Context) error {
				return w.CreateTransferLines(ctx, posting.ID, trLines)
			}, func(ctx context.Context) error {
				return w.DeleteTransferLines(ctx, posting.ID)
			})
			sg.Step("stock_out", func(ctx context.Context) error {
				id, err := w.CreateStockOut(ctx, ledger.StockOut{
					WarehouseID: input.FromWarehouseID,
					Reason:      ledger.ReasonTransfer,
					OutDate:     input.TransferDate,
					TransferID:  posting.ID,
					Note:        input.Note,
					Reference:   posting.Reference,
				})
				posting.StockOutID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteStockOut(ctx, posting.StockOutID)
			})
			sg.Step("stock_out_lines", func(ctx context.Context) error {
				return w.CreateStockOutLines(ctx, posting.StockOutID, outLines)
			}, func(ctx context.Context) error {
				return w.DeleteStockOutLines(ctx, posting.StockOutID)
			})
		})
		posting.SagaID = sagaID
		return err
	})
	if err != nil {
		return Posting{}, fmt.Errorf("inventory: post transfer: %w", err)
	}
	s.record(ctx, posting, map[string]any{"to_warehouse_id": input.ToWarehouseID, "stock_out_id": posting.StockOutID})
	return posting, nil
}

// PostStockOut records consumption or another exit from one warehouse.
func (s *Service) PostStockOut(ctx context.Context, input StockOutInput) (Posting, error) {
	if err := s.validate(input); err != nil {
		return Posting{}, err
	}
	if err := s.requireWarehouse(ctx, input.WarehouseID); err != nil {
		return Posting{}, err
	}
	posting := Posting{Document: DocumentStockOut, WarehouseID: input.WarehouseID, Reference: reference(input.Reference)}

	err := s.post(ctx, input.IdempotencyKey, DocumentStockOut, []int64{input.WarehouseID}, func(ctx context.Context) error {
		allocs, err := s.allocate(ctx, input.WarehouseID, input.Lines)
		if err != nil {
			return err
		}
		var outLines []ledger.StockOutLine
		for i, l := range input.Lines {
			for _, a := range allocs[i] {
				outLines = append(outLines, ledger.StockOutLine{
					Category:  l.Category,
					ProductID: l.ProductID,
					Quantity:  a.Quantity,
					UnitPrice: a.UnitPrice,
					BatchDate: a.BatchDate,
				})
			}
		}

		sagaID, err := s.apply(ctx, "post_stock_out", func(w ledger.Writer, sg *saga.Saga) {
			sg.Step("stock_out", func(ctx context.Context) error {
				id, err := w.CreateStockOut(ctx, ledger.StockOut{
					WarehouseID: input.WarehouseID,
					Reason:      input.Reason,
					OutDate:     input.OutDate,
					Note:        input.Note,
					Reference:   posting.Reference,
				})
				posting.ID = id
				posting.StockOutID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteStockOut(ctx, posting.ID)
			})
			sg.Step("stock_out_lines", func(ctx context.Context) error {
				return w.CreateStockOutLines(ctx, posting.ID, outLines)
			}, func(ctx context.Context) error {
				return w.DeleteStockOutLines(ctx, posting.ID)
			})
		})
		posting.SagaID = sagaID
		return err
	})
	if err != nil {
		return Posting{}, fmt.Errorf("inventory: post stock-out: %w", err)
	}
	s.record(ctx, posting, map[string]any{"reason": string(input.Reason)})
	return posting, nil
}

// PostInventoryCount compares counted quantities with computed stock, records
// the differences and writes positive losses off through an inventory_loss
// stock-out drawn from the oldest batches. Surpluses are recorded only.
func (s *Service) PostInventoryCount(ctx context.Context, input CountInput) (CountResult, error) {
	if err := s.validate(input); err != nil {
		return CountResult{}, err
	}
	seen := map[ledger.ProductRef]bool{}
	for _, l := range input.Lines {
		if seen[l.Product()] {
			return CountResult{}, fmt.Errorf("%w: product %s counted twice", ErrInvalidInput, l.Product())
		}
		seen[l.Product()] = true
	}
	if err := s.requireWarehouse(ctx, input.WarehouseID); err != nil {
		return CountResult{}, err
	}
	result := CountResult{Posting: Posting{Document: DocumentInventoryCount, WarehouseID: input.WarehouseID, Reference: reference(input.Reference)}}

	err := s.post(ctx, input.IdempotencyKey, DocumentInventoryCount, []int64{input.WarehouseID}, func(ctx context.Context) error {
		refs := make([]ledger.ProductRef, 0, len(input.Lines))
		for _, l := range input.Lines {
			refs = append(refs, l.Product())
		}
		stocks, err := s.snapshot(ctx, input.WarehouseID, refs)
		if err != nil {
			return err
		}

		countLines := make([]ledger.InventoryCountLine, 0, len(input.Lines))
		var lossLines []ledger.StockOutLine
		totalLoss := decimal.Zero
		for i, l := range input.Lines {
			st := stocks[i]
			loss := st.TotalQuantity.Sub(l.RealQty)
			amount := decimal.Zero
			if !st.TotalQuantity.IsZero() {
				amount = loss.Mul(st.TotalValue).Div(st.TotalQuantity)
			}
			countLines = append(countLines, ledger.InventoryCountLine{
				Category:   l.Category,
				ProductID:  l.ProductID,
				SystemQty:  st.TotalQuantity,
				RealQty:    l.RealQty,
				LossQty:    loss,
				LossAmount: amount,
			})
			if !loss.IsPositive() {
				continue
			}
			totalLoss = totalLoss.Add(amount)
			allocs, err := newBatchPool(st).take(loss, "", nil)
			if err != nil {
				return err
			}
			for _, a := range allocs {
				lossLines = append(lossLines, ledger.StockOutLine{
					Category:  l.Category,
					ProductID: l.ProductID,
					Quantity:  a.Quantity,
					UnitPrice: a.UnitPrice,
					BatchDate: a.BatchDate,
				})
			}
		}

		sagaID, err := s.apply(ctx, "post_inventory_count", func(w ledger.Writer, sg *saga.Saga) {
			sg.Step("inventory_count", func(ctx context.Context) error {
				id, err := w.CreateInventoryCount(ctx, ledger.InventoryCount{
					WarehouseID: input.WarehouseID,
					CountDate:   input.CountDate,
					TotalLoss:   totalLoss,
					Note:        input.Note,
					Reference:   result.Reference,
				})
				result.ID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteInventoryCount(ctx, result.ID)
			})
			sg.Step("inventory_count_lines", func(ctx context.Context) error {
				return w.CreateInventoryCountLines(ctx, result.ID, countLines)
			}, func(ctx context.Context) error {
				return w.DeleteInventoryCountLines(ctx, result.ID)
			})
			if len(lossLines) == 0 {
				return
			}
			sg.Step("loss_stock_out", func(ctx context.Context) error {
				id, err := w.CreateStockOut(ctx, ledger.StockOut{
					WarehouseID: input.WarehouseID,
					Reason:      ledger.ReasonInventoryLoss,
					OutDate:     input.CountDate,
					CountID:     result.ID,
					Note:        input.Note,
					Reference:   result.Reference,
				})
				result.StockOutID = id
				return err
			}, func(ctx context.Context) error {
				return w.DeleteStockOut(ctx, result.StockOutID)
			})
			sg.Step("loss_stock_out_lines", func(ctx context.Context) error {
				return w.CreateStockOutLines(ctx, result.StockOutID, lossLines)
			}, func(ctx context.Context) error {
				return w.DeleteStockOutLines(ctx, result.StockOutID)
			})
		})
		result.SagaID = sagaID
		result.TotalLoss = totalLoss
		for i := range countLines {
			countLines[i].CountID = result.ID
		}
		result.Lines = countLines
		return err
	})
	if err != nil {
		return CountResult{}, fmt.Errorf("inventory: post inventory count: %w", err)
	}
	s.record(ctx, result.Posting, map[string]any{"total_loss": result.TotalLoss.String(), "stock_out_id": result.StockOutID})
	return result, nil
}

// snapshot computes the stock of every product, in input order.
func (s *Service) snapshot(ctx context.Context, warehouseID int64, refs []ledger.ProductRef) ([]stock.Stock, error) {
	out := make([]stock.Stock, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			st, err := s.stocks.ComputeStock(gctx, warehouseID, ref)
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
	return out, nil
}

// allocate gates the requested totals against stock and then draws every line
// from the warehouse's batches. The result is indexed like lines.
func (s *Service) allocate(ctx context.Context, warehouseID int64, lines []IssueLine) ([][]Allocation, error) {
	order, totals := requested(lines)
	stocks, err := s.snapshot(ctx, warehouseID, order)
	if err != nil {
		return nil, err
	}
	pools := make(map[ledger.ProductRef]*batchPool, len(order))
	for i, ref := range order {
		st := stocks[i]
		if st.TotalQuantity.LessThan(totals[ref]) {
			return nil, &InsufficientStockError{WarehouseID: warehouseID, Product: ref, Available: st.TotalQuantity, Requested: totals[ref]}
		}
		pools[ref] = newBatchPool(st)
	}
	// Explicit batches draw first so oldest-first lines cannot starve them.
	idx := make([]int, len(lines))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		ea, eb := lines[a].BatchDate != "", lines[b].BatchDate != ""
		switch {
		case ea == eb:
			return 0
		case ea:
			return -1
		default:
			return 1
		}
	})
	out := make([][]Allocation, len(lines))
	for _, i := range idx {
		l := lines[i]
		allocs, err := pools[l.Product()].take(l.Quantity, l.BatchDate, l.UnitPrice)
		if err != nil {
			return nil, err
		}
		out[i] = allocs
	}
	return out, nil
}

func (s *Service) requireWarehouse(ctx context.Context, id int64) error {
	if s.warehouses == nil {
		return nil
	}
	if _, err := s.warehouses.GetWarehouse(ctx, id); err != nil {
		return fmt.Errorf("inventory: warehouse %d: %w", id, err)
	}
	return nil
}

// post claims the idempotency key and runs fn under the warehouse locks,
// taken in ascending id order. A failed posting releases its key.
func (s *Service) post(ctx context.Context, key string, kind DocumentKind, warehouseIDs []int64, fn func(context.Context) error) error {
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "inventory."+string(kind)); err != nil {
			return err
		}
	}
	ids := slices.Clone(warehouseIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	run := fn
	for i := len(ids) - 1; i >= 0; i-- {
		inner, lockKey := run, shared.WarehouseLockKey(ids[i])
		run = func(ctx context.Context) error {
			return s.locker.WithLock(ctx, lockKey, inner)
		}
	}
	err := run(ctx)
	if err != nil && key != "" && s.idempotency != nil {
		if derr := s.idempotency.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
		}
	}
	return err
}

// apply runs the saga built by build. Transactional stores run it atomically
// inside one transaction; others compensate completed steps on failure.
func (s *Service) apply(ctx context.Context, name string, build func(ledger.Writer, *saga.Saga)) (string, error) {
	if s.tx != nil {
		var sagaID string
		err := s.tx.WithTx(ctx, func(ctx context.Context, w ledger.Writer) error {
			sg := saga.New(name, s.logger).Atomic()
			build(w, sg)
			sagaID = sg.ID()
			return sg.Run(ctx)
		})
		return sagaID, err
	}
	sg := saga.New(name, s.logger)
	build(s.store, sg)
	return sg.ID(), sg.Run(ctx)
}

func (s *Service) record(ctx context.Context, p Posting, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := auditRecord(p, meta)
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record", slog.String("document", string(p.Document)), slog.Int64("id", p.ID), slog.Any("error", err))
	}
}

func reference(ref string) string {
	if ref != "" {
		return ref
	}
	return uuid.NewString()
}

// IsConflict reports whether err means the posting may succeed when retried
// later or was already applied.
func IsConflict(err error) bool {
	return errors.Is(err, shared.ErrIdempotencyConflict) || errors.Is(err, shared.ErrLockBusy)
}
