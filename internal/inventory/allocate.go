package inventory

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
	"github.com/odyssey-erp/labstock/internal/stock"
)

// Allocation is a quantity drawn from one source batch.
type Allocation struct {
	BatchDate string
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// batchPool tracks what is left of one product's batches while the lines of a
// single posting draw from them, oldest first.
type batchPool struct {
	warehouseID int64
	product     ledger.ProductRef
	batches     []stock.Batch
}

func newBatchPool(st stock.Stock) *batchPool {
	batches := slices.Clone(st.Batches)
	slices.Reverse(batches)
	return &batchPool{warehouseID: st.WarehouseID, product: st.Product, batches: batches}
}

// matches selects every batch without batchDate, otherwise the batches of that
// date, narrowed to price when it is non-nil.
func (p *batchPool) matches(b stock.Batch, batchDate string, price *decimal.Decimal) bool {
	if batchDate == "" {
		return true
	}
	if b.BatchDate != batchDate {
		return false
	}
	return price == nil || b.UnitPrice.Equal(*price)
}

// take draws qty from the matching batches or fails without drawing anything.
func (p *batchPool) take(qty decimal.Decimal, batchDate string, price *decimal.Decimal) ([]Allocation, error) {
	available := decimal.Zero
	for _, b := range p.batches {
		if p.matches(b, batchDate, price) {
			available = available.Add(b.Quantity)
		}
	}
	if available.LessThan(qty) {
		return nil, &InsufficientStockError{
			WarehouseID: p.warehouseID,
			Product:     p.product,
			BatchDate:   batchDate,
			Available:   available,
			Requested:   qty,
		}
	}

	var out []Allocation
	remaining := qty
	for i := range p.batches {
		if !remaining.IsPositive() {
			break
		}
		b := &p.batches[i]
		if !b.Quantity.IsPositive() || !p.matches(*b, batchDate, price) {
			continue
		}
		q := decimal.Min(b.Quantity, remaining)
		out = append(out, Allocation{BatchDate: b.BatchDate, UnitPrice: b.UnitPrice, Quantity: q})
		b.Quantity = b.Quantity.Sub(q)
		remaining = remaining.Sub(q)
	}
	return out, nil
}

// requested sums line quantities per product, in first-seen order.
func requested(lines []IssueLine) ([]ledger.ProductRef, map[ledger.ProductRef]decimal.Decimal) {
	var order []ledger.ProductRef
	totals := map[ledger.ProductRef]decimal.Decimal{}
	for _, l := range lines {
		ref := l.Product()
		if _, ok := totals[ref]; !ok {
			order = append(order, ref)
		}
		totals[ref] = totals[ref].Add(l.Quantity)
	}
	return order, totals
}
