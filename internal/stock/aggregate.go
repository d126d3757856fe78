package stock

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

// Policy selects how a per-date decrease total is netted against the batches
// received on that date.
type Policy string

const (
	// DecreasePerBucket subtracts the full per-date decrease from every batch
	// sharing the date. With several prices on one date the decrease is
	// counted once per batch.
	DecreasePerBucket Policy = "per_bucket"
	// DecreaseApportion consumes the per-date decrease once, walking the
	// same-date batches from the cheapest upwards.
	DecreaseApportion Policy = "apportion"
)

// ParsePolicy validates raw configuration input. Empty input selects
// DecreasePerBucket.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case "", DecreasePerBucket:
		return DecreasePerBucket, nil
	case DecreaseApportion:
		return DecreaseApportion, nil
	}
	return "", fmt.Errorf("stock: unknown decrease policy %q", raw)
}

// Ledger is the raw event set for one (warehouse, product) pair as fetched
// from the store.
type Ledger struct {
	// Invoices are the active invoices of the warehouse.
	Invoices     []ledger.Invoice
	InvoiceLines []ledger.InvoiceLine
	// TransferInLines are lines of transfers whose destination is the warehouse.
	TransferInLines []ledger.TransferLine
	// TransfersOut and TransferOutLines cover transfers leaving the warehouse.
	TransfersOut     []ledger.Transfer
	TransferOutLines []ledger.TransferLine
	StockOuts        []ledger.StockOut
	StockOutLines    []ledger.StockOutLine
}

// Batch is a remaining (batch_date, unit_price) bucket.
type Batch struct {
	BatchDate  string          `json:"batch_date"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Supplier   string          `json:"supplier,omitempty"`
}

// Stock is the derived on-hand position of one product at one warehouse.
type Stock struct {
	WarehouseID   int64             `json:"warehouse_id"`
	Product       ledger.ProductRef `json:"product"`
	TotalQuantity decimal.Decimal   `json:"total_quantity"`
	TotalValue    decimal.Decimal   `json:"total_value"`
	// RawQuantity is the unclamped signed sum of every counted event.
	RawQuantity decimal.Decimal `json:"raw_quantity"`
	Batches     []Batch         `json:"batches"`
}

type batchKey struct {
	date  string
	price string
}

type bucket struct {
	date      string
	price     decimal.Decimal
	qty       decimal.Decimal
	invoiceID int64
	supplier  string
}

// Aggregate derives stock from a ledger snapshot. It is pure: the same
// snapshot always yields the same Stock.
//
// Stock-outs mirroring an effect already visible elsewhere are not counted:
// transfer-out lines are ignored for transfers that carry a linked transfer
// stock-out at this warehouse, and invoice_return stock-outs are ignored once
// their invoice has left the active set.
func Aggregate(l Ledger, policy Policy) Stock {
	suppliers := make(map[int64]string, len(l.Invoices))
	for _, inv := range l.Invoices {
		suppliers[inv.ID] = inv.Supplier
	}

	buckets := make(map[batchKey]*bucket)
	raw := decimal.Zero
	increase := func(date string, price, qty decimal.Decimal, invoiceID int64) {
		raw = raw.Add(qty)
		key := batchKey{date: date, price: price.String()}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{date: date, price: price, qty: decimal.Zero}
			buckets[key] = b
		}
		b.qty = b.qty.Add(qty)
		if invoiceID != 0 && (b.invoiceID == 0 || invoiceID < b.invoiceID) {
			b.invoiceID = invoiceID
			b.supplier = suppliers[invoiceID]
		}
	}

	for _, line := range l.InvoiceLines {
		if _, active := suppliers[line.InvoiceID]; !active {
			continue
		}
		increase(line.BatchDate, line.UnitPrice, line.Quantity, line.InvoiceID)
	}
	for _, line := range l.TransferInLines {
		increase(line.BatchDate, line.UnitPrice, line.Quantity, 0)
	}

	mirrored := make(map[int64]bool)
	skipped := make(map[int64]bool)
	for _, so := range l.StockOuts {
		switch {
		case so.Reason == ledger.ReasonTransfer && so.TransferID != 0:
			mirrored[so.TransferID] = true
		case so.Reason == ledger.ReasonInvoiceReturn && so.InvoiceID != 0:
			if _, active := suppliers[so.InvoiceID]; !active {
				skipped[so.ID] = true
			}
		}
	}

	decreases := make(map[string]decimal.Decimal)
	decrease := func(date string, qty decimal.Decimal) {
		raw = raw.Sub(qty)
		decreases[date] = decreases[date].Add(qty)
	}
	for _, line := range l.StockOutLines {
		if skipped[line.StockOutID] {
			continue
		}
		decrease(line.BatchDate, line.Quantity)
	}
	for _, line := range l.TransferOutLines {
		if mirrored[line.TransferID] {
			continue
		}
		decrease(line.BatchDate, line.Quantity)
	}

	net := netBuckets(buckets, decreases, policy)

	out := Stock{TotalQuantity: decimal.Zero, TotalValue: decimal.Zero, RawQuantity: raw, Batches: []Batch{}}
	for _, n := range net {
		if !n.qty.IsPositive() {
			continue
		}
		out.Batches = append(out.Batches, Batch{
			BatchDate:  n.date,
			Quantity:   n.qty,
			UnitPrice:  n.price,
			TotalPrice: n.qty.Mul(n.price),
			Supplier:   n.supplier,
		})
	}
	// Totals are summed in output order so repeated calls are bit-identical.
	sortBatches(out.Batches)
	for _, b := range out.Batches {
		out.TotalQuantity = out.TotalQuantity.Add(b.Quantity)
		out.TotalValue = out.TotalValue.Add(b.TotalPrice)
	}
	return out
}

func netBuckets(buckets map[batchKey]*bucket, decreases map[string]decimal.Decimal, policy Policy) []bucket {
	byDate := make(map[string][]*bucket)
	for _, b := range buckets {
		byDate[b.date] = append(byDate[b.date], b)
	}

	out := make([]bucket, 0, len(buckets))
	for date, group := range byDate {
		sort.Slice(group, func(i, j int) bool { return group[i].price.LessThan(group[j].price) })
		remaining := decreases[date]
		for _, b := range group {
			n := *b
			switch policy {
			case DecreaseApportion:
				take := decimal.Min(n.qty, remaining)
				if take.IsNegative() {
					take = decimal.Zero
				}
				n.qty = n.qty.Sub(take)
				remaining = remaining.Sub(take)
			default:
				n.qty = n.qty.Sub(remaining)
			}
			out = append(out, n)
		}
	}
	return out
}

func sortBatches(batches []Batch) {
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].BatchDate != batches[j].BatchDate {
			return batches[i].BatchDate > batches[j].BatchDate
		}
		return batches[i].UnitPrice.GreaterThan(batches[j].UnitPrice)
	})
}
