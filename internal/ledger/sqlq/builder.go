// Package sqlq builds the ledger and master data SQL shared by the Postgres
// and SQLite stores. Every statement is prepared (placeholders + args) and
// every decimal or date column is read back as text so both drivers scan the
// same Go types.
package sqlq

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/odyssey-erp/labstock/internal/ledger"
)

const (
	// DialectPostgres selects PostgreSQL syntax ($n placeholders, RETURNING).
	DialectPostgres = "postgres"
	// DialectSQLite selects SQLite syntax (? placeholders, last insert id).
	DialectSQLite = "sqlite3"
)

const (
	tableWarehouses    = "warehouses"
	tableProducts      = "products"
	tableInvoices      = "invoices"
	tableInvoiceLines  = "invoice_lines"
	tableTransfers     = "transfers"
	tableTransferLines = "transfer_lines"
	tableStockOuts     = "stock_outs"
	tableStockOutLines = "stock_out_lines"
	tableCounts        = "inventory_counts"
	tableCountLines    = "inventory_count_lines"
)

// Statement is a rendered SQL statement with its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Builder renders statements for one dialect.
type Builder struct {
	d         goqu.DialectWrapper
	returning bool
}

// New returns a Builder for dialect.
func New(dialect string) Builder {
	return Builder{d: goqu.Dialect(dialect), returning: dialect == DialectPostgres}
}

// Returning reports whether inserts yield the new id through a RETURNING clause.
func (b Builder) Returning() bool {
	return b.returning
}

func text(col string) exp.AliasedExpression {
	return goqu.Cast(goqu.C(col), "TEXT").As(col)
}

func optionalID(col string) exp.AliasedExpression {
	return goqu.COALESCE(goqu.C(col), 0).As(col)
}

func render(ds interface {
	ToSQL() (string, []interface{}, error)
}) (Statement, error) {
	sql, args, err := ds.ToSQL()
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql, Args: args}, nil
}

func productFilter(ids []int64, fk string, product ledger.ProductRef) goqu.Ex {
	return goqu.Ex{
		fk:           ids,
		"category":   string(product.Category),
		"product_id": product.ID,
	}
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
