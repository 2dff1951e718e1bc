// Package table defines the contract against the remote tabular store. The
// store offers whole-table reads and whole-table overwrites only: there is no
// row-level write, no compare-and-swap and no locking primitive. Everything
// above this package has to live with those semantics.
package table

import (
	"context"
	"errors"
)

// Logical table names in the backing spreadsheet.
const (
	Inventory  = "Inventario"
	Sales      = "Ventas"
	SaleDetail = "Ventas_Detalle"
	Expenses   = "Gastos"
	Config     = "Config"
)

var (
	// ErrRateLimited marks a 429-class response from the store. Reads may
	// degrade on it; writes never retry past the client's single attempt.
	ErrRateLimited = errors.New("remote store rate limited")
	// ErrUnavailable covers every other I/O failure against the store.
	ErrUnavailable = errors.New("remote store unavailable")
)

// Client is the uniform access point to the remote store. Read returns all
// rows of a table including the header row. Overwrite replaces the entire
// table contents; partial writes do not exist.
type Client interface {
	Read(ctx context.Context, name string) ([][]string, error)
	Overwrite(ctx context.Context, name string, rows [][]string) error
}
