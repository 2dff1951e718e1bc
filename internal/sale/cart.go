package sale

import (
	"fmt"

	"github.com/shopspring/decimal"

	"scheletro/backend/internal/domain"
	"scheletro/backend/internal/finance"
)

// Cart assembles candidate sale lines against one inventory snapshot and one
// warehouse. Lines are priced from the snapshot's list price at the moment
// they are added. The cart bounds quantities by snapshot stock as a courtesy
// check only; the binding availability check happens at commit, against a
// fresh read.
type Cart struct {
	warehouse domain.Warehouse
	records   map[string]domain.InventoryRecord
	lines     []domain.CartLine
}

func NewCart(records []domain.InventoryRecord, warehouse domain.Warehouse) *Cart {
	bySKU := make(map[string]domain.InventoryRecord, len(records))
	for _, rec := range records {
		bySKU[rec.SKU] = rec
	}
	return &Cart{warehouse: warehouse, records: bySKU}
}

// AddLine appends a line for the given SKU. The quantity is checked against
// the snapshot stock net of quantities already in the cart for the same SKU.
func (c *Cart) AddLine(sku string, quantity int, unitDiscount decimal.Decimal) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1: %w", domain.ErrValidation)
	}
	rec, ok := c.records[sku]
	if !ok {
		return fmt.Errorf("sku %s: %w", sku, domain.ErrNotFound)
	}

	inCart := 0
	for _, line := range c.lines {
		if line.SKU == sku {
			inCart += line.Quantity
		}
	}
	if have := rec.Stock(c.warehouse); inCart+quantity > have {
		return fmt.Errorf("sku %s: requested %d, available %d in %s: %w",
			sku, inCart+quantity, have, c.warehouse, domain.ErrInsufficientStock)
	}

	if unitDiscount.IsNegative() {
		unitDiscount = decimal.Zero
	}
	if unitDiscount.GreaterThan(rec.ListPrice) {
		unitDiscount = rec.ListPrice
	}

	c.lines = append(c.lines, domain.CartLine{
		SKU:          rec.SKU,
		Product:      rec.Product,
		Drop:         rec.Drop,
		Color:        rec.Color,
		Size:         rec.Size,
		Quantity:     quantity,
		UnitPrice:    rec.ListPrice,
		UnitDiscount: unitDiscount,
		Subtotal:     finance.LineSubtotal(rec.ListPrice, unitDiscount, quantity),
	})
	return nil
}

// RemoveLine deletes the line at the given zero-based position.
func (c *Cart) RemoveLine(i int) error {
	if i < 0 || i >= len(c.lines) {
		return fmt.Errorf("no cart line at position %d: %w", i, domain.ErrValidation)
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Warehouse() domain.Warehouse {
	return c.warehouse
}

// LinesTotal sums the line subtotals. Each subtotal is already rounded, so
// the sum needs no further rounding.
func (c *Cart) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal)
	}
	return total
}
