package sale

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"scheletro/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cartRecords() []domain.InventoryRecord {
	return []domain.InventoryRecord{
		{SKU: "HD-001", Product: "Hoodie", StockHouse: 5, StockWarehouse: 10, ListPrice: dec("25.00")},
		{SKU: "HD-002", Product: "Hoodie", StockHouse: 0, StockWarehouse: 2, ListPrice: dec("30.00")},
	}
}

func TestCartAddLinePricesFromSnapshot(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseHouse)

	if err := cart.AddLine("HD-001", 2, dec("5.00")); err != nil {
		t.Fatalf("add line failed: %v", err)
	}

	lines := cart.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !lines[0].UnitPrice.Equal(dec("25.00")) {
		t.Fatalf("expected snapshot price 25.00, got %s", lines[0].UnitPrice)
	}
	if !lines[0].Subtotal.Equal(dec("40.00")) {
		t.Fatalf("expected subtotal 40.00, got %s", lines[0].Subtotal)
	}
	if !cart.LinesTotal().Equal(dec("40.00")) {
		t.Fatalf("expected total 40.00, got %s", cart.LinesTotal())
	}
}

func TestCartBoundsQuantityAcrossLines(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseHouse)

	if err := cart.AddLine("HD-001", 3, decimal.Zero); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := cart.AddLine("HD-001", 3, decimal.Zero)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock for aggregate over stock, got %v", err)
	}
}

func TestCartUsesSelectedWarehouseStock(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseMain)
	if err := cart.AddLine("HD-002", 2, decimal.Zero); err != nil {
		t.Fatalf("warehouse stock should allow 2: %v", err)
	}

	houseCart := NewCart(cartRecords(), domain.WarehouseHouse)
	err := houseCart.AddLine("HD-002", 1, decimal.Zero)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("house stock is zero, expected ErrInsufficientStock, got %v", err)
	}
}

func TestCartRejectsUnknownSKUAndBadQuantity(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseHouse)

	if err := cart.AddLine("NOPE-999", 1, decimal.Zero); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := cart.AddLine("HD-001", 0, decimal.Zero); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for zero quantity, got %v", err)
	}
}

func TestCartClampsDiscountToListPrice(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseHouse)

	if err := cart.AddLine("HD-001", 1, dec("100.00")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	line := cart.Lines()[0]
	if !line.UnitDiscount.Equal(dec("25.00")) {
		t.Fatalf("expected discount clamped to 25.00, got %s", line.UnitDiscount)
	}
	if !line.Subtotal.IsZero() {
		t.Fatalf("expected zero subtotal, got %s", line.Subtotal)
	}
}

func TestCartRemoveAndClear(t *testing.T) {
	cart := NewCart(cartRecords(), domain.WarehouseHouse)

	if err := cart.AddLine("HD-001", 1, decimal.Zero); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := cart.RemoveLine(5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad position, got %v", err)
	}
	if err := cart.RemoveLine(0); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(cart.Lines()) != 0 {
		t.Fatalf("expected empty cart after remove")
	}

	_ = cart.AddLine("HD-001", 1, decimal.Zero)
	cart.Clear()
	if !cart.LinesTotal().IsZero() {
		t.Fatalf("expected zero total after clear")
	}
}
