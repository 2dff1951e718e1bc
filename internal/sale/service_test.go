package sale

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"scheletro/backend/internal/cache"
	"scheletro/backend/internal/config"
	"scheletro/backend/internal/domain"
	"scheletro/backend/internal/ledger"
	"scheletro/backend/internal/schema"
	"scheletro/backend/internal/table"
	"scheletro/backend/internal/table/memory"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService() (*Service, *memory.Store) {
	store := memory.New()
	store.Seed(table.Inventory, [][]string{
		schema.InventoryColumns,
		{"HD-001", "Drop1", "Hoodie", "Negro", "M", "5", "10", "12.00", "25.00", "TRUE"},
		{"HD-002", "Drop1", "Hoodie", "Gris", "L", "1", "0", "12.00", "30.00", "TRUE"},
		{"HD-OLD", "Drop0", "Hoodie", "Rojo", "S", "2", "2", "10.00", "20.00", "FALSE"},
	})

	log := testLogger()
	tables := cache.New(store, cache.NewMemoryBackend(), cache.DefaultTTLs(), log)
	params := config.ParseParams(nil, log)
	return New(tables, ledger.New(tables, log), params, log), store
}

func saleID(n int) string {
	return fmt.Sprintf("V-%d-%04d", time.Now().Year(), n)
}

func validRequest() domain.SaleRequest {
	return domain.SaleRequest{
		Client:          "Maria",
		PaymentMethod:   domain.PaymentCash,
		Warehouse:       "house",
		Lines:           []domain.SaleLineRequest{{SKU: "HD-001", Quantity: 2}},
		ShippingCharged: decimal.RequireFromString("4.00"),
		LogisticsCost:   decimal.RequireFromString("3.00"),
	}
}

func TestCommitSaleWritesAllThreeTables(t *testing.T) {
	svc, store := newTestService()

	resp, err := svc.CommitSale(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if resp.Header.SaleID != saleID(1) {
		t.Fatalf("expected first sale id %s, got %s", saleID(1), resp.Header.SaleID)
	}
	if resp.Header.Status != domain.SaleStatusCompleted {
		t.Fatalf("expected status %s, got %s", domain.SaleStatusCompleted, resp.Header.Status)
	}
	if len(resp.Lines) != 1 || resp.Lines[0].Line != 1 {
		t.Fatalf("unexpected lines: %+v", resp.Lines)
	}

	for _, name := range []string{table.Sales, table.SaleDetail, table.Inventory} {
		if got := store.WriteCount(name); got != 1 {
			t.Fatalf("expected exactly one write to %s, got %d", name, got)
		}
	}

	rows, _ := store.Read(context.Background(), table.Inventory)
	records := schema.DecodeInventory(rows)
	if records[0].StockHouse != 3 {
		t.Fatalf("expected stock decremented to 3, got %d", records[0].StockHouse)
	}
}

func TestCommitSaleTotals(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.CommitSale(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	h := resp.Header
	if !h.LinesTotal.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("expected lines total 50.00, got %s", h.LinesTotal)
	}
	if !h.TotalCharged.Equal(h.LinesTotal.Add(h.ShippingCharged)) {
		t.Fatalf("total %s is not lines+shipping", h.TotalCharged)
	}
	want := h.TotalCharged.Sub(h.LogisticsCost).Sub(h.CommissionAmount)
	if !h.NetToReceive.Equal(want) {
		t.Fatalf("net %s does not equal total-logistics-commission %s", h.NetToReceive, want)
	}
}

func TestCommitSaleAllocatesSequentialIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.CommitSale(ctx, validRequest())
	if err != nil {
		t.Fatalf("first commit failed: %v", err)
	}
	second, err := svc.CommitSale(ctx, validRequest())
	if err != nil {
		t.Fatalf("second commit failed: %v", err)
	}
	if first.Header.SaleID != saleID(1) || second.Header.SaleID != saleID(2) {
		t.Fatalf("expected sequential ids, got %s then %s", first.Header.SaleID, second.Header.SaleID)
	}
}

func TestCommitSaleInsufficientStockWritesNothing(t *testing.T) {
	svc, store := newTestService()

	req := validRequest()
	req.Lines = []domain.SaleLineRequest{{SKU: "HD-002", Quantity: 2}}
	_, err := svc.CommitSale(context.Background(), req)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	for _, name := range []string{table.Sales, table.SaleDetail, table.Inventory} {
		if got := store.WriteCount(name); got != 0 {
			t.Fatalf("expected no writes to %s on abort, got %d", name, got)
		}
	}
}

func TestCommitSaleValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := validRequest()
	req.Lines = nil
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected empty cart rejected, got %v", err)
	}

	req = validRequest()
	req.Warehouse = "attic"
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown warehouse rejected, got %v", err)
	}

	req = validRequest()
	req.PaymentMethod = ""
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing payment method rejected, got %v", err)
	}

	req = validRequest()
	req.Lines = []domain.SaleLineRequest{{SKU: "HD-001", Quantity: 1, UnitDiscount: decimal.RequireFromString("25.00")}}
	req.ShippingCharged = decimal.Zero
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected zero-total sale rejected, got %v", err)
	}
}

func TestCommitSaleRequiresClient(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	req := validRequest()
	req.Client = ""
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected empty client rejected, got %v", err)
	}

	req = validRequest()
	req.Client = "   "
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected blank client rejected, got %v", err)
	}

	if got := store.WriteCount(table.Sales); got != 0 {
		t.Fatalf("expected no header writes for rejected client, got %d", got)
	}
}

func TestQuickSaleRequiresClient(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.QuickSale(context.Background(), domain.QuickSaleRequest{
		SKU:           "HD-001",
		Client:        "  ",
		PaymentMethod: domain.PaymentCash,
		Warehouse:     "casa",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected blank client rejected, got %v", err)
	}
	if got := store.WriteCount(table.Sales); got != 0 {
		t.Fatalf("expected no header writes, got %d", got)
	}
}

func TestCommitSaleCODOverride(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	override := decimal.RequireFromString("0.05")
	req := validRequest()
	req.PaymentMethod = domain.PaymentCashOnDelivery
	req.CODRateOverride = &override
	resp, err := svc.CommitSale(ctx, req)
	if err != nil {
		t.Fatalf("cod commit failed: %v", err)
	}
	if !resp.Header.CommissionPct.Equal(override) {
		t.Fatalf("expected override pct %s, got %s", override, resp.Header.CommissionPct)
	}

	req = validRequest()
	req.PaymentMethod = domain.PaymentCash
	req.CODRateOverride = &override
	if _, err := svc.CommitSale(ctx, req); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected override on non-cod rejected, got %v", err)
	}
}

func TestCommitSalePartialAfterHeaderWrite(t *testing.T) {
	svc, store := newTestService()
	store.FailWrites(table.SaleDetail, table.ErrUnavailable)

	_, err := svc.CommitSale(context.Background(), validRequest())

	var partial *PartialCommitError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialCommitError, got %v", err)
	}
	if partial.Stage != StageDetail {
		t.Fatalf("expected failure at %s, got %s", StageDetail, partial.Stage)
	}
	if partial.SaleID != saleID(1) {
		t.Fatalf("expected sale id %s in error, got %s", saleID(1), partial.SaleID)
	}
	if !errors.Is(err, table.ErrUnavailable) {
		t.Fatalf("expected cause to unwrap to ErrUnavailable, got %v", err)
	}

	// The header survives; nothing rolls it back.
	if got := store.WriteCount(table.Sales); got != 1 {
		t.Fatalf("expected header write kept, got %d writes", got)
	}
	if got := store.WriteCount(table.Inventory); got != 0 {
		t.Fatalf("expected stock untouched, got %d writes", got)
	}
}

func TestCommitSalePartialAtStockStage(t *testing.T) {
	svc, store := newTestService()
	store.FailWrites(table.Inventory, table.ErrUnavailable)

	_, err := svc.CommitSale(context.Background(), validRequest())

	var partial *PartialCommitError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialCommitError, got %v", err)
	}
	if partial.Stage != StageStock {
		t.Fatalf("expected failure at %s, got %s", StageStock, partial.Stage)
	}
	if store.WriteCount(table.Sales) != 1 || store.WriteCount(table.SaleDetail) != 1 {
		t.Fatalf("expected header and detail writes kept")
	}
}

func TestQuickSale(t *testing.T) {
	svc, store := newTestService()

	resp, err := svc.QuickSale(context.Background(), domain.QuickSaleRequest{
		SKU:             "HD-001",
		Client:          "Maria",
		PaymentMethod:   domain.PaymentCard,
		Warehouse:       "casa",
		Discount:        decimal.RequireFromString("5.00"),
		ShippingCharged: decimal.RequireFromString("3.00"),
		LogisticsCost:   decimal.RequireFromString("2.00"),
	})
	if err != nil {
		t.Fatalf("quick sale failed: %v", err)
	}

	if resp.Header.SaleID != saleID(1) {
		t.Fatalf("expected %s, got %s", saleID(1), resp.Header.SaleID)
	}
	if resp.Line.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", resp.Line.Quantity)
	}
	// total 23.00, commission 0.53, margin 23 - (12 + 2 + 0.53)
	if !resp.Header.TotalCharged.Equal(decimal.RequireFromString("23.00")) {
		t.Fatalf("expected total 23.00, got %s", resp.Header.TotalCharged)
	}
	if !resp.NetMargin.Equal(decimal.RequireFromString("8.47")) {
		t.Fatalf("expected margin 8.47, got %s", resp.NetMargin)
	}

	rows, _ := store.Read(context.Background(), table.Inventory)
	records := schema.DecodeInventory(rows)
	if records[0].StockHouse != 4 {
		t.Fatalf("expected stock decremented to 4, got %d", records[0].StockHouse)
	}
}

func TestQuickSaleDeepDiscountKeepsTotalsConsistent(t *testing.T) {
	svc, store := newTestService()

	// A discount larger than the list price eats into shipping. The
	// persisted header and line must still satisfy
	// total = line subtotal + shipping.
	resp, err := svc.QuickSale(context.Background(), domain.QuickSaleRequest{
		SKU:             "HD-001",
		Client:          "Maria",
		PaymentMethod:   domain.PaymentCash,
		Warehouse:       "casa",
		Discount:        decimal.RequireFromString("27.00"),
		ShippingCharged: decimal.RequireFromString("5.00"),
	})
	if err != nil {
		t.Fatalf("quick sale failed: %v", err)
	}

	if !resp.Header.TotalCharged.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("expected total 3.00, got %s", resp.Header.TotalCharged)
	}
	if !resp.Line.LineSubtotal.Equal(decimal.Zero) {
		t.Fatalf("expected line subtotal 0, got %s", resp.Line.LineSubtotal)
	}
	if !resp.Line.UnitDiscount.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("expected line discount capped at 25.00, got %s", resp.Line.UnitDiscount)
	}
	if !resp.Header.ShippingCharged.Equal(decimal.RequireFromString("3.00")) {
		t.Fatalf("expected shipping reduced to 3.00, got %s", resp.Header.ShippingCharged)
	}

	ctx := context.Background()
	headerRows, _ := store.Read(ctx, table.Sales)
	headers := schema.DecodeSaleHeaders(headerRows)
	detailRows, _ := store.Read(ctx, table.SaleDetail)
	details := schema.DecodeSaleDetails(detailRows)
	if len(headers) != 1 || len(details) != 1 {
		t.Fatalf("expected one header and one line, got %d and %d", len(headers), len(details))
	}
	sum := details[0].LineSubtotal.Add(headers[0].ShippingCharged)
	if !headers[0].TotalCharged.Equal(sum) {
		t.Fatalf("header total %s != line subtotal + shipping %s", headers[0].TotalCharged, sum)
	}
}

func TestQuickSaleOutOfStock(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.QuickSale(context.Background(), domain.QuickSaleRequest{
		SKU:           "HD-002",
		Client:        "Maria",
		PaymentMethod: domain.PaymentCash,
		Warehouse:     "bodega",
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := store.WriteCount(table.Sales); got != 0 {
		t.Fatalf("expected no header write, got %d", got)
	}
}

func TestRecordExpense(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	first, err := svc.RecordExpense(ctx, domain.ExpenseRequest{
		Category: "Envio",
		Amount:   decimal.RequireFromString("12.345"),
	})
	if err != nil {
		t.Fatalf("record expense failed: %v", err)
	}
	want := fmt.Sprintf("G-%d-0001", time.Now().Year())
	if first.ExpenseID != want {
		t.Fatalf("expected %s, got %s", want, first.ExpenseID)
	}
	if !first.Amount.Equal(decimal.RequireFromString("12.35")) {
		t.Fatalf("expected rounded amount 12.35, got %s", first.Amount)
	}

	second, err := svc.RecordExpense(ctx, domain.ExpenseRequest{
		Category: "Empaque",
		Amount:   decimal.RequireFromString("3.00"),
	})
	if err != nil {
		t.Fatalf("second expense failed: %v", err)
	}
	if second.ExpenseID != fmt.Sprintf("G-%d-0002", time.Now().Year()) {
		t.Fatalf("expected sequential expense id, got %s", second.ExpenseID)
	}

	rows, _ := store.Read(ctx, table.Expenses)
	if got := len(schema.DecodeExpenses(rows)); got != 2 {
		t.Fatalf("expected 2 persisted expenses, got %d", got)
	}
}

func TestRecordExpenseValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.RecordExpense(ctx, domain.ExpenseRequest{Amount: decimal.RequireFromString("5")}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing category rejected, got %v", err)
	}
	if _, err := svc.RecordExpense(ctx, domain.ExpenseRequest{Category: "Envio"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected zero amount rejected, got %v", err)
	}
}

func TestListInventoryFiltersAndFlags(t *testing.T) {
	svc, _ := newTestService()

	resp, err := svc.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if resp.Degraded {
		t.Fatalf("unexpected degraded flag")
	}
	// HD-OLD is inactive and must be filtered out.
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 active items, got %d", len(resp.Items))
	}

	var low domain.InventoryListItem
	for _, item := range resp.Items {
		if item.SKU == "HD-002" {
			low = item
		}
	}
	if low.StatusHouse != domain.StockStatusLow {
		t.Fatalf("expected house status %s, got %s", domain.StockStatusLow, low.StatusHouse)
	}
	if low.StatusWarehouse != domain.StockStatusOut {
		t.Fatalf("expected warehouse status %s, got %s", domain.StockStatusOut, low.StatusWarehouse)
	}
}

func TestListInventoryDegradesOnRateLimit(t *testing.T) {
	svc, store := newTestService()
	store.FailReads(table.Inventory, table.ErrRateLimited)

	resp, err := svc.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("expected degraded response, got error %v", err)
	}
	if !resp.Degraded || len(resp.Items) != 0 {
		t.Fatalf("expected empty degraded response, got %+v", resp)
	}
}

func TestListSalesAndExpenses(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.CommitSale(ctx, validRequest()); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, err := svc.RecordExpense(ctx, domain.ExpenseRequest{Category: "Envio", Amount: decimal.RequireFromString("2")}); err != nil {
		t.Fatalf("expense failed: %v", err)
	}

	sales, err := svc.ListSales(ctx)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales.Items) != 1 || sales.Items[0].SaleID != saleID(1) {
		t.Fatalf("unexpected sales list: %+v", sales)
	}

	expenses, err := svc.ListExpenses(ctx)
	if err != nil {
		t.Fatalf("list expenses failed: %v", err)
	}
	if len(expenses.Items) != 1 {
		t.Fatalf("unexpected expenses list: %+v", expenses)
	}
}

func TestServiceTransfer(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	resp, err := svc.Transfer(ctx, domain.TransferRequest{
		SKU: "HD-001", From: "bodega", To: "casa", Quantity: 4,
	})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if resp.StockHouse != 9 || resp.StockWarehouse != 6 {
		t.Fatalf("unexpected stock after transfer: %+v", resp)
	}

	if _, err := svc.Transfer(ctx, domain.TransferRequest{SKU: "HD-001", From: "nowhere", To: "casa", Quantity: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected unknown warehouse rejected, got %v", err)
	}
	if _, err := svc.Transfer(ctx, domain.TransferRequest{From: "casa", To: "bodega", Quantity: 1}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected missing sku rejected, got %v", err)
	}
}
