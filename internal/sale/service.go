// Package sale coordinates multi-table sale commits over a store that offers
// no transactions. A commit walks a fixed sequence of stages; a failure
// before the header write aborts with nothing persisted, a failure after it
// leaves the tables partially written and the error says exactly how far the
// commit got. There is no rollback: overwriting a table again to undo a step
// risks destroying concurrent writes.
package sale

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"scheletro/backend/internal/cache"
	"scheletro/backend/internal/config"
	"scheletro/backend/internal/domain"
	"scheletro/backend/internal/finance"
	"scheletro/backend/internal/ledger"
	"scheletro/backend/internal/schema"
	"scheletro/backend/internal/seq"
	"scheletro/backend/internal/table"
	"scheletro/backend/internal/xid"
)

// Commit stages, in order. Aborting is only possible through StageValidating;
// once the header row is written the sale ID exists in the ledger and every
// later failure is partial, not aborted.
const (
	StageValidating   = "validating"
	StageAllocatingID = "allocating_id"
	StageHeader       = "writing_header"
	StageDetail       = "writing_detail"
	StageStock        = "decrementing_stock"
	StageDone         = "done"
)

// PartialCommitError reports a commit that failed after the header row was
// already persisted. The sale ID is in the ledger; the stage names the first
// step that did not complete.
type PartialCommitError struct {
	SaleID string
	Stage  string
	Err    error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("sale %s partially committed, failed at %s: %v", e.SaleID, e.Stage, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

type Service struct {
	tables *cache.TableCache
	stock  *ledger.Ledger
	rates  finance.Rates
	params config.Params
	log    *logrus.Logger
}

func New(tables *cache.TableCache, stock *ledger.Ledger, params config.Params, log *logrus.Logger) *Service {
	return &Service{
		tables: tables,
		stock:  stock,
		rates:  finance.Rates{Card: params.CardRate, CashOnDelivery: params.CODRate},
		params: params,
		log:    log,
	}
}

// CommitSale runs the full commit sequence for a multi-line sale.
func (s *Service) CommitSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	attempt := xid.New("sale")
	log := s.log.WithFields(logrus.Fields{"component": "sale", "attempt": attempt})

	// Validating. Everything that can abort the commit happens here, before
	// any table is touched.
	log.WithField("stage", StageValidating).Debug("commit stage")

	warehouse, ok := domain.ParseWarehouse(req.Warehouse)
	if !ok {
		return domain.SaleResponse{}, fmt.Errorf("unknown warehouse %q: %w", req.Warehouse, domain.ErrValidation)
	}
	req.Client = strings.TrimSpace(req.Client)
	if req.Client == "" {
		return domain.SaleResponse{}, fmt.Errorf("client name is required: %w", domain.ErrValidation)
	}
	if len(req.Lines) == 0 {
		return domain.SaleResponse{}, fmt.Errorf("sale has no lines: %w", domain.ErrValidation)
	}
	if req.PaymentMethod == "" {
		return domain.SaleResponse{}, fmt.Errorf("payment method is required: %w", domain.ErrValidation)
	}
	if req.CODRateOverride != nil {
		if !finance.IsCashOnDelivery(req.PaymentMethod) {
			return domain.SaleResponse{}, fmt.Errorf("commission override only applies to %s: %w",
				domain.PaymentCashOnDelivery, domain.ErrValidation)
		}
		if req.CODRateOverride.IsNegative() || req.CODRateOverride.GreaterThan(decimal.NewFromInt(1)) {
			return domain.SaleResponse{}, fmt.Errorf("commission override must be a fraction between 0 and 1: %w",
				domain.ErrValidation)
		}
	}

	records, err := s.stock.FreshInventory(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	cart := NewCart(records, warehouse)
	for _, line := range req.Lines {
		if err := cart.AddLine(line.SKU, line.Quantity, line.UnitDiscount); err != nil {
			return domain.SaleResponse{}, err
		}
	}
	if err := ledger.ValidateAvailability(records, cart.Lines(), warehouse); err != nil {
		return domain.SaleResponse{}, err
	}

	result := finance.ComputeSale(finance.SaleInput{
		LinesTotal:      cart.LinesTotal(),
		ShippingCharged: req.ShippingCharged,
		LogisticsCost:   req.LogisticsCost,
		PaymentMethod:   req.PaymentMethod,
		CODRateOverride: req.CODRateOverride,
	}, s.rates)
	if !result.TotalCharged.IsPositive() {
		return domain.SaleResponse{}, fmt.Errorf("sale total must be positive: %w", domain.ErrValidation)
	}

	// AllocatingID. A fresh read of the sales ledger narrows the duplicate
	// window; it cannot close it.
	log.WithField("stage", StageAllocatingID).Debug("commit stage")
	saleRows, err := s.tables.ReadFresh(ctx, table.Sales)
	if err != nil {
		return domain.SaleResponse{}, fmt.Errorf("read sales ledger: %w", err)
	}
	existing := schema.DecodeSaleHeaders(saleRows)
	ids := make([]string, 0, len(existing))
	for _, h := range existing {
		ids = append(ids, h.SaleID)
	}
	now := time.Now().In(s.params.Location)
	saleID := seq.Next(ids, seq.PrefixSale, now.Year())
	log = log.WithField("sale_id", saleID)

	header := domain.SaleHeader{
		SaleID:           saleID,
		Date:             now.Format("2006-01-02"),
		Time:             now.Format("15:04:05"),
		Client:           req.Client,
		PaymentMethod:    req.PaymentMethod,
		ShippingCharged:  result.ShippingCharged,
		LogisticsCost:    result.LogisticsCost,
		CommissionPct:    result.CommissionPct,
		LinesTotal:       result.LinesTotal,
		TotalCharged:     result.TotalCharged,
		CommissionAmount: result.CommissionAmount,
		NetToReceive:     result.NetToReceive,
		Notes:            req.Notes,
		Status:           domain.SaleStatusCompleted,
	}
	items := buildLineItems(saleID, cart.Lines(), warehouse)

	// WritingHeader. The point of no return: after this overwrite succeeds
	// the sale ID is in the ledger for good.
	log.WithField("stage", StageHeader).Debug("commit stage")
	if err := s.tables.Overwrite(ctx, table.Sales, schema.EncodeSaleHeaders(append(existing, header))); err != nil {
		return domain.SaleResponse{}, fmt.Errorf("write sale header: %w", err)
	}

	// WritingDetail.
	log.WithField("stage", StageDetail).Debug("commit stage")
	detailRows, err := s.tables.ReadFresh(ctx, table.SaleDetail)
	if err != nil {
		log.WithField("stage", StageDetail).Errorf("commit left partial: %v", err)
		return domain.SaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageDetail, Err: err}
	}
	details := append(schema.DecodeSaleDetails(detailRows), items...)
	if err := s.tables.Overwrite(ctx, table.SaleDetail, schema.EncodeSaleDetails(details)); err != nil {
		log.WithField("stage", StageDetail).Errorf("commit left partial: %v", err)
		return domain.SaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageDetail, Err: err}
	}

	// DecrementingStock. An availability failure here means another writer
	// won the race since validation; header and detail rows already exist.
	log.WithField("stage", StageStock).Debug("commit stage")
	if err := s.stock.CommitDecrement(ctx, attempt, cart.Lines(), warehouse); err != nil {
		log.WithField("stage", StageStock).Errorf("commit left partial: %v", err)
		return domain.SaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageStock, Err: err}
	}

	log.WithFields(logrus.Fields{
		"stage": StageDone,
		"total": result.TotalCharged.StringFixed(2),
		"lines": len(items),
	}).Info("sale committed")

	return domain.SaleResponse{Header: header, Lines: items}, nil
}

// QuickSale is the legacy single-item flow: one SKU, quantity one, a flat
// discount against list price plus shipping. It runs the same commit
// sequence as CommitSale.
func (s *Service) QuickSale(ctx context.Context, req domain.QuickSaleRequest) (domain.QuickSaleResponse, error) {
	attempt := xid.New("qsale")
	log := s.log.WithFields(logrus.Fields{"component": "sale", "attempt": attempt})

	log.WithField("stage", StageValidating).Debug("commit stage")
	warehouse, ok := domain.ParseWarehouse(req.Warehouse)
	if !ok {
		return domain.QuickSaleResponse{}, fmt.Errorf("unknown warehouse %q: %w", req.Warehouse, domain.ErrValidation)
	}
	req.Client = strings.TrimSpace(req.Client)
	if req.Client == "" {
		return domain.QuickSaleResponse{}, fmt.Errorf("client name is required: %w", domain.ErrValidation)
	}
	if req.SKU == "" {
		return domain.QuickSaleResponse{}, fmt.Errorf("sku is required: %w", domain.ErrValidation)
	}
	if req.PaymentMethod == "" {
		return domain.QuickSaleResponse{}, fmt.Errorf("payment method is required: %w", domain.ErrValidation)
	}

	records, err := s.stock.FreshInventory(ctx)
	if err != nil {
		return domain.QuickSaleResponse{}, err
	}

	cart := NewCart(records, warehouse)
	if err := cart.AddLine(req.SKU, 1, decimal.Zero); err != nil {
		return domain.QuickSaleResponse{}, err
	}

	var rec domain.InventoryRecord
	for _, r := range records {
		if r.SKU == req.SKU {
			rec = r
			break
		}
	}

	result := finance.ComputeLegacy(finance.LegacyInput{
		BasePrice:       rec.ListPrice,
		Discount:        req.Discount,
		ShippingCharged: req.ShippingCharged,
		UnitCost:        rec.UnitCost,
		LogisticsCost:   req.LogisticsCost,
		PaymentMethod:   req.PaymentMethod,
	}, s.rates)
	if !result.TotalCharged.IsPositive() {
		return domain.QuickSaleResponse{}, fmt.Errorf("sale total must be positive: %w", domain.ErrValidation)
	}

	log.WithField("stage", StageAllocatingID).Debug("commit stage")
	saleRows, err := s.tables.ReadFresh(ctx, table.Sales)
	if err != nil {
		return domain.QuickSaleResponse{}, fmt.Errorf("read sales ledger: %w", err)
	}
	existing := schema.DecodeSaleHeaders(saleRows)
	ids := make([]string, 0, len(existing))
	for _, h := range existing {
		ids = append(ids, h.SaleID)
	}
	now := time.Now().In(s.params.Location)
	saleID := seq.Next(ids, seq.PrefixSale, now.Year())
	log = log.WithField("sale_id", saleID)

	// The legacy discount may exceed the list price and spill into shipping.
	// At most the list price lands on the line; the remainder comes off the
	// shipping figure, keeping the header total equal to line plus shipping.
	lineDiscount := result.Discount
	if lineDiscount.GreaterThan(rec.ListPrice) {
		lineDiscount = rec.ListPrice
	}
	lineSubtotal := finance.LineSubtotal(rec.ListPrice, lineDiscount, 1)
	shippingCharged := result.TotalCharged.Sub(lineSubtotal)

	header := domain.SaleHeader{
		SaleID:           saleID,
		Date:             now.Format("2006-01-02"),
		Time:             now.Format("15:04:05"),
		Client:           req.Client,
		PaymentMethod:    req.PaymentMethod,
		ShippingCharged:  shippingCharged,
		LogisticsCost:    result.LogisticsCost,
		CommissionPct:    result.CommissionPct,
		LinesTotal:       lineSubtotal,
		TotalCharged:     result.TotalCharged,
		CommissionAmount: result.CommissionAmount,
		NetToReceive:     result.NetToReceive,
		Notes:            req.Notes,
		Status:           domain.SaleStatusCompleted,
	}
	item := domain.SaleLineItem{
		SaleID:       saleID,
		Line:         1,
		SKU:          rec.SKU,
		Product:      rec.Product,
		Drop:         rec.Drop,
		Color:        rec.Color,
		Size:         rec.Size,
		Warehouse:    warehouse,
		Quantity:     1,
		UnitPrice:    rec.ListPrice,
		UnitDiscount: lineDiscount,
		LineSubtotal: lineSubtotal,
	}

	log.WithField("stage", StageHeader).Debug("commit stage")
	if err := s.tables.Overwrite(ctx, table.Sales, schema.EncodeSaleHeaders(append(existing, header))); err != nil {
		return domain.QuickSaleResponse{}, fmt.Errorf("write sale header: %w", err)
	}

	log.WithField("stage", StageDetail).Debug("commit stage")
	detailRows, err := s.tables.ReadFresh(ctx, table.SaleDetail)
	if err != nil {
		log.WithField("stage", StageDetail).Errorf("commit left partial: %v", err)
		return domain.QuickSaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageDetail, Err: err}
	}
	details := append(schema.DecodeSaleDetails(detailRows), item)
	if err := s.tables.Overwrite(ctx, table.SaleDetail, schema.EncodeSaleDetails(details)); err != nil {
		log.WithField("stage", StageDetail).Errorf("commit left partial: %v", err)
		return domain.QuickSaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageDetail, Err: err}
	}

	log.WithField("stage", StageStock).Debug("commit stage")
	if err := s.stock.CommitDecrement(ctx, attempt, cart.Lines(), warehouse); err != nil {
		log.WithField("stage", StageStock).Errorf("commit left partial: %v", err)
		return domain.QuickSaleResponse{}, &PartialCommitError{SaleID: saleID, Stage: StageStock, Err: err}
	}

	log.WithFields(logrus.Fields{
		"stage": StageDone,
		"total": result.TotalCharged.StringFixed(2),
	}).Info("quick sale committed")

	return domain.QuickSaleResponse{Header: header, Line: item, NetMargin: result.NetMargin}, nil
}

// RecordExpense appends one row to the expense ledger.
func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Expense, error) {
	if req.Category == "" {
		return domain.Expense{}, fmt.Errorf("category is required: %w", domain.ErrValidation)
	}
	if !req.Amount.IsPositive() {
		return domain.Expense{}, fmt.Errorf("amount must be positive: %w", domain.ErrValidation)
	}

	rows, err := s.tables.ReadFresh(ctx, table.Expenses)
	if err != nil {
		return domain.Expense{}, fmt.Errorf("read expense ledger: %w", err)
	}
	existing := schema.DecodeExpenses(rows)
	ids := make([]string, 0, len(existing))
	for _, e := range existing {
		ids = append(ids, e.ExpenseID)
	}

	now := time.Now().In(s.params.Location)
	expense := domain.Expense{
		ExpenseID:     seq.Next(ids, seq.PrefixExpense, now.Year()),
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04:05"),
		Category:      req.Category,
		Description:   req.Description,
		Amount:        req.Amount.Round(2),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}

	if err := s.tables.Overwrite(ctx, table.Expenses, schema.EncodeExpenses(append(existing, expense))); err != nil {
		return domain.Expense{}, fmt.Errorf("write expense ledger: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"component":  "sale",
		"expense_id": expense.ExpenseID,
		"amount":     expense.Amount.StringFixed(2),
	}).Info("expense recorded")
	return expense, nil
}

// Transfer moves stock between warehouses for one SKU.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error) {
	from, ok := domain.ParseWarehouse(req.From)
	if !ok {
		return domain.TransferResponse{}, fmt.Errorf("unknown warehouse %q: %w", req.From, domain.ErrValidation)
	}
	to, ok := domain.ParseWarehouse(req.To)
	if !ok {
		return domain.TransferResponse{}, fmt.Errorf("unknown warehouse %q: %w", req.To, domain.ErrValidation)
	}
	if req.SKU == "" {
		return domain.TransferResponse{}, fmt.Errorf("sku is required: %w", domain.ErrValidation)
	}
	return s.stock.Transfer(ctx, req.SKU, from, to, req.Quantity)
}

// ListInventory serves the active catalog through the short cache tier, with
// per-warehouse stock severity attached.
func (s *Service) ListInventory(ctx context.Context) (domain.InventoryListResponse, error) {
	snap, err := s.tables.Read(ctx, table.Inventory, cache.TierShort)
	if err != nil {
		return domain.InventoryListResponse{}, err
	}
	if snap.Degraded {
		return domain.InventoryListResponse{Items: []domain.InventoryListItem{}, Degraded: true}, nil
	}

	records := schema.ActiveInventory(schema.DecodeInventory(snap.Rows))
	items := make([]domain.InventoryListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, domain.InventoryListItem{
			InventoryRecord: rec,
			StatusHouse:     rec.StockStatus(domain.WarehouseHouse),
			StatusWarehouse: rec.StockStatus(domain.WarehouseMain),
		})
	}
	return domain.InventoryListResponse{Items: items}, nil
}

// ListSales serves the sales ledger through the medium cache tier.
func (s *Service) ListSales(ctx context.Context) (domain.SaleListResponse, error) {
	snap, err := s.tables.Read(ctx, table.Sales, cache.TierMedium)
	if err != nil {
		return domain.SaleListResponse{}, err
	}
	if snap.Degraded {
		return domain.SaleListResponse{Items: []domain.SaleHeader{}, Degraded: true}, nil
	}
	headers := schema.DecodeSaleHeaders(snap.Rows)
	if headers == nil {
		headers = []domain.SaleHeader{}
	}
	return domain.SaleListResponse{Items: headers}, nil
}

// ListExpenses serves the expense ledger through the medium cache tier.
func (s *Service) ListExpenses(ctx context.Context) (domain.ExpenseListResponse, error) {
	snap, err := s.tables.Read(ctx, table.Expenses, cache.TierMedium)
	if err != nil {
		return domain.ExpenseListResponse{}, err
	}
	if snap.Degraded {
		return domain.ExpenseListResponse{Items: []domain.Expense{}, Degraded: true}, nil
	}
	expenses := schema.DecodeExpenses(snap.Rows)
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	return domain.ExpenseListResponse{Items: expenses}, nil
}

func buildLineItems(saleID string, lines []domain.CartLine, warehouse domain.Warehouse) []domain.SaleLineItem {
	items := make([]domain.SaleLineItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, domain.SaleLineItem{
			SaleID:       saleID,
			Line:         i + 1,
			SKU:          line.SKU,
			Product:      line.Product,
			Drop:         line.Drop,
			Color:        line.Color,
			Size:         line.Size,
			Warehouse:    warehouse,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
			UnitDiscount: line.UnitDiscount,
			LineSubtotal: line.Subtotal,
		})
	}
	return items
}
