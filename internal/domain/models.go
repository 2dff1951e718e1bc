package domain

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
)

// Warehouse identifies one of the two physical stock locations.
type Warehouse string

const (
	WarehouseHouse Warehouse = "house"
	WarehouseMain  Warehouse = "warehouse"
)

func ParseWarehouse(raw string) (Warehouse, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "house", "casa":
		return WarehouseHouse, true
	case "warehouse", "bodega", "main":
		return WarehouseMain, true
	}
	return "", false
}

// Payment methods. Card and cash-on-delivery carry a commission, the rest
// settle at face value.
const (
	PaymentTransfer       = "Transfer"
	PaymentCash           = "Cash"
	PaymentCard           = "Tarjeta"
	PaymentCashOnDelivery = "Contra Entrega"
)

const SaleStatusCompleted = "Completada"

type InventoryRecord struct {
	SKU            string          `json:"sku"`
	Drop           string          `json:"drop"`
	Product        string          `json:"product"`
	Color          string          `json:"color"`
	Size           string          `json:"size"`
	StockHouse     int             `json:"stock_house"`
	StockWarehouse int             `json:"stock_warehouse"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	ListPrice      decimal.Decimal `json:"list_price"`
	Active         bool            `json:"active"`
}

// Stock returns the available quantity in the given warehouse.
func (r InventoryRecord) Stock(w Warehouse) int {
	if w == WarehouseMain {
		return r.StockWarehouse
	}
	return r.StockHouse
}

func (r *InventoryRecord) SetStock(w Warehouse, qty int) {
	if w == WarehouseMain {
		r.StockWarehouse = qty
		return
	}
	r.StockHouse = qty
}

// Stock severity thresholds: sold out at zero, low at two or fewer units.
const (
	StockStatusOut = "agotado"
	StockStatusLow = "bajo"
	StockStatusOK  = "ok"
)

func (r InventoryRecord) StockStatus(w Warehouse) string {
	switch qty := r.Stock(w); {
	case qty <= 0:
		return StockStatusOut
	case qty <= 2:
		return StockStatusLow
	default:
		return StockStatusOK
	}
}

// SaleHeader is one row of the append-only sales ledger. Never mutated after
// the commit that created it.
type SaleHeader struct {
	SaleID           string          `json:"sale_id"`
	Date             string          `json:"date"`
	Time             string          `json:"time"`
	Client           string          `json:"client"`
	PaymentMethod    string          `json:"payment_method"`
	ShippingCharged  decimal.Decimal `json:"shipping_charged_total"`
	LogisticsCost    decimal.Decimal `json:"logistics_cost_total"`
	CommissionPct    decimal.Decimal `json:"commission_percent"`
	LinesTotal       decimal.Decimal `json:"lines_total"`
	TotalCharged     decimal.Decimal `json:"total_charged"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetToReceive     decimal.Decimal `json:"net_to_receive"`
	Notes            string          `json:"notes"`
	Status           string          `json:"status"`
}

// SaleLineItem is one detail row. Line numbers are 1-based and contiguous
// within a sale; every line of a sale draws from the same warehouse.
type SaleLineItem struct {
	SaleID       string          `json:"sale_id"`
	Line         int             `json:"line"`
	SKU          string          `json:"sku"`
	Product      string          `json:"product"`
	Drop         string          `json:"drop"`
	Color        string          `json:"color"`
	Size         string          `json:"size"`
	Warehouse    Warehouse       `json:"warehouse"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

// Expense is one row of the append-only expense ledger.
type Expense struct {
	ExpenseID     string          `json:"expense_id"`
	Date          string          `json:"date"`
	Time          string          `json:"time"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

// CartLine is a candidate sale line, priced from the inventory snapshot the
// cart was built against. Not persisted; not re-validated until commit.
type CartLine struct {
	SKU          string          `json:"sku"`
	Product      string          `json:"product"`
	Drop         string          `json:"drop"`
	Color        string          `json:"color"`
	Size         string          `json:"size"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type SaleLineRequest struct {
	SKU          string          `json:"sku"`
	Quantity     int             `json:"quantity"`
	UnitDiscount decimal.Decimal `json:"unit_discount"`
}

type SaleRequest struct {
	Client          string            `json:"client"`
	PaymentMethod   string            `json:"payment_method"`
	Warehouse       string            `json:"warehouse"`
	Lines           []SaleLineRequest `json:"lines"`
	ShippingCharged decimal.Decimal   `json:"shipping_charged"`
	LogisticsCost   decimal.Decimal   `json:"logistics_cost"`
	CODRateOverride *decimal.Decimal  `json:"cod_rate_override,omitempty"`
	Notes           string            `json:"notes"`
}

type SaleResponse struct {
	Header SaleHeader     `json:"header"`
	Lines  []SaleLineItem `json:"lines"`
}

// QuickSaleRequest is the legacy single-item flow: one SKU, quantity one,
// discount applied against the list price.
type QuickSaleRequest struct {
	SKU             string          `json:"sku"`
	Client          string          `json:"client"`
	PaymentMethod   string          `json:"payment_method"`
	Warehouse       string          `json:"warehouse"`
	Discount        decimal.Decimal `json:"discount"`
	ShippingCharged decimal.Decimal `json:"shipping_charged"`
	LogisticsCost   decimal.Decimal `json:"logistics_cost"`
	Notes           string          `json:"notes"`
}

type QuickSaleResponse struct {
	Header SaleHeader   `json:"header"`
	Line   SaleLineItem `json:"line"`
	// NetMargin includes the unit cost, the way the original single-item
	// ledger reported profit. Informational only.
	NetMargin decimal.Decimal `json:"net_margin"`
}

type TransferRequest struct {
	SKU      string `json:"sku"`
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity int    `json:"quantity"`
}

type TransferResponse struct {
	SKU            string    `json:"sku"`
	From           Warehouse `json:"from"`
	To             Warehouse `json:"to"`
	Quantity       int       `json:"quantity"`
	StockHouse     int       `json:"stock_house"`
	StockWarehouse int       `json:"stock_warehouse"`
}

type ExpenseRequest struct {
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
}

type SaleListResponse struct {
	Items    []SaleHeader `json:"items"`
	Degraded bool         `json:"degraded,omitempty"`
}

type ExpenseListResponse struct {
	Items    []Expense `json:"items"`
	Degraded bool      `json:"degraded,omitempty"`
}

type InventoryListItem struct {
	InventoryRecord
	StatusHouse     string `json:"status_house"`
	StatusWarehouse string `json:"status_warehouse"`
}

type InventoryListResponse struct {
	Items []InventoryListItem `json:"items"`
	// Degraded is set when the read fell back to an empty snapshot because
	// the remote store rate-limited us.
	Degraded bool `json:"degraded,omitempty"`
}
