// Package finance computes the monetary breakdown of a sale. Everything here
// is pure: inputs in, rounded figures out, no I/O. All monetary outputs are
// rounded to two decimal places at the point of computation, so recomputing
// from already-rounded figures is idempotent.
package finance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rates holds the commission fractions per payment method, resolved once at
// startup from the Config table.
type Rates struct {
	Card           decimal.Decimal
	CashOnDelivery decimal.Decimal
}

// CommissionPct returns the commission fraction for a payment method. Card
// and cash-on-delivery carry a rate; everything else (transfer, cash) is
// zero. The cash-on-delivery rate may be overridden per sale; an override is
// ignored for any other method.
func CommissionPct(method string, override *decimal.Decimal, rates Rates) decimal.Decimal {
	switch normalizeMethod(method) {
	case "card":
		return rates.Card
	case "cod":
		if override != nil {
			return *override
		}
		return rates.CashOnDelivery
	default:
		return decimal.Zero
	}
}

// IsCashOnDelivery reports whether the method resolves to contra entrega,
// the only method whose rate accepts a per-sale override.
func IsCashOnDelivery(method string) bool {
	return normalizeMethod(method) == "cod"
}

func normalizeMethod(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "tarjeta", "card":
		return "card"
	case "contra entrega", "contraentrega", "cod", "cash on delivery":
		return "cod"
	default:
		return "other"
	}
}

// LineSubtotal prices one cart line: (unit price − unit discount) × quantity,
// rounded to 2 decimals. The discount is clamped to [0, unit price] so a line
// can never contribute a negative amount.
func LineSubtotal(unitPrice, unitDiscount decimal.Decimal, quantity int) decimal.Decimal {
	if unitDiscount.IsNegative() {
		unitDiscount = decimal.Zero
	}
	if unitDiscount.GreaterThan(unitPrice) {
		unitDiscount = unitPrice
	}
	qty := decimal.NewFromInt(int64(quantity))
	return unitPrice.Sub(unitDiscount).Mul(qty).Round(2)
}

type SaleInput struct {
	LinesTotal      decimal.Decimal
	ShippingCharged decimal.Decimal
	LogisticsCost   decimal.Decimal
	PaymentMethod   string
	CODRateOverride *decimal.Decimal
}

type SaleResult struct {
	LinesTotal       decimal.Decimal
	ShippingCharged  decimal.Decimal
	LogisticsCost    decimal.Decimal
	CommissionPct    decimal.Decimal
	TotalCharged     decimal.Decimal
	CommissionAmount decimal.Decimal
	NetToReceive     decimal.Decimal
}

// ComputeSale produces the header figures for a multi-line sale:
//
//	total_charged  = max(0, lines_total + shipping_charged)
//	commission     = total_charged × commission_pct(method)
//	net_to_receive = total_charged − logistics_cost − commission
//
// Per-line cost never enters the payable amount; it only matters for profit
// reporting.
func ComputeSale(in SaleInput, rates Rates) SaleResult {
	shipping := clampNonNegative(in.ShippingCharged).Round(2)
	logistics := clampNonNegative(in.LogisticsCost).Round(2)
	linesTotal := clampNonNegative(in.LinesTotal).Round(2)

	total := linesTotal.Add(shipping)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	pct := CommissionPct(in.PaymentMethod, in.CODRateOverride, rates)
	commission := total.Mul(pct).Round(2)
	net := total.Sub(logistics).Sub(commission).Round(2)

	return SaleResult{
		LinesTotal:       linesTotal,
		ShippingCharged:  shipping,
		LogisticsCost:    logistics,
		CommissionPct:    pct,
		TotalCharged:     total,
		CommissionAmount: commission,
		NetToReceive:     net,
	}
}

type LegacyInput struct {
	BasePrice       decimal.Decimal
	Discount        decimal.Decimal
	ShippingCharged decimal.Decimal
	UnitCost        decimal.Decimal
	LogisticsCost   decimal.Decimal
	PaymentMethod   string
}

type LegacyResult struct {
	BasePrice        decimal.Decimal
	Discount         decimal.Decimal
	ShippingCharged  decimal.Decimal
	LogisticsCost    decimal.Decimal
	CommissionPct    decimal.Decimal
	TotalCharged     decimal.Decimal
	CommissionAmount decimal.Decimal
	// NetMargin subtracts the unit cost as well; the single-item ledger
	// reported profit this way.
	NetMargin    decimal.Decimal
	NetToReceive decimal.Decimal
}

// ComputeLegacy is the original single-item pricing. A discount exceeding
// base price + shipping is silently clamped to that sum, never producing a
// negative total.
func ComputeLegacy(in LegacyInput, rates Rates) LegacyResult {
	base := in.BasePrice.Round(2)
	shipping := clampNonNegative(in.ShippingCharged).Round(2)
	logistics := clampNonNegative(in.LogisticsCost).Round(2)
	unitCost := clampNonNegative(in.UnitCost).Round(2)

	discount := clampNonNegative(in.Discount)
	if maxDiscount := base.Add(shipping); discount.GreaterThan(maxDiscount) {
		discount = maxDiscount
	}
	discount = discount.Round(2)

	total := base.Add(shipping).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	pct := CommissionPct(in.PaymentMethod, nil, rates)
	commission := total.Mul(pct).Round(2)
	margin := total.Sub(unitCost.Add(logistics).Add(commission)).Round(2)
	net := total.Sub(logistics).Sub(commission).Round(2)

	return LegacyResult{
		BasePrice:        base,
		Discount:         discount,
		ShippingCharged:  shipping,
		LogisticsCost:    logistics,
		CommissionPct:    pct,
		TotalCharged:     total,
		CommissionAmount: commission,
		NetMargin:        margin,
		NetToReceive:     net,
	}
}

func clampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
