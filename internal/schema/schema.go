// Package schema aligns raw table rows onto the canonical column set of each
// entity and coerces cell values into typed records. Headers in the remote
// store drift over time (renames, stray whitespace, separators), so lookup is
// tolerant; missing required columns decode to zero values instead of
// failing.
package schema

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"scheletro/backend/internal/domain"
)

// Canonical column names per table. Column order in the store is not
// significant; presence is resolved through the alias table below.
var (
	InventoryColumns = []string{
		"SKU", "Drop", "Product", "Color", "Size",
		"Stock_House", "Stock_Warehouse", "Unit_Cost", "List_Price", "Active",
	}
	SaleColumns = []string{
		"Sale_ID", "Date", "Time", "Client", "Payment_Method",
		"Shipping_Charged_Total", "Logistics_Cost_Total", "Commission_Percent",
		"Lines_Total", "Total_Charged", "Commission_Amount", "Net_To_Receive",
		"Notes", "Status",
	}
	DetailColumns = []string{
		"Sale_ID", "Line", "SKU", "Product", "Drop", "Color", "Size",
		"Warehouse", "Quantity", "Unit_Price", "Unit_Discount", "Line_Subtotal",
	}
	ExpenseColumns = []string{
		"Expense_ID", "Date", "Time", "Category", "Description",
		"Amount", "Payment_Method", "Notes",
	}
	ConfigColumns = []string{"Parameter", "Value"}
)

// aliases maps normalized legacy/renamed headers to their canonical column.
// Keys are normalizeHeader output.
var aliases = map[string]string{
	"stock casa":           "Stock_House",
	"casa":                 "Stock_House",
	"stock bodega":         "Stock_Warehouse",
	"bodega":               "Stock_Warehouse",
	"producto":             "Product",
	"talla":                "Size",
	"costo unitario":       "Unit_Cost",
	"precio lista":         "List_Price",
	"activo":               "Active",
	"fecha":                "Date",
	"hora":                 "Time",
	"cliente":              "Client",
	"metodo pago":          "Payment_Method",
	"metodo de pago":       "Payment_Method",
	"envio cobrado":        "Shipping_Charged_Total",
	"envio cobrado total":  "Shipping_Charged_Total",
	"costo logistica real": "Logistics_Cost_Total",
	"comision calc":        "Commission_Amount",
	"total cobrado":        "Total_Charged",
	"monto recibir":        "Net_To_Receive",
	"notas":                "Notes",
	"estado":               "Status",
	"bodega salida":        "Warehouse",
	"cantidad":             "Quantity",
	"precio unitario":      "Unit_Price",
	"descuento":            "Unit_Discount",
	"subtotal linea":       "Line_Subtotal",
	"linea":                "Line",
	"parametro":            "Parameter",
	"valor":                "Value",
	"monto":                "Amount",
	"categoria":            "Category",
	"descripcion":          "Description",
}

// normalizeHeader lowers, trims and collapses separators so "  Stock_House "
// and "stock-house" resolve to the same key.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// columnIndex resolves the position of a canonical column inside a raw
// header row, via direct match or alias. Returns -1 when absent.
func columnIndex(header []string, canonical string) int {
	want := normalizeHeader(canonical)
	for i, cell := range header {
		got := normalizeHeader(cell)
		if got == want {
			return i
		}
		if alias, ok := aliases[got]; ok && alias == canonical {
			return i
		}
	}
	return -1
}

type rowReader struct {
	index map[string]int
}

func newRowReader(header []string, columns []string) rowReader {
	idx := make(map[string]int, len(columns))
	for _, col := range columns {
		idx[col] = columnIndex(header, col)
	}
	return rowReader{index: idx}
}

func (r rowReader) cell(row []string, column string) string {
	i, ok := r.index[column]
	if !ok || i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Money parses a monetary cell. Tolerates a currency sign, spaces and
// thousands separators; anything unparseable falls back to zero.
func Money(raw string) decimal.Decimal {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else if i := strings.LastIndex(cleaned, ","); i >= 0 {
		// Lone comma: decimal separator unless it groups exactly three
		// trailing digits.
		if len(cleaned)-i-1 == 3 {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Int parses an integer cell; floats are truncated, garbage becomes zero.
func Int(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return 0
}

// Bool parses a boolean cell, accepting the spellings the sheet has
// accumulated over the years. Unknown values return the fallback.
func Bool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "si", "sí", "yes", "1", "x", "verdadero":
		return true
	case "false", "no", "0", "falso":
		return false
	default:
		return fallback
	}
}

// DecodeInventory aligns raw rows onto the inventory schema. The first row
// is the header; an empty or header-only table decodes to nil.
func DecodeInventory(rows [][]string) []domain.InventoryRecord {
	if len(rows) < 2 {
		return nil
	}
	r := newRowReader(rows[0], InventoryColumns)
	records := make([]domain.InventoryRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := domain.InventoryRecord{
			SKU:            r.cell(row, "SKU"),
			Drop:           r.cell(row, "Drop"),
			Product:        r.cell(row, "Product"),
			Color:          r.cell(row, "Color"),
			Size:           r.cell(row, "Size"),
			StockHouse:     Int(r.cell(row, "Stock_House")),
			StockWarehouse: Int(r.cell(row, "Stock_Warehouse")),
			UnitCost:       Money(r.cell(row, "Unit_Cost")),
			ListPrice:      Money(r.cell(row, "List_Price")),
			Active:         Bool(r.cell(row, "Active"), true),
		}
		if rec.SKU == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func EncodeInventory(records []domain.InventoryRecord) [][]string {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, append([]string(nil), InventoryColumns...))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.SKU, rec.Drop, rec.Product, rec.Color, rec.Size,
			strconv.Itoa(rec.StockHouse), strconv.Itoa(rec.StockWarehouse),
			rec.UnitCost.StringFixed(2), rec.ListPrice.StringFixed(2),
			encodeBool(rec.Active),
		})
	}
	return rows
}

func DecodeSaleHeaders(rows [][]string) []domain.SaleHeader {
	if len(rows) < 2 {
		return nil
	}
	r := newRowReader(rows[0], SaleColumns)
	headers := make([]domain.SaleHeader, 0, len(rows)-1)
	for _, row := range rows[1:] {
		h := domain.SaleHeader{
			SaleID:           r.cell(row, "Sale_ID"),
			Date:             r.cell(row, "Date"),
			Time:             r.cell(row, "Time"),
			Client:           r.cell(row, "Client"),
			PaymentMethod:    r.cell(row, "Payment_Method"),
			ShippingCharged:  Money(r.cell(row, "Shipping_Charged_Total")),
			LogisticsCost:    Money(r.cell(row, "Logistics_Cost_Total")),
			CommissionPct:    Money(r.cell(row, "Commission_Percent")),
			LinesTotal:       Money(r.cell(row, "Lines_Total")),
			TotalCharged:     Money(r.cell(row, "Total_Charged")),
			CommissionAmount: Money(r.cell(row, "Commission_Amount")),
			NetToReceive:     Money(r.cell(row, "Net_To_Receive")),
			Notes:            r.cell(row, "Notes"),
			Status:           r.cell(row, "Status"),
		}
		if h.SaleID == "" && h.Client == "" {
			continue
		}
		headers = append(headers, h)
	}
	return headers
}

func EncodeSaleHeaders(headers []domain.SaleHeader) [][]string {
	rows := make([][]string, 0, len(headers)+1)
	rows = append(rows, append([]string(nil), SaleColumns...))
	for _, h := range headers {
		rows = append(rows, []string{
			h.SaleID, h.Date, h.Time, h.Client, h.PaymentMethod,
			h.ShippingCharged.StringFixed(2), h.LogisticsCost.StringFixed(2),
			h.CommissionPct.String(),
			h.LinesTotal.StringFixed(2), h.TotalCharged.StringFixed(2),
			h.CommissionAmount.StringFixed(2), h.NetToReceive.StringFixed(2),
			h.Notes, h.Status,
		})
	}
	return rows
}

func DecodeSaleDetails(rows [][]string) []domain.SaleLineItem {
	if len(rows) < 2 {
		return nil
	}
	r := newRowReader(rows[0], DetailColumns)
	items := make([]domain.SaleLineItem, 0, len(rows)-1)
	for _, row := range rows[1:] {
		warehouse, _ := domain.ParseWarehouse(r.cell(row, "Warehouse"))
		item := domain.SaleLineItem{
			SaleID:       r.cell(row, "Sale_ID"),
			Line:         Int(r.cell(row, "Line")),
			SKU:          r.cell(row, "SKU"),
			Product:      r.cell(row, "Product"),
			Drop:         r.cell(row, "Drop"),
			Color:        r.cell(row, "Color"),
			Size:         r.cell(row, "Size"),
			Warehouse:    warehouse,
			Quantity:     Int(r.cell(row, "Quantity")),
			UnitPrice:    Money(r.cell(row, "Unit_Price")),
			UnitDiscount: Money(r.cell(row, "Unit_Discount")),
			LineSubtotal: Money(r.cell(row, "Line_Subtotal")),
		}
		if item.SaleID == "" {
			continue
		}
		items = append(items, item)
	}
	return items
}

func EncodeSaleDetails(items []domain.SaleLineItem) [][]string {
	rows := make([][]string, 0, len(items)+1)
	rows = append(rows, append([]string(nil), DetailColumns...))
	for _, item := range items {
		rows = append(rows, []string{
			item.SaleID, strconv.Itoa(item.Line), item.SKU, item.Product,
			item.Drop, item.Color, item.Size, string(item.Warehouse),
			strconv.Itoa(item.Quantity),
			item.UnitPrice.StringFixed(2), item.UnitDiscount.StringFixed(2),
			item.LineSubtotal.StringFixed(2),
		})
	}
	return rows
}

func DecodeExpenses(rows [][]string) []domain.Expense {
	if len(rows) < 2 {
		return nil
	}
	r := newRowReader(rows[0], ExpenseColumns)
	expenses := make([]domain.Expense, 0, len(rows)-1)
	for _, row := range rows[1:] {
		e := domain.Expense{
			ExpenseID:     r.cell(row, "Expense_ID"),
			Date:          r.cell(row, "Date"),
			Time:          r.cell(row, "Time"),
			Category:      r.cell(row, "Category"),
			Description:   r.cell(row, "Description"),
			Amount:        Money(r.cell(row, "Amount")),
			PaymentMethod: r.cell(row, "Payment_Method"),
			Notes:         r.cell(row, "Notes"),
		}
		if e.ExpenseID == "" && e.Description == "" {
			continue
		}
		expenses = append(expenses, e)
	}
	return expenses
}

func EncodeExpenses(expenses []domain.Expense) [][]string {
	rows := make([][]string, 0, len(expenses)+1)
	rows = append(rows, append([]string(nil), ExpenseColumns...))
	for _, e := range expenses {
		rows = append(rows, []string{
			e.ExpenseID, e.Date, e.Time, e.Category, e.Description,
			e.Amount.StringFixed(2), e.PaymentMethod, e.Notes,
		})
	}
	return rows
}

// DecodeConfig flattens the Config table into a parameter map. Later rows
// win on duplicate keys.
func DecodeConfig(rows [][]string) map[string]string {
	params := make(map[string]string)
	if len(rows) < 2 {
		return params
	}
	r := newRowReader(rows[0], ConfigColumns)
	for _, row := range rows[1:] {
		key := r.cell(row, "Parameter")
		if key == "" {
			continue
		}
		params[key] = r.cell(row, "Value")
	}
	return params
}

// ActiveInventory filters to rows flagged active. When the filter matches
// nothing but rows exist, it falls back to all rows: blocking every sale on
// a mis-edited Active column is worse than showing retired SKUs. The
// fallback is deliberate and limited to this one filter.
func ActiveInventory(records []domain.InventoryRecord) []domain.InventoryRecord {
	active := make([]domain.InventoryRecord, 0, len(records))
	for _, rec := range records {
		if rec.Active {
			active = append(active, rec)
		}
	}
	if len(active) == 0 && len(records) > 0 {
		return records
	}
	return active
}

func encodeBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
