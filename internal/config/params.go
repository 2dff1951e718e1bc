package config

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Defaults applied when the Config table omits a parameter or holds garbage.
var (
	defaultCardRate = decimal.NewFromFloat(0.023)  // 2.30%
	defaultCODRate  = decimal.NewFromFloat(0.0299) // 2.99%
)

const defaultTimezone = "America/El_Salvador"

// Params are the business parameters of the store, resolved once at startup
// from the remote Config table. Read-only afterwards.
type Params struct {
	CardRate       decimal.Decimal
	CODRate        decimal.Decimal
	Location       *time.Location
	HouseLabel     string
	WarehouseLabel string
}

// ParseParams builds Params from the raw Config table pairs. Percentages may
// be written as a fraction ("0.023") or with a trailing percent sign
// ("2.30%"); a bare number above 1 is read as a percentage, since no
// commission rate ever exceeds 100% of the sale.
func ParseParams(raw map[string]string, log *logrus.Logger) Params {
	p := Params{
		CardRate:       defaultCardRate,
		CODRate:        defaultCODRate,
		HouseLabel:     "Casa",
		WarehouseLabel: "Bodega",
	}

	if v, ok := parseRate(raw["comision_tarjeta"]); ok {
		p.CardRate = v
	}
	if v, ok := parseRate(raw["comision_contra_entrega"]); ok {
		p.CODRate = v
	}
	if v := strings.TrimSpace(raw["bodega_casa"]); v != "" {
		p.HouseLabel = v
	}
	if v := strings.TrimSpace(raw["bodega_principal"]); v != "" {
		p.WarehouseLabel = v
	}

	tz := strings.TrimSpace(raw["timezone"])
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithField("component", "config").
			Warnf("unknown timezone %q, falling back to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	p.Location = loc

	return p
}

// parseRate reads a percent-or-fraction value into a fraction.
func parseRate(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}

	percent := strings.HasSuffix(raw, "%")
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	raw = strings.ReplaceAll(raw, ",", ".")

	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	if percent || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	return d, true
}
