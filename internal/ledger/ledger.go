// Package ledger enforces the non-negative stock invariant against a store
// with no locking. The protocol is validate-then-commit: an uncached read
// immediately before the write, availability checked against that read, then
// a single whole-table overwrite. The sequence is not atomic with respect to
// other writers: two commits racing inside the same validation window can
// both pass, and the second overwrite clobbers the first. That window is
// inherent to the backing store; log lines carry the attempt ID so a clobber
// is at least diagnosable.
package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"scheletro/backend/internal/cache"
	"scheletro/backend/internal/domain"
	"scheletro/backend/internal/schema"
	"scheletro/backend/internal/table"
)

type Ledger struct {
	tables *cache.TableCache
	log    *logrus.Logger
}

func New(tables *cache.TableCache, log *logrus.Logger) *Ledger {
	return &Ledger{tables: tables, log: log}
}

// FreshInventory reads the inventory bypassing the cache and decodes it. An
// empty result is an error here: pre-write validation must never conclude
// "no rows, no constraints" from a read that may have been degraded.
func (l *Ledger) FreshInventory(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := l.tables.ReadFresh(ctx, table.Inventory)
	if err != nil {
		return nil, fmt.Errorf("fresh inventory read: %w", err)
	}
	records := schema.DecodeInventory(rows)
	if len(records) == 0 {
		return nil, fmt.Errorf("inventory is empty or unreadable: %w", table.ErrUnavailable)
	}
	return records, nil
}

// ValidateAvailability checks every cart line against a fresh snapshot.
// Quantities are aggregated per SKU first, so two lines of the same SKU
// cannot each pass individually while jointly overselling.
func ValidateAvailability(records []domain.InventoryRecord, lines []domain.CartLine, warehouse domain.Warehouse) error {
	bySKU := indexBySKU(records)
	wanted := aggregateQuantities(lines)

	for sku, want := range wanted {
		rec, ok := bySKU[sku]
		if !ok {
			return fmt.Errorf("sku %s: %w", sku, domain.ErrNotFound)
		}
		if have := rec.Stock(warehouse); want > have {
			return fmt.Errorf("sku %s: requested %d, available %d in %s: %w",
				sku, want, have, warehouse, domain.ErrInsufficientStock)
		}
	}
	return nil
}

// CommitDecrement re-validates against a fresh read and writes the
// decremented inventory back in a single overwrite. On any validation
// failure nothing is written.
func (l *Ledger) CommitDecrement(ctx context.Context, attemptID string, lines []domain.CartLine, warehouse domain.Warehouse) error {
	records, err := l.FreshInventory(ctx)
	if err != nil {
		return err
	}
	if err := ValidateAvailability(records, lines, warehouse); err != nil {
		return err
	}

	wanted := aggregateQuantities(lines)
	for i := range records {
		want, ok := wanted[records[i].SKU]
		if !ok {
			continue
		}
		records[i].SetStock(warehouse, records[i].Stock(warehouse)-want)
	}

	if err := l.tables.Overwrite(ctx, table.Inventory, schema.EncodeInventory(records)); err != nil {
		return fmt.Errorf("write decremented inventory: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"component": "ledger",
		"attempt":   attemptID,
		"warehouse": warehouse,
		"skus":      len(wanted),
	}).Info("stock decremented")
	return nil
}

// Transfer moves quantity between the two warehouse columns of one SKU,
// under the same fresh-read/validate/overwrite protocol as a sale.
func (l *Ledger) Transfer(ctx context.Context, sku string, from, to domain.Warehouse, qty int) (domain.TransferResponse, error) {
	if qty <= 0 {
		return domain.TransferResponse{}, fmt.Errorf("transfer quantity must be positive: %w", domain.ErrValidation)
	}
	if from == to {
		return domain.TransferResponse{}, fmt.Errorf("transfer source and destination are the same: %w", domain.ErrValidation)
	}

	records, err := l.FreshInventory(ctx)
	if err != nil {
		return domain.TransferResponse{}, err
	}

	idx := -1
	for i := range records {
		if records[i].SKU == sku {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.TransferResponse{}, fmt.Errorf("sku %s: %w", sku, domain.ErrNotFound)
	}

	rec := &records[idx]
	if have := rec.Stock(from); qty > have {
		return domain.TransferResponse{}, fmt.Errorf("sku %s: requested %d, available %d in %s: %w",
			sku, qty, have, from, domain.ErrInsufficientStock)
	}
	rec.SetStock(from, rec.Stock(from)-qty)
	rec.SetStock(to, rec.Stock(to)+qty)

	if err := l.tables.Overwrite(ctx, table.Inventory, schema.EncodeInventory(records)); err != nil {
		return domain.TransferResponse{}, fmt.Errorf("write transferred inventory: %w", err)
	}

	l.log.WithFields(logrus.Fields{
		"component": "ledger",
		"sku":       sku,
		"from":      from,
		"to":        to,
		"qty":       qty,
	}).Info("stock transferred")

	return domain.TransferResponse{
		SKU:            sku,
		From:           from,
		To:             to,
		Quantity:       qty,
		StockHouse:     rec.StockHouse,
		StockWarehouse: rec.StockWarehouse,
	}, nil
}

func indexBySKU(records []domain.InventoryRecord) map[string]domain.InventoryRecord {
	m := make(map[string]domain.InventoryRecord, len(records))
	for _, rec := range records {
		m[rec.SKU] = rec
	}
	return m
}

func aggregateQuantities(lines []domain.CartLine) map[string]int {
	m := make(map[string]int, len(lines))
	for _, line := range lines {
		m[line.SKU] += line.Quantity
	}
	return m
}
