// Package plan loads an order's planned baseline and partitions it into
// skid groups. The baseline is read once per session; later manifest
// scans only repoint the current-group cursor.
package plan

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"skidbuild/infrastructure/sqlite"
	"skidbuild/models"
)

// GroupKey identifies one physical skid. Two skids sharing a raw skid id
// under different palletization codes are distinct groups.
type GroupKey struct {
	PalletizationCode string
	RawSkidID         string
}

func (k GroupKey) String() string {
	return k.PalletizationCode + "/" + k.RawSkidID
}

// SkidGroup aggregates the planned line items belonging to one skid, in
// baseline index order.
type SkidGroup struct {
	Key     GroupKey
	Planned []models.PlannedLineItem
}

// Baseline is an order's full planned-line-item set, partitioned by skid.
type Baseline struct {
	OrderNumber string
	Items       []models.PlannedLineItem
	groups      map[GroupKey]*SkidGroup
}

// ErrNoPlan reports an order with no planned line items.
type ErrNoPlan struct {
	OrderNumber string
}

func (e *ErrNoPlan) Error() string {
	return fmt.Sprintf("order %s has no planned line items", e.OrderNumber)
}

// LoadBaseline reads the order's planned line items and partitions them.
func LoadBaseline(ctx context.Context, db *sqlite.DB, orderNumber string) (*Baseline, error) {
	items := make([]models.PlannedLineItem, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&items).
			Where("order_number = ?", orderNumber).
			OrderExpr("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("load planned baseline: %w", err)
	}
	if len(items) == 0 {
		return nil, &ErrNoPlan{OrderNumber: orderNumber}
	}
	return NewBaseline(orderNumber, items), nil
}

// NewBaseline partitions items into skid groups preserving index order.
func NewBaseline(orderNumber string, items []models.PlannedLineItem) *Baseline {
	b := &Baseline{
		OrderNumber: orderNumber,
		Items:       items,
		groups:      make(map[GroupKey]*SkidGroup),
	}
	for _, item := range items {
		key := GroupKey{PalletizationCode: item.PalletizationCode, RawSkidID: item.SkidID}
		group, ok := b.groups[key]
		if !ok {
			group = &SkidGroup{Key: key}
			b.groups[key] = group
		}
		group.Planned = append(group.Planned, item)
	}
	return b
}

// Group returns the skid group for the exact key, with no fallback across
// palletization codes or skid ids.
func (b *Baseline) Group(palletizationCode, rawSkidID string) (*SkidGroup, bool) {
	group, ok := b.groups[GroupKey{PalletizationCode: palletizationCode, RawSkidID: rawSkidID}]
	return group, ok
}

// PlannedTotal is the order-wide planned quantity.
func (b *Baseline) PlannedTotal() int64 {
	var total int64
	for _, item := range b.Items {
		total += item.PlannedQty
	}
	return total
}
