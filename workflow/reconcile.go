package workflow

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"skidbuild/infrastructure/sqlite"
)

// Totals compares the order-wide planned quantity with the count of
// physically confirmed boxes. Actual counts committed scan details, not
// kanban cards: one detail is one box on a skid.
type Totals struct {
	Planned    int64 `json:"planned"`
	Actual     int64 `json:"actual"`
	Exceptions int64 `json:"exceptions"`
}

// Balanced reports whether planned and actual quantities agree.
func (t Totals) Balanced() bool {
	return t.Planned == t.Actual
}

// OrderTotals reads the reconciliation inputs for the whole order, not
// just the current skid. Exceptions are counted per session.
func OrderTotals(ctx context.Context, db *sqlite.DB, orderNumber, sessionID string) (Totals, error) {
	var t Totals
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`
SELECT COALESCE(SUM(planned_qty), 0)
FROM planned_line_items
WHERE order_number = ?`, orderNumber).Scan(ctx, &t.Planned); err != nil {
			return err
		}
		if err := tx.NewRaw(`
SELECT COUNT(*)
FROM scan_details
WHERE order_number = ?`, orderNumber).Scan(ctx, &t.Actual); err != nil {
			return err
		}
		return tx.NewRaw(`
SELECT COUNT(*)
FROM exception_records
WHERE session_id = ?`, sessionID).Scan(ctx, &t.Exceptions)
	})
	if err != nil {
		return Totals{}, fmt.Errorf("load order totals: %w", err)
	}
	return t, nil
}

// CheckGate applies the reconciliation rule: an unbalanced order needs at
// least one exception record, whatever the magnitude of the mismatch.
func CheckGate(t Totals) error {
	if t.Balanced() || t.Exceptions > 0 {
		return nil
	}
	return &ReconciliationBlockedError{Planned: t.Planned, Actual: t.Actual}
}
