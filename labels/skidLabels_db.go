package labels

import (
	"context"

	"github.com/uptrace/bun"

	"skidbuild/infrastructure/sqlite"
)

// LoadSkidLabels aggregates the planned baseline of an order into one
// label per skid, in skid order. An unplanned order yields an empty slice.
func LoadSkidLabels(ctx context.Context, db *sqlite.DB, orderNumber string) ([]SkidLabelData, error) {
	labels := make([]SkidLabelData, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT order_number, palletization_code, skid_id,
       COUNT(*) AS part_count,
       SUM(planned_qty) AS planned_qty
FROM planned_line_items
WHERE order_number = ?
GROUP BY palletization_code, skid_id
ORDER BY palletization_code ASC, skid_id ASC`, orderNumber).Scan(ctx, &labels)
	})
	return labels, err
}
