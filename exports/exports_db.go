package exports

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/uptrace/bun"

	"skidbuild/infrastructure/sqlite"
)

// writeScanDetailCSV streams the confirmed boxes of an order as CSV, one
// row per scan detail, joined with its planned line.
func writeScanDetailCSV(ctx context.Context, db *sqlite.DB, w io.Writer, orderNumber string) (int, error) {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{"order_number", "skid_number", "palletization_code", "part_number", "box_number", "internal_kanban", "scanned_by", "scanned_at"}
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	type row struct {
		OrderNumber       string `bun:"order_number"`
		SkidNumber        string `bun:"skid_number"`
		PalletizationCode string `bun:"palletization_code"`
		PartNumber        string `bun:"part_number"`
		BoxNumber         string `bun:"box_number"`
		InternalKanban    string `bun:"internal_kanban"`
		ScannedBy         string `bun:"scanned_by"`
		ScannedAt         string `bun:"scanned_at"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT sd.order_number, sd.skid_number, sd.palletization_code,
       pli.part_number,
       sd.box_number, sd.internal_kanban,
       COALESCE(sd.scanned_by, '') AS scanned_by,
       strftime('%d/%m/%Y %H:%M', sd.created_at) AS scanned_at
FROM scan_details sd
JOIN planned_line_items pli ON pli.id = sd.planned_line_item_id
WHERE sd.order_number = ?
ORDER BY sd.skid_number ASC, pli.part_number ASC, sd.id ASC`, orderNumber).Scan(ctx, &rows)
	})
	if err != nil {
		return 0, err
	}

	for _, r := range rows {
		record := []string{
			r.OrderNumber,
			r.SkidNumber,
			r.PalletizationCode,
			r.PartNumber,
			r.BoxNumber,
			r.InternalKanban,
			r.ScannedBy,
			r.ScannedAt,
		}
		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}
	return len(rows), writer.Error()
}

// writeReconciliationCSV streams the per-line planned versus scanned
// totals for an order.
func writeReconciliationCSV(ctx context.Context, db *sqlite.DB, w io.Writer, orderNumber string) (int, error) {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"order_number", "palletization_code", "skid_id", "part_number", "planned_qty", "scanned_qty", "shortfall"}); err != nil {
		return 0, err
	}

	type row struct {
		OrderNumber       string `bun:"order_number"`
		PalletizationCode string `bun:"palletization_code"`
		SkidID            string `bun:"skid_id"`
		PartNumber        string `bun:"part_number"`
		PlannedQty        int64  `bun:"planned_qty"`
		ScannedQty        int64  `bun:"scanned_qty"`
	}

	rows := make([]row, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT order_number, palletization_code, skid_id, part_number, planned_qty, scanned_qty
FROM planned_line_items
WHERE order_number = ?
ORDER BY palletization_code ASC, skid_id ASC, part_number ASC`, orderNumber).Scan(ctx, &rows)
	})
	if err != nil {
		return 0, err
	}

	for _, r := range rows {
		record := []string{
			r.OrderNumber,
			r.PalletizationCode,
			r.SkidID,
			r.PartNumber,
			strconv.FormatInt(r.PlannedQty, 10),
			strconv.FormatInt(r.ScannedQty, 10),
			strconv.FormatInt(r.PlannedQty-r.ScannedQty, 10),
		}
		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}
	return len(rows), writer.Error()
}
