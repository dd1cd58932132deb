package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"skidbuild/infrastructure/audit"
	"skidbuild/infrastructure/sqlite"
	"skidbuild/match"
	"skidbuild/models"
	"skidbuild/shipment"
)

func createSession(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, operator, orderNumber, channel string) (models.Session, error) {
	if channel == "" {
		channel = "device"
	}
	session := models.Session{
		ID:          uuid.NewString(),
		OrderNumber: orderNumber,
		Status:      models.SessionActive,
		Channel:     channel,
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&session).Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, operator, "session.create", "sessions", session.ID, nil, session)
		}
		return nil
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// findResumableSession picks the most recently created active/error
// session for the order. The partial unique index guarantees at most one.
func findResumableSession(ctx context.Context, db *sqlite.DB, orderNumber string) (models.Session, bool, error) {
	var session models.Session
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&session).
			Where("order_number = ?", orderNumber).
			Where("status IN (?)", bun.In([]string{models.SessionActive, models.SessionError})).
			OrderExpr("created_at DESC, id DESC").
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, false, nil
	}
	if err != nil {
		return models.Session{}, false, fmt.Errorf("find resumable session: %w", err)
	}
	return session, true, nil
}

// loadScannedState rebuilds the order's duplicate index and committed
// count from persisted scan details, so a resumed session enforces the
// same uniqueness rules as the one that crashed.
func loadScannedState(ctx context.Context, db *sqlite.DB, orderNumber string) (*match.DupIndex, int64, error) {
	var rows []struct {
		PlannedLineItemID int64  `bun:"planned_line_item_id"`
		BoxNumber         string `bun:"box_number"`
		InternalKanban    string `bun:"internal_kanban"`
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT planned_line_item_id, box_number, internal_kanban
FROM scan_details
WHERE order_number = ?`, orderNumber).Scan(ctx, &rows)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("load scanned state: %w", err)
	}
	dups := match.NewDupIndex()
	for _, row := range rows {
		dups.Add(row.PlannedLineItemID, row.BoxNumber, row.InternalKanban)
	}
	return dups, int64(len(rows)), nil
}

// commitScanDetail persists one confirmed box. The duplicate rules are
// re-checked inside the write transaction so concurrent sessions cannot
// slip past the in-memory index; the unique indexes are the backstop.
func commitScanDetail(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, operator string, detail models.ScanDetail) (models.ScanDetail, error) {
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var count int
		if err := tx.NewRaw(`
SELECT COUNT(*) FROM scan_details
WHERE order_number = ? AND lower(internal_kanban) = lower(?)`, detail.OrderNumber, detail.InternalKanban).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return &match.DuplicateError{Kind: match.DupInternalKanban, Value: detail.InternalKanban}
		}
		if err := tx.NewRaw(`
SELECT COUNT(*) FROM scan_details
WHERE order_number = ? AND planned_line_item_id = ? AND box_number = ?`, detail.OrderNumber, detail.PlannedLineItemID, detail.BoxNumber).Scan(ctx, &count); err != nil {
			return err
		}
		if count > 0 {
			return &match.DuplicateError{Kind: match.DupToyotaKanban, Value: fmt.Sprintf("line %d box %s", detail.PlannedLineItemID, detail.BoxNumber)}
		}

		if _, err := tx.NewInsert().Model(&detail).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
UPDATE planned_line_items
SET scanned_qty = scanned_qty + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND order_number = ?`, detail.PlannedLineItemID, detail.OrderNumber)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected != 1 {
			return fmt.Errorf("planned line %d not found for order %s", detail.PlannedLineItemID, detail.OrderNumber)
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, operator, "scan.commit", "scan_details", detail.InternalKanban, nil, detail)
		}
		return nil
	})
	if err != nil {
		return models.ScanDetail{}, err
	}
	return detail, nil
}

func insertException(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, operator string, rec models.ExceptionRecord) (models.ExceptionRecord, error) {
	if !models.ValidExceptionCode(rec.Code) {
		return models.ExceptionRecord{}, fmt.Errorf("unknown exception code %q", rec.Code)
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&rec).Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, operator, "exception.create", "exception_records", fmt.Sprintf("%d", rec.ID), nil, rec)
		}
		return nil
	})
	if err != nil {
		return models.ExceptionRecord{}, fmt.Errorf("insert exception: %w", err)
	}
	return rec, nil
}

// restartSession clears every scan detail and exception for the order in
// one transaction and zeroes the committed counters. The planned baseline
// rows are untouched and the session row stays active.
func restartSession(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, operator, orderNumber, sessionID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scan_details WHERE order_number = ?`, orderNumber); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM exception_records WHERE order_number = ?`, orderNumber); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE planned_line_items
SET scanned_qty = 0, updated_at = CURRENT_TIMESTAMP
WHERE order_number = ?`, orderNumber); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE sessions
SET status = ?, error_message = '', updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, models.SessionActive, sessionID); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, operator, "session.restart", "sessions", sessionID, nil, nil)
		}
		return nil
	})
}

func markSubmitted(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, operator, sessionID, confirmationID string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE sessions
SET status = ?, confirmation_id = ?, error_message = '', updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, models.SessionCompleted, confirmationID, sessionID); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, operator, "session.submit", "sessions", sessionID, nil, map[string]string{"confirmation_id": confirmationID})
		}
		return nil
	})
}

// markSubmissionFailed records the collaborator failure without touching
// any committed scans; the session becomes resumable in the error status.
func markSubmissionFailed(ctx context.Context, db *sqlite.DB, sessionID, message string) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `
UPDATE sessions
SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`, models.SessionError, message, sessionID)
		return err
	})
}

func loadSubmission(ctx context.Context, db *sqlite.DB, orderNumber, sessionID string) (shipment.Submission, error) {
	sub := shipment.Submission{OrderNumber: orderNumber, SessionID: sessionID}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(&sub.Details).
			Where("order_number = ?", orderNumber).
			OrderExpr("id ASC").
			Scan(ctx); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&sub.Exceptions).
			Where("session_id = ?", sessionID).
			OrderExpr("id ASC").
			Scan(ctx)
	})
	if err != nil {
		return shipment.Submission{}, fmt.Errorf("load submission payload: %w", err)
	}
	return sub, nil
}

// touchSession bumps updated_at after in-memory transitions worth
// persisting a heartbeat for; failures are not fatal to the scan flow.
func touchSession(ctx context.Context, db *sqlite.DB, sessionID string) {
	_ = db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, time.Now().UTC(), sessionID)
		return err
	})
}
