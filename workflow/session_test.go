package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uptrace/bun"

	"skidbuild/infrastructure/audit"
	"skidbuild/infrastructure/sqlite"
	"skidbuild/match"
	"skidbuild/models"
	"skidbuild/shipment"
)

const testOrder = "2023080205"

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "workflow-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := sqlite.ApplyMigrations(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func seedLine(t *testing.T, db *sqlite.DB, part, pallet, skid string, qty int64) {
	t.Helper()
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		item := &models.PlannedLineItem{
			OrderNumber:       testOrder,
			PartNumber:        part,
			PalletizationCode: pallet,
			SkidID:            skid,
			PlannedQty:        qty,
		}
		_, err := tx.NewInsert().Model(item).Exec(ctx)
		return err
	})
	if err != nil {
		t.Fatalf("seed planned line: %v", err)
	}
}

// buildManifest assembles a raw manifest code for the test order.
func buildManifest(pallet, skid string) string {
	return "02TMI02806V8" + testOrder + "  IDVV01      " + pallet + "05" + skid
}

// buildKanban assembles a raw kanban card at the fixed layout positions.
func buildKanban(t *testing.T, part, box, pallet string) string {
	t.Helper()
	buf := []byte(strings.Repeat(" ", 200))
	place := func(offset, length int, value string) {
		if len(value) > length {
			t.Fatalf("value %q exceeds field length %d", value, length)
		}
		copy(buf[offset:], value)
	}
	place(0, 12, part)      // part number
	place(36, 5, "02806")   // supplier code
	place(41, 2, "V8")      // dock code
	place(43, 5, "1")       // quantity
	place(58, 3, box)       // box number
	place(76, 2, pallet)    // pallet code
	place(188, 12, part)    // repeated part number
	return string(buf)
}

// fakeSubmitter lets tests flip the collaborator between failing and
// succeeding across submit attempts.
type fakeSubmitter struct {
	fail  bool
	calls int
	last  shipment.Submission
}

func (f *fakeSubmitter) Submit(_ context.Context, sub shipment.Submission) (string, error) {
	f.calls++
	f.last = sub
	if f.fail {
		return "", &shipment.SubmissionError{Status: 503, Message: "customer endpoint unavailable"}
	}
	return fmt.Sprintf("CONF-%d", f.calls), nil
}

func newTestManager(t *testing.T, db *sqlite.DB, submitter shipment.Submitter) *Manager {
	t.Helper()
	return NewManager(db, audit.NewService(), submitter)
}

func startSession(t *testing.T, mgr *Manager, pallet, skid string) *Session {
	t.Helper()
	session, err := mgr.ScanManifest(context.Background(), "op-1", "device", buildManifest(pallet, skid))
	if err != nil {
		t.Fatalf("manifest scan: %v", err)
	}
	return session
}

// commitBox runs one full primary+secondary pairing.
func commitBox(t *testing.T, session *Session, part, box, internal string) {
	t.Helper()
	if _, err := session.ScanPrimary(buildKanban(t, part, box, "LB")); err != nil {
		t.Fatalf("primary scan %s/%s: %v", part, box, err)
	}
	raw := part + "/" + internal + "/" + box
	if _, err := session.ScanSecondary(context.Background(), "op-1", raw); err != nil {
		t.Fatalf("secondary scan %s: %v", internal, err)
	}
}

func TestManifestCreatesSessionAndRepointsCursor(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	seedLine(t, db, "681020E310", "LB", "001B", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})

	session := startSession(t, mgr, "LB", "001A")
	if session.State() != StateAwaitingPrimary {
		t.Fatalf("expected awaiting_primary, got %s", session.State())
	}

	// A later manifest for the same order repoints, never recreates.
	again := startSession(t, mgr, "LB", "001B")
	if again.ID() != session.ID() {
		t.Fatalf("expected cursor repoint on same session, got new session")
	}
	status, err := again.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.RawSkidID != "001B" {
		t.Fatalf("expected cursor on 001B, got %s", status.RawSkidID)
	}
}

func TestManifestRejectsUnplannedSkid(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})

	_, err := mgr.ScanManifest(context.Background(), "op-1", "device", buildManifest("D1", "001A"))
	var skidErr *SkidNotPlannedError
	if !errors.As(err, &skidErr) {
		t.Fatalf("expected SkidNotPlannedError, got %v", err)
	}
}

func TestPairingCommitsScanDetail(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")

	var rows int
	var scanned int64
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT COUNT(*) FROM scan_details WHERE order_number = ?`, testOrder).Scan(ctx, &rows); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT scanned_qty FROM planned_line_items WHERE order_number = ? AND part_number = ?`, testOrder, "681010E250").Scan(ctx, &scanned)
	})
	if err != nil {
		t.Fatalf("read committed state: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 scan detail, got %d", rows)
	}
	if scanned != 1 {
		t.Fatalf("expected scanned_qty 1, got %d", scanned)
	}
	if session.State() != StateAwaitingPrimary {
		t.Fatalf("expected return to awaiting_primary, got %s", session.State())
	}
}

func TestSecondPrimaryRejectedWhilePending(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	if _, err := session.ScanPrimary(buildKanban(t, "681010E250", "001", "LB")); err != nil {
		t.Fatalf("first primary: %v", err)
	}
	_, err := session.ScanPrimary(buildKanban(t, "681010E250", "002", "LB"))
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected pending-primary rejection, got %v", err)
	}
}

func TestCancelDiscardsPendingPrimary(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	if _, err := session.ScanPrimary(buildKanban(t, "681010E250", "001", "LB")); err != nil {
		t.Fatalf("primary: %v", err)
	}
	if err := session.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if session.State() != StateAwaitingPrimary {
		t.Fatalf("expected awaiting_primary after cancel, got %s", session.State())
	}

	var rows int
	_ = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM scan_details WHERE order_number = ?`, testOrder).Scan(ctx, &rows)
	})
	if rows != 0 {
		t.Fatalf("cancel must not commit, got %d rows", rows)
	}

	if err := session.Cancel(); err == nil {
		t.Fatalf("cancel without pending primary should be rejected")
	}
}

func TestPalletizationMismatchRejectsPrimary(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	_, err := session.ScanPrimary(buildKanban(t, "681010E250", "001", "D1"))
	var palletErr *match.PalletizationMismatchError
	if !errors.As(err, &palletErr) {
		t.Fatalf("expected palletization mismatch, got %v", err)
	}
}

func TestDuplicateInternalKanbanRejectedCaseInsensitive(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")

	if _, err := session.ScanPrimary(buildKanban(t, "681010E250", "002", "LB")); err != nil {
		t.Fatalf("primary: %v", err)
	}
	_, err := session.ScanSecondary(context.Background(), "op-1", "681010E250/fcjr/002")
	var dup *match.DuplicateError
	if !errors.As(err, &dup) || dup.Kind != match.DupInternalKanban {
		t.Fatalf("expected internal duplicate, got %v", err)
	}
	// The pending primary survives the rejected secondary.
	if session.State() != StateAwaitingSecondary {
		t.Fatalf("expected awaiting_secondary after rejected secondary, got %s", session.State())
	}
}

func TestDuplicateToyotaKanbanRejected(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")

	_, err := session.ScanPrimary(buildKanban(t, "681010E250", "001", "LB"))
	var dup *match.DuplicateError
	if !errors.As(err, &dup) || dup.Kind != match.DupToyotaKanban {
		t.Fatalf("expected toyota duplicate, got %v", err)
	}
}

func TestSubmitGateBlocksThenExceptionUnblocks(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	seedLine(t, db, "681020E310", "LB", "001A", 5)
	submitter := &fakeSubmitter{}
	mgr := newTestManager(t, db, submitter)
	session := startSession(t, mgr, "LB", "001A")

	// 8 of 10 planned boxes confirmed.
	for i := 1; i <= 4; i++ {
		commitBox(t, session, "681010E250", fmt.Sprintf("%03d", i), fmt.Sprintf("AAA%d", i))
		commitBox(t, session, "681020E310", fmt.Sprintf("%03d", i), fmt.Sprintf("BBB%d", i))
	}

	_, err := session.Submit(context.Background(), "op-1", submitter)
	var gate *ReconciliationBlockedError
	if !errors.As(err, &gate) {
		t.Fatalf("expected reconciliation block, got %v", err)
	}
	if gate.Planned != 10 || gate.Actual != 8 {
		t.Fatalf("unexpected totals: %+v", gate)
	}
	if submitter.calls != 0 {
		t.Fatalf("blocked submit must not call the collaborator")
	}

	if _, err := session.AddException(context.Background(), "op-1", models.ExceptionRecord{
		Code:    models.ExceptionSupplierShortage,
		Comment: "2 boxes short on 681010E250",
	}); err != nil {
		t.Fatalf("add exception: %v", err)
	}

	confirmation, err := session.Submit(context.Background(), "op-1", submitter)
	if err != nil {
		t.Fatalf("submit after exception: %v", err)
	}
	if confirmation == "" {
		t.Fatalf("expected confirmation id")
	}
	if session.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", session.State())
	}
	if len(submitter.last.Details) != 8 || len(submitter.last.Exceptions) != 1 {
		t.Fatalf("submission payload: %d details, %d exceptions", len(submitter.last.Details), len(submitter.last.Exceptions))
	}
}

func TestSubmitBalancedNeedsNoException(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 2)
	submitter := &fakeSubmitter{}
	mgr := newTestManager(t, db, submitter)
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")
	commitBox(t, session, "681010E250", "002", "FCJS")

	if _, err := session.Submit(context.Background(), "op-1", submitter); err != nil {
		t.Fatalf("balanced submit: %v", err)
	}
}

func TestSubmitFailureIsRecoverable(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 1)
	submitter := &fakeSubmitter{fail: true}
	mgr := newTestManager(t, db, submitter)
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")

	_, err := session.Submit(context.Background(), "op-1", submitter)
	var subErr *shipment.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if session.State() != StateError {
		t.Fatalf("expected error state, got %s", session.State())
	}

	var status string
	_ = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM sessions WHERE id = ?`, session.ID()).Scan(ctx, &status)
	})
	if status != models.SessionError {
		t.Fatalf("expected persisted error status, got %q", status)
	}

	// The committed scan survives the failure; a manifest rescan resumes
	// and the retry succeeds without rescanning any box.
	resumed := startSession(t, mgr, "LB", "001A")
	if resumed.ID() != session.ID() {
		t.Fatalf("expected resume of the failed session")
	}
	submitter.fail = false
	if _, err := resumed.Submit(context.Background(), "op-1", submitter); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if len(submitter.last.Details) != 1 {
		t.Fatalf("expected retained scan detail in retry payload")
	}
}

func TestResumeAcrossProcessRestart(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 2)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")
	commitBox(t, session, "681010E250", "001", "FCJR")

	// A fresh manager (new process) resumes the persisted session and
	// still enforces order-scoped duplicates.
	mgr2 := newTestManager(t, db, &fakeSubmitter{})
	resumed := startSession(t, mgr2, "LB", "001A")
	if resumed.ID() != session.ID() {
		t.Fatalf("expected the persisted session to be resumed")
	}
	if _, err := resumed.ScanPrimary(buildKanban(t, "681010E250", "001", "LB")); err == nil {
		t.Fatalf("expected toyota duplicate across restart")
	}
}

func TestRestartClearsScansAndExceptionsKeepsBaseline(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 5)
	mgr := newTestManager(t, db, &fakeSubmitter{})
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")
	if _, err := session.AddException(context.Background(), "op-1", models.ExceptionRecord{
		Code:    models.ExceptionOther,
		Comment: "test exception",
	}); err != nil {
		t.Fatalf("add exception: %v", err)
	}

	if err := session.Restart(context.Background(), "op-1"); err != nil {
		t.Fatalf("restart: %v", err)
	}

	var details, exceptions int
	var planned, scanned int64
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT COUNT(*) FROM scan_details WHERE order_number = ?`, testOrder).Scan(ctx, &details); err != nil {
			return err
		}
		if err := tx.NewRaw(`SELECT COUNT(*) FROM exception_records WHERE order_number = ?`, testOrder).Scan(ctx, &exceptions); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT planned_qty, scanned_qty FROM planned_line_items WHERE order_number = ?`, testOrder).Scan(ctx, &planned, &scanned)
	})
	if err != nil {
		t.Fatalf("read state after restart: %v", err)
	}
	if details != 0 || exceptions != 0 {
		t.Fatalf("restart must clear scans and exceptions: %d/%d", details, exceptions)
	}
	if planned != 5 || scanned != 0 {
		t.Fatalf("baseline must survive restart: planned=%d scanned=%d", planned, scanned)
	}

	// The previously used identifiers are free again.
	commitBox(t, session, "681010E250", "001", "FCJR")
}

func TestRestartRejectedAfterCompletion(t *testing.T) {
	db := openTestDB(t)
	seedLine(t, db, "681010E250", "LB", "001A", 1)
	submitter := &fakeSubmitter{}
	mgr := newTestManager(t, db, submitter)
	session := startSession(t, mgr, "LB", "001A")

	commitBox(t, session, "681010E250", "001", "FCJR")
	if _, err := session.Submit(context.Background(), "op-1", submitter); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := session.Restart(context.Background(), "op-1"); err == nil {
		t.Fatalf("restart after completion should be rejected")
	}
}
