// Package workflow owns the skid-build pairing protocol: manifest scan,
// primary (kanban) scan, secondary (internal kanban) scan, exception
// capture and the reconciliation-gated submit. Session state lives in an
// explicit object held by the scanning workflow, never in ambient
// globals, so sessions can run side by side and be tested in isolation.
package workflow

import (
	"context"
	"sync"

	"skidbuild/infrastructure/audit"
	"skidbuild/infrastructure/cache"
	"skidbuild/infrastructure/sqlite"
	"skidbuild/match"
	"skidbuild/models"
	"skidbuild/plan"
	"skidbuild/scan"
	"skidbuild/shipment"
)

// Session is one live skid-build run. All transitions are driven by
// explicit operator actions; a mutex serializes operators sharing the
// session.
type Session struct {
	mu sync.Mutex

	db    *sqlite.DB
	audit *audit.Service

	model    models.Session
	baseline *plan.Baseline
	manifest scan.ManifestScan
	current  *plan.SkidGroup
	pending  *PendingPrimary
	dups     *match.DupIndex
	scanned  int64
	state    State
}

// ID returns the persistent session identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.ID
}

// OrderNumber returns the order this session builds against.
func (s *Session) OrderNumber() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.OrderNumber
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ApplyManifest repoints the current skid group. Allowed before the first
// skid and between pairings; rejected while a primary scan is pending.
func (s *Session) ApplyManifest(m scan.ManifestScan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingManifest && s.state != StateAwaitingPrimary {
		return &InvalidStateError{Op: "manifest scan", State: s.state}
	}
	group, ok := s.baseline.Group(m.PalletizationCode, m.RawSkidID)
	if !ok {
		return &SkidNotPlannedError{
			OrderNumber:       s.model.OrderNumber,
			PalletizationCode: m.PalletizationCode,
			RawSkidID:         m.RawSkidID,
		}
	}
	s.manifest = m
	s.current = group
	s.state = StateAwaitingPrimary
	return nil
}

// ScanPrimary decodes and validates a kanban card against the current
// skid group. A validated card is held pending until its internal kanban
// arrives; only one primary may be pending at a time.
func (s *Session) ScanPrimary(raw string) (PendingPrimary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingPrimary {
		return PendingPrimary{}, &InvalidStateError{Op: "primary scan", State: s.state}
	}
	kanban, err := scan.DecodeKanban(raw)
	if err != nil {
		return PendingPrimary{}, err
	}
	if err := match.ValidatePalletization(s.manifest.PalletizationCode, kanban.PalletCode); err != nil {
		return PendingPrimary{}, err
	}
	line, err := match.MatchKanban(kanban, s.current)
	if err != nil {
		return PendingPrimary{}, err
	}
	if err := s.dups.CheckToyota(line.ID, kanban.BoxNumber); err != nil {
		return PendingPrimary{}, err
	}

	s.pending = &PendingPrimary{Kanban: kanban, Line: line}
	s.state = StateAwaitingSecondary
	return *s.pending, nil
}

// ScanSecondary decodes the internal kanban, commits the pending pair as
// a scan detail and returns to awaiting the next primary. A rejected
// secondary leaves the pending primary in place for a rescan.
func (s *Session) ScanSecondary(ctx context.Context, operator, raw string) (models.ScanDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingSecondary || s.pending == nil {
		return models.ScanDetail{}, &InvalidStateError{Op: "secondary scan", State: s.state}
	}
	internal, err := scan.DecodeInternalKanban(raw)
	if err != nil {
		return models.ScanDetail{}, err
	}
	if err := s.dups.CheckInternal(internal.InternalKanban); err != nil {
		return models.ScanDetail{}, err
	}

	detail := models.ScanDetail{
		SessionID:         s.model.ID,
		OrderNumber:       s.model.OrderNumber,
		PlannedLineItemID: s.pending.Line.ID,
		SkidNumber:        s.manifest.SkidNumber,
		BoxNumber:         s.pending.Kanban.BoxNumber,
		InternalKanban:    internal.InternalKanban,
		PalletizationCode: s.manifest.PalletizationCode,
		ScannedBy:         operator,
	}
	detail, err = commitScanDetail(ctx, s.db, s.audit, operator, detail)
	if err != nil {
		return models.ScanDetail{}, err
	}

	s.dups.Add(detail.PlannedLineItemID, detail.BoxNumber, detail.InternalKanban)
	s.scanned++
	s.pending = nil
	s.state = StateAwaitingPrimary
	return detail, nil
}

// Cancel discards the pending primary without committing anything.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingSecondary {
		return &InvalidStateError{Op: "cancel", State: s.state}
	}
	s.pending = nil
	s.state = StateAwaitingPrimary
	return nil
}

// AddException records an operator justification for a quantity mismatch.
func (s *Session) AddException(ctx context.Context, operator string, rec models.ExceptionRecord) (models.ExceptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return models.ExceptionRecord{}, &InvalidStateError{Op: "exception", State: s.state}
	}
	rec.SessionID = s.model.ID
	rec.OrderNumber = s.model.OrderNumber
	rec.CreatedBy = operator
	return insertException(ctx, s.db, s.audit, operator, rec)
}

// Submit runs the reconciliation gate and hands the completed session to
// the customer endpoint. Failure keeps every committed scan and parks the
// session in the recoverable error status.
func (s *Session) Submit(ctx context.Context, operator string, submitter shipment.Submitter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingPrimary {
		return "", &InvalidStateError{Op: "submit", State: s.state}
	}

	totals, err := OrderTotals(ctx, s.db, s.model.OrderNumber, s.model.ID)
	if err != nil {
		return "", err
	}
	if err := CheckGate(totals); err != nil {
		return "", err
	}

	sub, err := loadSubmission(ctx, s.db, s.model.OrderNumber, s.model.ID)
	if err != nil {
		return "", err
	}
	confirmationID, err := submitter.Submit(ctx, sub)
	if err != nil {
		s.state = StateError
		s.model.Status = models.SessionError
		s.model.ErrorMessage = err.Error()
		if persistErr := markSubmissionFailed(ctx, s.db, s.model.ID, err.Error()); persistErr != nil {
			return "", persistErr
		}
		return "", err
	}

	if err := markSubmitted(ctx, s.db, s.audit, operator, s.model.ID, confirmationID); err != nil {
		return "", err
	}
	s.state = StateCompleted
	s.model.Status = models.SessionCompleted
	s.model.ConfirmationID = confirmationID
	return confirmationID, nil
}

// Resume moves an error session back into the pairing protocol after a
// failed submission, keeping all committed work.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateError {
		return &InvalidStateError{Op: "resume", State: s.state}
	}
	if s.current != nil {
		s.state = StateAwaitingPrimary
	} else {
		s.state = StateAwaitingManifest
	}
	return nil
}

// Restart destroys all scan and exception state for the order while
// leaving the planned baseline untouched, then rejoins the protocol.
func (s *Session) Restart(ctx context.Context, operator string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return &InvalidStateError{Op: "restart", State: s.state}
	}
	if err := restartSession(ctx, s.db, s.audit, operator, s.model.OrderNumber, s.model.ID); err != nil {
		return err
	}
	s.dups.Reset()
	s.scanned = 0
	s.pending = nil
	s.model.Status = models.SessionActive
	s.model.ErrorMessage = ""
	if s.current != nil {
		s.state = StateAwaitingPrimary
	} else {
		s.state = StateAwaitingManifest
	}

	// Zero the cached planned-line counters; the rows were reset in the
	// same transaction as the deletes.
	for i := range s.baseline.Items {
		s.baseline.Items[i].ScannedQty = 0
	}
	if s.current != nil {
		for i := range s.current.Planned {
			s.current.Planned[i].ScannedQty = 0
		}
	}
	return nil
}

// Status reports the session-owned view: protocol state, reconciliation
// totals and the pending primary, if any.
func (s *Session) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals, err := OrderTotals(ctx, s.db, s.model.OrderNumber, s.model.ID)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		SessionID:      s.model.ID,
		OrderNumber:    s.model.OrderNumber,
		State:          s.state,
		PlannedQty:     totals.Planned,
		ScannedQty:     totals.Actual,
		ExceptionCount: totals.Exceptions,
		ConfirmationID: s.model.ConfirmationID,
		ErrorMessage:   s.model.ErrorMessage,
	}
	if s.current != nil {
		st.PalletizationCode = s.current.Key.PalletizationCode
		st.RawSkidID = s.current.Key.RawSkidID
	}
	if s.pending != nil {
		part := s.pending.Kanban.PartNumber
		st.Pending = &part
	}
	return st, nil
}

// Manager creates, resumes and registers live sessions.
type Manager struct {
	db        *sqlite.DB
	audit     *audit.Service
	submitter shipment.Submitter

	byID    *cache.Registry[*Session]
	byOrder *cache.Registry[*Session]
}

func NewManager(db *sqlite.DB, auditSvc *audit.Service, submitter shipment.Submitter) *Manager {
	return &Manager{
		db:        db,
		audit:     auditSvc,
		submitter: submitter,
		byID:      cache.NewRegistry[*Session](),
		byOrder:   cache.NewRegistry[*Session](),
	}
}

// Submitter returns the configured customer endpoint client.
func (m *Manager) Submitter() shipment.Submitter {
	return m.submitter
}

// Find returns a live session by id.
func (m *Manager) Find(sessionID string) (*Session, bool) {
	return m.byID.Find(sessionID)
}

// ScanManifest is the session entry point: it decodes the manifest,
// creates or resumes the order's session, and points it at the scanned
// skid. Later manifest scans for the same order only repoint the cursor.
func (m *Manager) ScanManifest(ctx context.Context, operator, channel, raw string) (*Session, error) {
	manifest, err := scan.DecodeManifest(raw)
	if err != nil {
		return nil, err
	}

	if session, ok := m.byOrder.Find(manifest.OrderNumber); ok {
		if session.State() == StateError {
			if err := session.Resume(); err != nil {
				return nil, err
			}
		}
		if err := session.ApplyManifest(manifest); err != nil {
			return nil, err
		}
		touchSession(ctx, m.db, session.ID())
		return session, nil
	}

	baseline, err := plan.LoadBaseline(ctx, m.db, manifest.OrderNumber)
	if err != nil {
		return nil, err
	}

	model, resumed, err := findResumableSession(ctx, m.db, manifest.OrderNumber)
	if err != nil {
		return nil, err
	}
	if !resumed {
		model, err = createSession(ctx, m.db, m.audit, operator, manifest.OrderNumber, channel)
		if err != nil {
			return nil, err
		}
	}

	dups, scanned, err := loadScannedState(ctx, m.db, manifest.OrderNumber)
	if err != nil {
		return nil, err
	}

	session := &Session{
		db:       m.db,
		audit:    m.audit,
		model:    model,
		baseline: baseline,
		dups:     dups,
		scanned:  scanned,
		state:    StateAwaitingManifest,
	}
	if err := session.ApplyManifest(manifest); err != nil {
		return nil, err
	}

	m.byID.Add(model.ID, session)
	m.byOrder.Add(model.OrderNumber, session)
	return session, nil
}

// Release drops a completed session from the registries.
func (m *Manager) Release(session *Session) {
	m.byID.Delete(session.ID())
	m.byOrder.Delete(session.OrderNumber())
}
