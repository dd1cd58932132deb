package workflow

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"skidbuild/infrastructure/operator"
	"skidbuild/match"
	"skidbuild/models"
	"skidbuild/plan"
	"skidbuild/scan"
	"skidbuild/shipment"
)

type scanRequest struct {
	Raw     string `json:"raw"`
	Channel string `json:"channel,omitempty"`
}

type exceptionRequest struct {
	Code       string `json:"code"`
	Comment    string `json:"comment"`
	SkidNumber string `json:"skid_number,omitempty"`
}

// ManifestScanHandler starts or resumes the order's session and points it
// at the scanned skid.
func ManifestScanHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scanRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		op, _ := operator.FromContext(r.Context())
		session, err := mgr.ScanManifest(r.Context(), op, req.Channel, req.Raw)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		status, err := session.Status(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// KanbanScanHandler validates a primary (kanban) scan against the current
// skid group and holds it pending.
func KanbanScanHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		var req scanRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		pending, err := session.ScanPrimary(req.Raw)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":        StateAwaitingSecondary,
			"part_number":  pending.Kanban.PartNumber,
			"box_number":   pending.Kanban.BoxNumber,
			"planned_line": pending.Line.ID,
		})
	}
}

// InternalScanHandler commits the pending pair as a confirmed box.
func InternalScanHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		var req scanRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		op, _ := operator.FromContext(r.Context())
		detail, err := session.ScanSecondary(r.Context(), op, req.Raw)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":           StateAwaitingPrimary,
			"internal_kanban": detail.InternalKanban,
			"skid_number":     detail.SkidNumber,
			"box_number":      detail.BoxNumber,
		})
	}
}

// CancelHandler discards the pending primary scan.
func CancelHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		if err := session.Cancel(); err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": StateAwaitingPrimary})
	}
}

// ExceptionHandler records a reconciliation exception for the session.
func ExceptionHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		var req exceptionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Comment) == "" {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody("invalid_request", "comment is required"))
			return
		}
		op, _ := operator.FromContext(r.Context())
		rec, err := session.AddException(r.Context(), op, models.ExceptionRecord{
			Code:       req.Code,
			Comment:    strings.TrimSpace(req.Comment),
			SkidNumber: strings.TrimSpace(req.SkidNumber),
		})
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// SubmitHandler runs the reconciliation gate and the external submission.
func SubmitHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		op, _ := operator.FromContext(r.Context())
		confirmationID, err := session.Submit(r.Context(), op, mgr.Submitter())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		mgr.Release(session)
		writeJSON(w, http.StatusOK, map[string]any{
			"state":           StateCompleted,
			"confirmation_id": confirmationID,
		})
	}
}

// RestartHandler clears all scan and exception state for the order.
func RestartHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		op, _ := operator.FromContext(r.Context())
		if err := session.Restart(r.Context(), op); err != nil {
			writeWorkflowError(w, err)
			return
		}
		status, err := session.Status(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// StatusHandler reports the session-owned view.
func StatusHandler(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := findSession(w, r, mgr)
		if !ok {
			return
		}
		status, err := session.Status(r.Context())
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func findSession(w http.ResponseWriter, r *http.Request, mgr *Manager) (*Session, bool) {
	id := chi.URLParam(r, "id")
	session, ok := mgr.Find(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("session_not_found", "no live session; rescan the manifest"))
		return nil, false
	}
	return session, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_request", "malformed JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", slog.Any("err", err))
	}
}

func errorBody(code, message string) map[string]string {
	return map[string]string{"code": code, "error": message}
}

// writeWorkflowError maps the error taxonomy onto HTTP statuses. Scan
// level rejections are 422 (the operator rescans), state and gate
// violations are 409, collaborator failures are 502.
func writeWorkflowError(w http.ResponseWriter, err error) {
	var (
		decodeErr     *scan.DecodeError
		noMatch       *match.NoMatchError
		palletErr     *match.PalletizationMismatchError
		dupErr        *match.DuplicateError
		stateErr      *InvalidStateError
		skidErr       *SkidNotPlannedError
		gateErr       *ReconciliationBlockedError
		submissionErr *shipment.SubmissionError
		noPlan        *plan.ErrNoPlan
	)
	switch {
	case errors.As(err, &decodeErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("decode_error", decodeErr.Error()))
	case errors.As(err, &noMatch):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("no_match", noMatch.Error()))
	case errors.As(err, &palletErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("palletization_mismatch", palletErr.Error()))
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("duplicate_"+dupErr.Kind, dupErr.Error()))
	case errors.As(err, &skidErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("skid_not_planned", skidErr.Error()))
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, errorBody("invalid_state", stateErr.Error()))
	case errors.As(err, &gateErr):
		writeJSON(w, http.StatusConflict, errorBody("reconciliation_blocked", gateErr.Error()))
	case errors.As(err, &submissionErr):
		writeJSON(w, http.StatusBadGateway, errorBody("submission_failed", submissionErr.Error()))
	case errors.As(err, &noPlan):
		writeJSON(w, http.StatusNotFound, errorBody("order_not_planned", noPlan.Error()))
	default:
		slog.Error("workflow operation failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal", "operation failed"))
	}
}
