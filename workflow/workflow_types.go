package workflow

import (
	"fmt"

	"skidbuild/models"
	"skidbuild/scan"
)

// State is the session's position in the pairing protocol.
type State string

const (
	StateAwaitingManifest  State = "awaiting_manifest"
	StateAwaitingPrimary   State = "awaiting_primary"
	StateAwaitingSecondary State = "awaiting_secondary"
	StateCompleted         State = "completed"
	StateError             State = "error"
)

// PendingPrimary is a matched kanban waiting for its internal-kanban pair.
type PendingPrimary struct {
	Kanban scan.KanbanScan
	Line   models.PlannedLineItem
}

// InvalidStateError reports an operation attempted from the wrong state.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.State)
}

// SkidNotPlannedError reports a manifest for a skid the baseline does not
// contain. There is no fallback across palletization codes or skid ids.
type SkidNotPlannedError struct {
	OrderNumber       string
	PalletizationCode string
	RawSkidID         string
}

func (e *SkidNotPlannedError) Error() string {
	return fmt.Sprintf("order %s has no planned skid %s/%s", e.OrderNumber, e.PalletizationCode, e.RawSkidID)
}

// ReconciliationBlockedError blocks submission while planned and actual
// quantities disagree and no exception record justifies the gap.
type ReconciliationBlockedError struct {
	Planned int64
	Actual  int64
}

func (e *ReconciliationBlockedError) Error() string {
	return fmt.Sprintf("planned %d vs scanned %d: exception record required before submit", e.Planned, e.Actual)
}

// Status is the session-owned view exposed to the device and dock UI.
type Status struct {
	SessionID         string  `json:"session_id"`
	OrderNumber       string  `json:"order_number"`
	State             State   `json:"state"`
	PalletizationCode string  `json:"palletization_code,omitempty"`
	RawSkidID         string  `json:"raw_skid_id,omitempty"`
	PlannedQty        int64   `json:"planned_qty"`
	ScannedQty        int64   `json:"scanned_qty"`
	ExceptionCount    int64   `json:"exception_count"`
	ConfirmationID    string  `json:"confirmation_id,omitempty"`
	ErrorMessage      string  `json:"error_message,omitempty"`
	Pending           *string `json:"pending_part_number,omitempty"`
}
