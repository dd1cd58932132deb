package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Session status values.
const (
	SessionActive    = "active"
	SessionError     = "error"
	SessionCompleted = "completed"
)

// Session is one skid-build run against an order. At most one active or
// error session may exist per order (enforced by a partial unique index).
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID             string    `bun:"id,pk"`
	OrderNumber    string    `bun:"order_number,notnull"`
	Status         string    `bun:"status,notnull"`
	Channel        string    `bun:"channel,notnull,default:'device'"`
	ConfirmationID string    `bun:"confirmation_id"`
	ErrorMessage   string    `bun:"error_message"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Resumable reports whether the session can be picked up again.
func (s Session) Resumable() bool {
	return s.Status == SessionActive || s.Status == SessionError
}

// PlannedLineItem is the planned baseline seeded at order ingestion.
// ScannedQty is mutated only by scan commits and zeroed by restart; the
// planned columns never change after ingestion.
type PlannedLineItem struct {
	bun.BaseModel `bun:"table:planned_line_items,alias:pli"`

	ID                int64     `bun:"id,pk,autoincrement"`
	OrderNumber       string    `bun:"order_number,notnull"`
	PartNumber        string    `bun:"part_number,notnull"`
	PalletizationCode string    `bun:"palletization_code,notnull"`
	SkidID            string    `bun:"skid_id,notnull"`
	PlannedQty        int64     `bun:"planned_qty,notnull"`
	ScannedQty        int64     `bun:"scanned_qty,notnull,default:0"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// ScanDetail is one physically confirmed box: a matched kanban paired
// with its internal kanban.
type ScanDetail struct {
	bun.BaseModel `bun:"table:scan_details,alias:sd"`

	ID                int64     `bun:"id,pk,autoincrement"`
	SessionID         string    `bun:"session_id"`
	OrderNumber       string    `bun:"order_number,notnull"`
	PlannedLineItemID int64     `bun:"planned_line_item_id,notnull"`
	SkidNumber        string    `bun:"skid_number,notnull"`
	BoxNumber         string    `bun:"box_number,notnull"`
	InternalKanban    string    `bun:"internal_kanban,notnull"`
	PalletizationCode string    `bun:"palletization_code,notnull"`
	ScannedBy         string    `bun:"scanned_by"`
	CreatedAt         time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Exception reason codes (closed set).
const (
	ExceptionQuantityRevision     = "quantity_revision"
	ExceptionBoxQuantityChange    = "box_quantity_change"
	ExceptionSupplierShortage     = "supplier_shortage"
	ExceptionNonstandardPackaging = "nonstandard_packaging"
	ExceptionOther                = "other"
)

// ExceptionRecord justifies completing a session despite a quantity
// mismatch.
type ExceptionRecord struct {
	bun.BaseModel `bun:"table:exception_records,alias:er"`

	ID          int64     `bun:"id,pk,autoincrement"`
	SessionID   string    `bun:"session_id"`
	OrderNumber string    `bun:"order_number,notnull"`
	Code        string    `bun:"code,notnull"`
	Comment     string    `bun:"comment,notnull"`
	SkidNumber  string    `bun:"skid_number"`
	CreatedBy   string    `bun:"created_by"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ValidExceptionCode reports whether code belongs to the closed set.
func ValidExceptionCode(code string) bool {
	switch code {
	case ExceptionQuantityRevision, ExceptionBoxQuantityChange,
		ExceptionSupplierShortage, ExceptionNonstandardPackaging, ExceptionOther:
		return true
	}
	return false
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID           int64     `bun:"id,pk,autoincrement"`
	OperatorCode string    `bun:"operator_code,notnull"`
	Action       string    `bun:"action,notnull"`
	EntityType   string    `bun:"entity_type,notnull"`
	EntityID     string    `bun:"entity_id,notnull"`
	BeforeJSON   string    `bun:"before_json"`
	AfterJSON    string    `bun:"after_json"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
