// Package match decides whether a decoded kanban belongs to the current
// skid group and enforces the scan-level consistency rules. Everything
// here is pure and order-scoped state lives in DupIndex; the commit
// transaction re-checks duplicates against the store.
package match

import (
	"fmt"
	"strings"

	"skidbuild/models"
	"skidbuild/plan"
	"skidbuild/scan"
)

// NoMatchError reports a kanban with no planned line in the current group.
type NoMatchError struct {
	PartNumber string
	Group      plan.GroupKey
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("part %s has no planned line on skid %s", e.PartNumber, e.Group)
}

// PalletizationMismatchError reports a kanban whose pallet code disagrees
// with the current manifest.
type PalletizationMismatchError struct {
	ManifestCode string
	KanbanCode   string
}

func (e *PalletizationMismatchError) Error() string {
	return fmt.Sprintf("kanban pallet code %s does not match manifest %s", e.KanbanCode, e.ManifestCode)
}

// Duplicate kinds.
const (
	DupInternalKanban = "internal_kanban"
	DupToyotaKanban   = "toyota_kanban"
)

// DuplicateError reports a scan that was already committed for the order.
type DuplicateError struct {
	Kind  string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s: %s", e.Kind, e.Value)
}

// MatchKanban resolves a decoded kanban to a planned line item within the
// current skid group. The rules form an explicit prioritized list: an
// exact part-number match anywhere in the group wins before containment
// is considered; within a tier the first candidate in baseline index
// order wins.
func MatchKanban(k scan.KanbanScan, group *plan.SkidGroup) (models.PlannedLineItem, error) {
	if group == nil {
		return models.PlannedLineItem{}, &NoMatchError{PartNumber: k.PartNumber}
	}
	part := strings.TrimSpace(k.PartNumber)

	for _, candidate := range group.Planned {
		if candidate.PalletizationCode != group.Key.PalletizationCode {
			continue
		}
		if candidate.PartNumber == part {
			return candidate, nil
		}
	}
	for _, candidate := range group.Planned {
		if candidate.PalletizationCode != group.Key.PalletizationCode {
			continue
		}
		if partNumbersContain(candidate.PartNumber, part) {
			return candidate, nil
		}
	}
	return models.PlannedLineItem{}, &NoMatchError{PartNumber: part, Group: group.Key}
}

// partNumbersContain is the bidirectional containment fallback inherited
// from the label format variants: either printed value may carry a prefix
// or suffix the other lacks.
func partNumbersContain(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ValidatePalletization checks the kanban pallet code against the current
// manifest. An empty code on either side skips validation.
func ValidatePalletization(manifestCode, kanbanCode string) error {
	if manifestCode == "" || kanbanCode == "" {
		return nil
	}
	if manifestCode != kanbanCode {
		return &PalletizationMismatchError{ManifestCode: manifestCode, KanbanCode: kanbanCode}
	}
	return nil
}

type toyotaKey struct {
	plannedLineItemID int64
	boxNumber         string
}

// DupIndex tracks the order-scoped duplicate-detection state: every
// internal kanban value seen (case-insensitive) and every committed
// (planned line, box number) pair.
type DupIndex struct {
	internal map[string]struct{}
	toyota   map[toyotaKey]struct{}
}

func NewDupIndex() *DupIndex {
	return &DupIndex{
		internal: make(map[string]struct{}),
		toyota:   make(map[toyotaKey]struct{}),
	}
}

// CheckInternal rejects an internal kanban value already seen for the order.
func (d *DupIndex) CheckInternal(internalKanban string) error {
	if _, seen := d.internal[strings.ToLower(internalKanban)]; seen {
		return &DuplicateError{Kind: DupInternalKanban, Value: internalKanban}
	}
	return nil
}

// CheckToyota rejects a (planned line, box number) pair already committed.
func (d *DupIndex) CheckToyota(plannedLineItemID int64, boxNumber string) error {
	if _, seen := d.toyota[toyotaKey{plannedLineItemID, boxNumber}]; seen {
		return &DuplicateError{Kind: DupToyotaKanban, Value: fmt.Sprintf("line %d box %s", plannedLineItemID, boxNumber)}
	}
	return nil
}

// Add records a committed scan in both indexes.
func (d *DupIndex) Add(plannedLineItemID int64, boxNumber, internalKanban string) {
	d.internal[strings.ToLower(internalKanban)] = struct{}{}
	d.toyota[toyotaKey{plannedLineItemID, boxNumber}] = struct{}{}
}

// Reset clears both indexes; used by restart.
func (d *DupIndex) Reset() {
	d.internal = make(map[string]struct{})
	d.toyota = make(map[toyotaKey]struct{})
}
