package match

import (
	"errors"
	"testing"

	"skidbuild/models"
	"skidbuild/plan"
	"skidbuild/scan"
)

func testGroup(parts ...string) *plan.SkidGroup {
	items := make([]models.PlannedLineItem, 0, len(parts))
	for i, part := range parts {
		items = append(items, models.PlannedLineItem{
			ID:                int64(i + 1),
			OrderNumber:       "2023080205",
			PartNumber:        part,
			PalletizationCode: "LB",
			SkidID:            "001A",
			PlannedQty:        5,
		})
	}
	b := plan.NewBaseline("2023080205", items)
	group, _ := b.Group("LB", "001A")
	return group
}

func TestMatchKanbanExactWinsOverContainment(t *testing.T) {
	// The containment candidate sits first in index order; exact still wins.
	group := testGroup("681010E2", "681010E250")
	k := scan.KanbanScan{PartNumber: "681010E250"}

	item, err := MatchKanban(k, group)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if item.PartNumber != "681010E250" {
		t.Fatalf("expected exact match, got %q", item.PartNumber)
	}
}

func TestMatchKanbanContainmentFallback(t *testing.T) {
	group := testGroup("681020E310", "681010E250")

	// Scanned value is a prefix of a planned part number.
	item, err := MatchKanban(scan.KanbanScan{PartNumber: "681010E2"}, group)
	if err != nil {
		t.Fatalf("match prefix: %v", err)
	}
	if item.PartNumber != "681010E250" {
		t.Fatalf("expected containment match, got %q", item.PartNumber)
	}

	// Scanned value extends a planned part number.
	item, err = MatchKanban(scan.KanbanScan{PartNumber: "681020E310XX"}, group)
	if err != nil {
		t.Fatalf("match suffix: %v", err)
	}
	if item.PartNumber != "681020E310" {
		t.Fatalf("expected containment match, got %q", item.PartNumber)
	}
}

func TestMatchKanbanFirstIndexOrderWins(t *testing.T) {
	group := testGroup("681010E250", "681010E250")
	item, err := MatchKanban(scan.KanbanScan{PartNumber: "681010E250"}, group)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if item.ID != 1 {
		t.Fatalf("expected first candidate, got id %d", item.ID)
	}
}

func TestMatchKanbanIsIdempotent(t *testing.T) {
	group := testGroup("681010E250", "681020E310")
	k := scan.KanbanScan{PartNumber: "681010E250"}
	first, err1 := MatchKanban(k, group)
	second, err2 := MatchKanban(k, group)
	if err1 != nil || err2 != nil {
		t.Fatalf("match errors: %v, %v", err1, err2)
	}
	if first.ID != second.ID {
		t.Fatalf("re-match returned different line: %d vs %d", first.ID, second.ID)
	}
}

func TestMatchKanbanNoMatch(t *testing.T) {
	group := testGroup("681010E250")
	_, err := MatchKanban(scan.KanbanScan{PartNumber: "999999X999"}, group)
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if _, err := MatchKanban(scan.KanbanScan{PartNumber: "681010E250"}, nil); err == nil {
		t.Fatalf("expected nil group rejection")
	}
}

func TestValidatePalletization(t *testing.T) {
	if err := ValidatePalletization("LB", "LB"); err != nil {
		t.Fatalf("matching codes rejected: %v", err)
	}
	if err := ValidatePalletization("", "LB"); err != nil {
		t.Fatalf("empty manifest code should skip validation: %v", err)
	}
	if err := ValidatePalletization("LB", ""); err != nil {
		t.Fatalf("empty kanban code should skip validation: %v", err)
	}
	err := ValidatePalletization("LB", "D1")
	var mismatch *PalletizationMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected PalletizationMismatchError, got %v", err)
	}
}

func TestDupIndexInternalKanbanCaseInsensitive(t *testing.T) {
	d := NewDupIndex()
	d.Add(1, "001", "FCJR")
	err := d.CheckInternal("fcjr")
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if dup.Kind != DupInternalKanban {
		t.Fatalf("unexpected kind %q", dup.Kind)
	}
	if err := d.CheckInternal("FCJS"); err != nil {
		t.Fatalf("unseen value rejected: %v", err)
	}
}

func TestDupIndexToyotaKanban(t *testing.T) {
	d := NewDupIndex()
	d.Add(7, "002", "FCJR")
	if err := d.CheckToyota(7, "002"); err == nil {
		t.Fatalf("expected toyota duplicate")
	}
	if err := d.CheckToyota(7, "003"); err != nil {
		t.Fatalf("different box rejected: %v", err)
	}
	if err := d.CheckToyota(8, "002"); err != nil {
		t.Fatalf("different line rejected: %v", err)
	}

	d.Reset()
	if err := d.CheckToyota(7, "002"); err != nil {
		t.Fatalf("reset should clear index: %v", err)
	}
	if err := d.CheckInternal("FCJR"); err != nil {
		t.Fatalf("reset should clear internal index: %v", err)
	}
}
