package scan

import "strconv"

// KanbanScan is one decoded kanban card. PartNumber always holds the
// effective value: the repeated part-number field when present, because
// it survives format variants the primary field does not.
type KanbanScan struct {
	PartNumber        string
	PrimaryPartNumber string
	Description       string
	SupplierCode      string
	DockCode          string
	Quantity          int64
	KanbanNumber      string
	BoxNumber         string
	TotalBoxes        string
	ShipDate          string
	ShipTime          string
	PalletCode        string
	PlantCode         string
	Route             string
	OrderNumber       string
	SupplierName      string
	LineLocation      string
	ContainerType     string
	LotNumber         string
}

var kanbanLayout = layout{
	{name: "partNumber", offset: 0, length: 12},
	{name: "description", offset: 12, length: 24},
	{name: "supplierCode", offset: 36, length: 5},
	{name: "dockCode", offset: 41, length: 2},
	{name: "quantity", offset: 43, length: 5},
	{name: "kanbanNumber", offset: 48, length: 10},
	{name: "boxNumber", offset: 58, length: 3},
	{name: "totalBoxes", offset: 61, length: 3},
	{name: "shipDate", offset: 64, length: 8},
	{name: "shipTime", offset: 72, length: 4},
	{name: "palletCode", offset: 76, length: 2},
	{name: "plantCode", offset: 78, length: 2},
	{name: "route", offset: 80, length: 8},
	{name: "orderNumber", offset: 88, length: 10},
	{name: "supplierName", offset: 98, length: 20},
	{name: "lineLocation", offset: 118, length: 6},
	{name: "containerType", offset: 124, length: 4},
	{name: "lotNumber", offset: 128, length: 10},
	{name: "reserved", offset: 138, length: 50},
	{name: "repeatedPartNumber", offset: 188, length: 12},
}

// DecodeKanban parses a raw kanban card code.
func DecodeKanban(raw string) (KanbanScan, error) {
	if len(raw) < kanbanLayout.minLength() {
		return KanbanScan{}, decodeErr("kanban", "", "raw code too short")
	}
	fields := kanbanLayout.cut(raw)

	k := KanbanScan{
		PrimaryPartNumber: fields["partNumber"],
		Description:       fields["description"],
		SupplierCode:      fields["supplierCode"],
		DockCode:          fields["dockCode"],
		KanbanNumber:      fields["kanbanNumber"],
		BoxNumber:         fields["boxNumber"],
		TotalBoxes:        fields["totalBoxes"],
		ShipDate:          fields["shipDate"],
		ShipTime:          fields["shipTime"],
		PalletCode:        fields["palletCode"],
		PlantCode:         fields["plantCode"],
		Route:             fields["route"],
		OrderNumber:       fields["orderNumber"],
		SupplierName:      fields["supplierName"],
		LineLocation:      fields["lineLocation"],
		ContainerType:     fields["containerType"],
		LotNumber:         fields["lotNumber"],
	}

	// The repeated part number is the more reliable of the two fields.
	k.PartNumber = fields["repeatedPartNumber"]
	if k.PartNumber == "" {
		k.PartNumber = k.PrimaryPartNumber
	}

	if k.PartNumber == "" {
		return KanbanScan{}, decodeErr("kanban", "partNumber", "required")
	}
	if k.SupplierCode == "" {
		return KanbanScan{}, decodeErr("kanban", "supplierCode", "required")
	}
	if k.DockCode == "" {
		return KanbanScan{}, decodeErr("kanban", "dockCode", "required")
	}

	if qtyRaw := fields["quantity"]; qtyRaw != "" {
		qty, err := strconv.ParseInt(qtyRaw, 10, 64)
		if err != nil || qty < 0 {
			return KanbanScan{}, decodeErr("kanban", "quantity", "must be a non-negative integer")
		}
		k.Quantity = qty
	}
	return k, nil
}
