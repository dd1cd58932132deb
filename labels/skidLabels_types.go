package labels

// SkidLabelData is one printable skid label, aggregated from the planned
// baseline of an order.
type SkidLabelData struct {
	OrderNumber       string `bun:"order_number"`
	PalletizationCode string `bun:"palletization_code"`
	SkidID            string `bun:"skid_id"`
	PartCount         int64  `bun:"part_count"`
	PlannedQty        int64  `bun:"planned_qty"`
}

// BarcodeValue is the code 128 payload printed on the label. Scanning it
// back yields the skid group key.
func (d SkidLabelData) BarcodeValue() string {
	return d.PalletizationCode + d.SkidID
}
