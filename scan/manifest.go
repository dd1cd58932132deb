package scan

// ManifestScan identifies the order, pallet and physical skid a scanning
// run is working against.
type ManifestScan struct {
	PlantPrefix       string
	SupplierCode      string
	DockCode          string
	OrderNumber       string
	LoadID            string
	PalletizationCode string
	MROSCode          string
	RawSkidID         string // 3-digit skid number + side character
	SkidNumber        string
	SkidSide          string // "A" or "B"
}

var manifestLayout = layout{
	{name: "plantPrefix", offset: 0, length: 5},
	{name: "supplierCode", offset: 5, length: 5},
	{name: "dockCode", offset: 10, length: 2},
	{name: "orderNumber", offset: 12, length: 10},
	{name: "loadID", offset: 22, length: 14},
	{name: "palletizationCode", offset: 36, length: 2},
	{name: "mrosCode", offset: 38, length: 2},
	{name: "rawSkidID", offset: 40, length: 4},
}

// DecodeManifest parses a raw manifest code.
func DecodeManifest(raw string) (ManifestScan, error) {
	if len(raw) < manifestLayout.minLength() {
		return ManifestScan{}, decodeErr("manifest", "", "raw code too short")
	}
	fields := manifestLayout.cut(raw)

	m := ManifestScan{
		PlantPrefix:       fields["plantPrefix"],
		SupplierCode:      fields["supplierCode"],
		DockCode:          fields["dockCode"],
		OrderNumber:       fields["orderNumber"],
		LoadID:            fields["loadID"],
		PalletizationCode: fields["palletizationCode"],
		MROSCode:          fields["mrosCode"],
		RawSkidID:         fields["rawSkidID"],
	}
	if m.OrderNumber == "" {
		return ManifestScan{}, decodeErr("manifest", "orderNumber", "required")
	}

	number, side, err := SplitSkidID(m.RawSkidID)
	if err != nil {
		return ManifestScan{}, err
	}
	m.SkidNumber = number
	m.SkidSide = side
	return m, nil
}

// SplitSkidID splits a raw skid id into its 3-digit skid number and its
// single side character. Sides other than A or B are rejected.
func SplitSkidID(rawSkidID string) (number, side string, err error) {
	if len(rawSkidID) != 4 {
		return "", "", decodeErr("manifest", "rawSkidID", "must be 4 characters")
	}
	number, side = rawSkidID[:3], rawSkidID[3:]
	for _, c := range number {
		if c < '0' || c > '9' {
			return "", "", decodeErr("manifest", "rawSkidID", "skid number must be numeric")
		}
	}
	if side != "A" && side != "B" {
		return "", "", decodeErr("manifest", "rawSkidID", "side must be A or B")
	}
	return number, side, nil
}
