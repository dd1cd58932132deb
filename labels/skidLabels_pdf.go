package labels

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"
)

// renderSkidLabelsPDF renders one A4 landscape page per skid. The barcode
// carries the palletization code plus the raw skid id so a scan of the
// printed label points the workflow at the right group.
func renderSkidLabelsPDF(labels []SkidLabelData, printedAt time.Time) ([]byte, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels to render")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("Skid Labels", false)

	for _, label := range labels {
		barcodeValue := label.BarcodeValue()
		barcodePNG, err := renderCode128PNG(barcodeValue, 1200, 260)
		if err != nil {
			return nil, err
		}

		pdf.AddPage()
		orderNumber := strings.TrimSpace(label.OrderNumber)
		if orderNumber == "" {
			orderNumber = "Unknown Order"
		}

		pdf.SetFont("Helvetica", "B", 44)
		orderFont := fitFontSizeForWidth(pdf, "Helvetica", "B", 44, 20, "ORDER "+orderNumber, 250)
		pdf.SetFont("Helvetica", "B", orderFont)
		pdf.CellFormat(0, 20, "ORDER "+orderNumber, "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "B", 52)
		pdf.CellFormat(0, 22, fmt.Sprintf("SKID %s / %s", label.PalletizationCode, label.SkidID), "", 1, "C", false, 0, "")

		pdf.SetFont("Helvetica", "", 16)
		pdf.CellFormat(0, 9, fmt.Sprintf("Part numbers: %d", label.PartCount), "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 9, fmt.Sprintf("Planned boxes: %d", label.PlannedQty), "", 1, "C", false, 0, "")
		pdf.CellFormat(0, 9, "Printed: "+printedAt.Format("02/01/2006"), "", 1, "C", false, 0, "")

		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		imageName := "skid-barcode-" + barcodeValue
		pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
		pageW, _ := pdf.GetPageSize()
		imgW := 240.0
		imgH := 56.0
		x := (pageW - imgW) / 2
		y := 112.0
		pdf.ImageOptions(imageName, x, y, imgW, imgH, false, opt, 0, "")

		pdf.SetY(y + imgH + 6)
		pdf.SetFont("Helvetica", "B", 24)
		pdf.CellFormat(0, 12, barcodeValue, "", 1, "C", false, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func fitFontSizeForWidth(pdf *gofpdf.Fpdf, family, style string, base, min float64, text string, maxWidth float64) float64 {
	if maxWidth <= 0 {
		return min
	}
	size := base
	pdf.SetFont(family, style, size)
	for size > min && pdf.GetStringWidth(text) > maxWidth {
		size -= 0.5
		pdf.SetFont(family, style, size)
	}
	return size
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	code, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(code, width, height)
	if err != nil {
		return nil, err
	}
	normalized := toNRGBA(scaled)
	var barcodePNG bytes.Buffer
	if err := png.Encode(&barcodePNG, normalized); err != nil {
		return nil, err
	}
	return barcodePNG.Bytes(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}
