package notify

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const PDFFilename = "order.pdf"

// RenderPDF lays out the order summary on an A4 page. The core fonts only
// cover cp1252, so text outside it is replaced.
func RenderPDF(event domain.OrderPlacedEvent) ([]byte, error) {
	view := newSummaryView(event)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Order "+view.Number), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "New Order Received")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, tr("Store Name: "+view.StoreName))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range [][2]string{
		{"Store Email", view.StoreEmail},
		{"Address", view.Address},
		{"Order Number", view.Number},
		{"Order Date", view.Date},
	} {
		pdf.Cell(0, 7, tr(row[0]+": "+row[1]))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Order Details")
	pdf.Ln(9)

	widths := []float64{110, 30, 50}
	pdf.SetFont("Helvetica", "B", 11)
	for i, header := range []string{"Product", "Quantity", "Subtotal"} {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range view.Lines {
		pdf.CellFormat(widths[0], 8, tr(line.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, strconv.Itoa(line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 8, "KRW "+groupDigits(line.Subtotal), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total Amount: KRW "+groupDigits(view.Total))
	pdf.Ln(16)

	pdf.Cell(0, 8, "Order Fulfillment")
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, "Date: __________________________________")
	pdf.Ln(10)
	pdf.Cell(0, 8, "Signature: _______________________________")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render order pdf: %w", err)
	}
	return buf.Bytes(), nil
}
