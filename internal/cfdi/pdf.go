package cfdi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"

	"lana/internal/models"
)

// RenderPDF draws a printable representation of a stamped invoice from the
// stored certificate fields. It is not the fiscal document; the XML is.
func RenderPDF(inv *models.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 16)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 9, "Comprobante Fiscal Digital por Internet")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	folio := strings.TrimSpace(fmt.Sprintf("%s %d", inv.Series, inv.FolioNumber))
	pdf.Cell(0, 5, tr("Folio: "+folio))
	pdf.Ln(5)
	pdf.Cell(0, 5, "Folio fiscal (UUID): "+inv.UUID)
	pdf.Ln(5)
	if inv.StampDate != nil {
		pdf.Cell(0, 5, "Fecha de timbrado: "+inv.StampDate.Format("2006-01-02 15:04:05"))
		pdf.Ln(5)
	}
	if inv.Status == models.InvoiceStatusCanceled {
		pdf.SetTextColor(200, 30, 30)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(0, 7, "CANCELADA")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.Ln(4)

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 6, "Receptor")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{
		inv.CustomerLegalName,
		"RFC: " + inv.CustomerTaxID,
		"Régimen fiscal: " + inv.CustomerTaxSystem,
		"C.P.: " + inv.CustomerZip,
		"Uso CFDI: " + inv.Use,
	} {
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont("Helvetica", "B", 9)
	colW := []float64{28, 112, 48}
	pdf.CellFormat(colW[0], 8, "CLAVE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[1], 8, tr("DESCRIPCIÓN"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[2], 8, "IMPORTE", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(colW[0], 8, inv.ProductKey, "1", 0, "C", false, 0, "")
	pdf.CellFormat(colW[1], 8, tr(truncate(inv.Description, 70)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(colW[2], 8, FormatCents(inv.Subtotal), "1", 1, "R", false, 0, "")
	pdf.Ln(3)

	totals := [][2]string{
		{"Subtotal", FormatCents(inv.Subtotal)},
		{"Impuestos trasladados", FormatCents(inv.Transferred)},
		{"Impuestos retenidos", FormatCents(inv.Retained)},
		{"Total " + inv.Currency, FormatCents(inv.Total)},
	}
	for i, t := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(colW[0]+colW[1], 7, t[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 7, t[1], "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Forma de pago: %s    Método de pago: %s", inv.PaymentForm, inv.PaymentMethod)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.Cell(0, 5, "No. de certificado SAT: "+inv.SATCertNumber)
	pdf.Ln(6)
	for _, block := range [][2]string{
		{"Sello digital del CFDI", inv.Signature},
		{"Sello digital del SAT", inv.SATSignature},
		{"Cadena original del complemento de certificación", inv.ComplementString},
	} {
		if block[1] == "" {
			continue
		}
		pdf.SetFont("Helvetica", "B", 7)
		pdf.Cell(0, 4, tr(block[0]))
		pdf.Ln(4)
		pdf.SetFont("Courier", "", 6)
		pdf.MultiCell(0, 3, block[1], "", "L", false)
		pdf.Ln(2)
	}
	if inv.VerificationURL != "" {
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetTextColor(30, 60, 160)
		pdf.CellFormat(0, 5, tr("Verificación: ")+inv.VerificationURL, "", 1, "L", false, 0, inv.VerificationURL)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
