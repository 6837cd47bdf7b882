// Package export writes transaction lists as CSV and PDF statements.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"lana/internal/dates"
	"lana/internal/models"
)

// Header is the CSV header row.
var Header = []string{"date", "type", "category", "description", "amount", "payment_received", "recurring"}

// WriteCSV writes one row per transaction. Amounts are decimal with two
// places.
func WriteCSV(w io.Writer, txs []models.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i := range txs {
		tx := &txs[i]
		row := []string{
			tx.Date.String(),
			string(tx.Type),
			tx.Category,
			tx.Description,
			money(tx.Amount),
			strconv.FormatBool(tx.PaymentReceived),
			strconv.FormatBool(tx.Recurring),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Period is the statement date range. Zero ends mean open.
type Period struct {
	From *dates.Date
	To   *dates.Date
}

func (p Period) String() string {
	from, to := "inicio", "hoy"
	if p.From != nil {
		from = p.From.String()
	}
	if p.To != nil {
		to = p.To.String()
	}
	return from + " a " + to
}

// Statement describes a PDF export.
type Statement struct {
	Owner       string
	Currency    string
	Period      Period
	GeneratedAt time.Time
}

// Totals sums income and expense of txs in cents.
func Totals(txs []models.Transaction) (income, expense int64) {
	for i := range txs {
		switch txs[i].Type {
		case models.TransactionTypeIncome:
			income += txs[i].Amount
		case models.TransactionTypeExpense:
			expense += txs[i].Amount
		}
	}
	return income, expense
}

const pageBottom = 255.0

var colW = []float64{24, 22, 40, 70, 30}

func tableHeader(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(colW[0], 8, "FECHA", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[1], 8, "TIPO", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], 8, tr("CATEGORÍA"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[3], 8, tr("DESCRIPCIÓN"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[4], 8, "MONTO", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 8)
}

func render(st Statement, txs []models.Transaction) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(false, 14)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Estado de movimientos")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 5, tr("Periodo: "+st.Period.String()))
	pdf.Ln(5)
	if st.Owner != "" {
		pdf.Cell(0, 5, tr("Titular: "+st.Owner))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	income, expense := Totals(txs)
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 10)
	sumW := []float64{62, 62, 62}
	pdf.CellFormat(sumW[0], 9, "Ingresos ("+st.Currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 9, "Gastos ("+st.Currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 9, "Balance ("+st.Currency+")", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(sumW[0], 9, money(income), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 9, money(expense), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 9, money(income-expense), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	tableHeader(pdf, tr)
	for i := range txs {
		tx := &txs[i]
		if pdf.GetY() > pageBottom {
			pdf.AddPage()
			tableHeader(pdf, tr)
		}

		amount := money(tx.Amount)
		if tx.Type == models.TransactionTypeExpense {
			amount = "-" + amount
		}
		kind := "Ingreso"
		if tx.Type == models.TransactionTypeExpense {
			kind = "Gasto"
		}

		pdf.CellFormat(colW[0], 7, tx.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 7, kind, "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 7, tr(clip(tx.Category, 22)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 7, tr(clip(tx.Description, 42)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[4], 7, amount, "1", 1, "R", false, 0, "")
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generado por Lana "+st.GeneratedAt.Format(time.RFC3339), "", 0, "C", false, 0, "")
	return pdf
}

// RenderPDF draws a statement with a totals box and a transaction table
// whose header row repeats on every page.
func RenderPDF(st Statement, txs []models.Transaction) ([]byte, error) {
	if st.Currency == "" {
		st.Currency = "MXN"
	}
	if st.GeneratedAt.IsZero() {
		st.GeneratedAt = time.Now()
	}
	pdf := render(st, txs)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render statement pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
