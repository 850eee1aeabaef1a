package infra

// pdf.go: receipt generation for completed sales using go-pdf/fpdf.
// Thermal-roll sized page with:
//   - Business name header
//   - Sale number, register and timestamp
//   - Item table (name, quantity, line subtotal)
//   - Discount, shipping, tax and bold total
//   - Payments and change due
//   - QR code carrying the sale number for lookups at the counter

import (
	"bytes"
	"fmt"

	"github.com/ally-360/pos-terminal/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ReceiptOptions controls the receipt header and number formatting.
type ReceiptOptions struct {
	BusinessName string
	Locale       string // BCP 47 tag, e.g. "es-CO"
	Decimals     int32
}

const receiptWidth = 80.0 // mm, standard thermal roll

// RenderReceiptPDF renders a CompletedSale as a PDF document and returns its
// bytes. Nothing is written to disk.
func RenderReceiptPDF(sale model.CompletedSale, opts ReceiptOptions) ([]byte, error) {
	if opts.BusinessName == "" {
		opts.BusinessName = "POS"
	}
	money := moneyFormatter(opts.Locale, opts.Decimals)

	// Height grows with the number of lines so the roll is never cut short.
	height := 120.0 + 5*float64(len(sale.Items)+len(sale.Payments))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: receiptWidth, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(opts.BusinessName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Sales receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, tr("Sale "+sale.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, sale.CompletedAt.Format("2006-01-02  15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 4, tr("Register "+sale.RegisterID), "", 1, "L", false, 0, "")
	if sale.CustomerName != "" {
		pdf.CellFormat(contentW, 4, tr("Customer: "+sale.CustomerName), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, it := range sale.Items {
		name := it.Name
		if name == "" {
			name = it.ProductID
		}
		if r := []rune(name); len(r) > 26 {
			name = string(r[:25]) + "."
		}
		pdf.CellFormat(col1, 5, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, it.Quantity.String(), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, money(it.Subtotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ───────────────────────────────────────────────────────────────
	row := func(label string, amount decimal.Decimal) {
		pdf.CellFormat(col1+col2, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, money(amount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 7)
	row("Subtotal:", sale.Totals.Subtotal)
	if !sale.Totals.Discount.IsZero() {
		row("Discount:", sale.Totals.Discount.Neg())
	}
	row("Tax:", sale.Totals.TaxTotal)
	if !sale.Totals.Shipping.IsZero() {
		row("Shipping:", sale.Totals.Shipping)
	}
	pdf.SetFont("Helvetica", "B", 9)
	row("TOTAL:", sale.Totals.GrandTotal)

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	for _, p := range sale.Payments {
		row(fmt.Sprintf("Paid (%s):", p.Method), p.Amount)
	}
	row("Change:", sale.ChangeDue)

	// ── QR ───────────────────────────────────────────────────────────────────
	png, err := qrcode.Encode(sale.Number, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("pdf: encode qr: %w", err)
	}
	imgOpts := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	pdf.RegisterImageOptionsReader("sale-qr", imgOpts, bytes.NewReader(png))
	const qrSize = 28.0
	pdf.Ln(3)
	pdf.ImageOptions("sale-qr", (pageW-qrSize)/2, pdf.GetY(), qrSize, qrSize, true, imgOpts, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your purchase", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// moneyFormatter formats amounts with the locale's grouping and decimal
// separators. Unknown locales fall back to English.
func moneyFormatter(locale string, decimals int32) func(decimal.Decimal) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	scale := int(decimals)
	return func(d decimal.Decimal) string {
		return "$" + p.Sprint(number.Decimal(d.Round(decimals).InexactFloat64(), number.Scale(scale)))
	}
}
