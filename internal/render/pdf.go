package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const pdfPageBreakY = 270

// PDF renders s as a single A4 document.
func PDF(s Sections) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr("Gatespy report: "+s.Stats.Domain), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Arial", "", 10)
	line := func(text string) {
		if pdf.GetY() > pdfPageBreakY {
			pdf.AddPage()
		}
		pdf.MultiCell(0, 5, tr(text), "", "", false)
	}
	section := func(title string) {
		if pdf.GetY() > pdfPageBreakY-10 {
			pdf.AddPage()
		}
		pdf.Ln(2)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(0, 7, tr(title), "", 1, "", true, 0, "")
		pdf.SetFont("Arial", "", 10)
	}

	line("URL: " + s.Stats.URL)
	line(fmt.Sprintf("Requests: %s | Duration: %ss", s.Stats.RequestCount, s.Stats.Duration))

	section("Payment providers")
	line(pdfTags(s.Providers))
	for _, key := range s.StripeKeys {
		line("Stripe key: " + key)
	}

	section("Security")
	for _, f := range s.Security {
		line(f.Label + ": " + f.Value)
	}

	section("Payment methods")
	line(pdfTags(s.PaymentMethods))
	section("Libraries")
	line(pdfTags(s.Libraries))

	section("Network requests (sample)")
	line("CDN providers: " + pdfTags(s.Network.CDNProviders))
	pdf.SetFont("Arial", "", 8)
	for _, row := range s.Network.Rows {
		line(fmt.Sprintf("%s %s [%s] %s", row.Method, row.DisplayURL, row.Type, row.Status))
	}
	pdf.SetFont("Arial", "", 10)

	section("Analytics / tracking")
	line(pdfTags(s.Analytics))

	section("CSP")
	line("Meta: " + s.CSPMeta)
	line("Headers: " + s.CSPHeaders)

	section("Country / currency")
	line("Currencies: " + s.Currencies)
	line("Locales: " + s.Locales)

	section("Fonts")
	line(pdfTags(s.Fonts))

	section("Hidden form fields")
	pdfBlocks(line, s.HiddenFields)
	section("Cookies")
	pdfBlocks(line, s.Cookies)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func pdfTags(t TagList) string {
	if t.Empty() {
		return t.Placeholder
	}
	return strings.Join(t.Items, ", ")
}

func pdfBlocks(line func(string), b Blocks) {
	if b.Empty() {
		line(b.Placeholder)
		return
	}
	for _, block := range b.Items {
		parts := make([]string, len(block.Fields))
		for i, f := range block.Fields {
			parts[i] = f.Label + ": " + f.Value
		}
		line(strings.Join(parts, " | "))
	}
}
